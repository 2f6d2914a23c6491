//
// Copyright 2025 The AdaGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package inference

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/measure"
	"github.com/dpsynth/adagrid/sparse"
)

func mustDomain(t *testing.T, attrs []string, sizes []int) *domain.Domain {
	t.Helper()
	d, err := domain.New(attrs, sizes)
	if err != nil {
		t.Fatalf("domain.New failed: %v", err)
	}
	return d
}

// jointMeasurement is a noiseless identity release of the full joint
// counts, the easiest log a fit must reproduce.
func jointMeasurement(dom *domain.Domain, counts []float64) measure.Measurement {
	return measure.Measurement{
		Q:      sparse.Identity(len(counts)),
		Y:      counts,
		Weight: 1.0,
		Clique: domain.NewClique(dom.Attrs()...),
	}
}

func TestMirrorRecoversNoiselessJoint(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 2})
	counts := []float64{10, 20, 30, 40}
	model, err := NewMirror(5000).Fit([]measure.Measurement{jointMeasurement(dom, counts)}, dom, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := model.Total(); math.Abs(got-100) > 1e-9 {
		t.Errorf("Total = %f, want 100", got)
	}
	joint, err := model.Project(domain.NewClique("a", "b"))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	for i := range counts {
		if math.Abs(joint[i]-counts[i]) > 0.5 {
			t.Errorf("joint cell %d = %f, want within 0.5 of %f", i, joint[i], counts[i])
		}
	}
	marginal, err := model.Project(domain.NewClique("a"))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if math.Abs(marginal[0]-30) > 0.5 || math.Abs(marginal[1]-70) > 0.5 {
		t.Errorf("marginal over a = %v, want close to [30 70]", marginal)
	}
}

func TestMirrorTotalWithoutCompleteRelease(t *testing.T) {
	dom := mustDomain(t, []string{"a"}, []int{2})
	// Half-weight columns never sum to 1, so no total can be read off.
	q, err := sparse.FromTriplets(1, 2, []int{0, 0}, []int{0, 1}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("FromTriplets failed: %v", err)
	}
	m := measure.Measurement{Q: q, Y: []float64{50}, Weight: 1.0, Clique: domain.NewClique("a")}
	model, err := NewMirror(10).Fit([]measure.Measurement{m}, dom, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := model.Total(); got != 1 {
		t.Errorf("Total = %f, want the fallback 1", got)
	}
}

func TestMirrorWarmStart(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 2})
	counts := []float64{10, 20, 30, 40}
	ms := []measure.Measurement{jointMeasurement(dom, counts)}
	engine := NewMirror(2000)
	cold, err := engine.Fit(ms, dom, nil)
	if err != nil {
		t.Fatalf("cold Fit failed: %v", err)
	}
	warm, err := engine.Fit(ms, dom, cold)
	if err != nil {
		t.Fatalf("warm Fit failed: %v", err)
	}
	a, err := cold.Project(domain.NewClique("a", "b"))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	b, err := warm.Project(domain.NewClique("a", "b"))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	// A warm restart of an already converged fit must stay converged.
	for i := range a {
		if math.Abs(a[i]-b[i]) > 0.5 {
			t.Errorf("cell %d moved from %f to %f on warm restart", i, a[i], b[i])
		}
	}
}

func TestMirrorSample(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 2})
	counts := []float64{10, 20, 30, 40}
	model, err := NewMirror(5000).Fit([]measure.Measurement{jointMeasurement(dom, counts)}, dom, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	const n = 20000
	ds, err := model.Sample(n, rand.New(rand.NewSource(21)))
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if ds.Len() != n {
		t.Fatalf("sampled %d records, want %d", ds.Len(), n)
	}
	marginal, err := ds.Project(domain.NewClique("a"))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	// a=0 has fitted probability 0.3; 4.42 binomial deviations.
	want := 0.3 * n
	tolerance := 4.42 * math.Sqrt(0.3*0.7*n)
	if math.Abs(marginal[0]-want) > tolerance {
		t.Errorf("sampled a=0 count = %f, want within %f of %f", marginal[0], tolerance, want)
	}

	empty, err := model.Sample(0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Sample(0) failed: %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("Sample(0) returned %d records", empty.Len())
	}
	if _, err := model.Sample(-1, rand.New(rand.NewSource(1))); err == nil {
		t.Errorf("Sample should reject a negative count")
	}
	if _, err := model.Sample(1, nil); err == nil {
		t.Errorf("Sample should reject a nil source")
	}
}

func TestMirrorRejectsBadLogs(t *testing.T) {
	dom := mustDomain(t, []string{"a"}, []int{2})
	if _, err := NewMirror(10).Fit(nil, dom, nil); err == nil {
		t.Errorf("Fit should reject an empty log")
	}
	m := jointMeasurement(dom, []float64{1, math.NaN()})
	if _, err := NewMirror(10).Fit([]measure.Measurement{m}, dom, nil); err == nil {
		t.Errorf("Fit should reject non-finite outcomes")
	}
}
