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

package adaptive

import "fmt"

// Phase identifies a stage of the mechanism's run. Phases advance
// strictly forward; there are no back-edges and no retries, because a
// committed noisy release has already spent its privacy budget.
type Phase int

const (
	// PhaseInit validates configuration and converts the budget.
	PhaseInit Phase = iota
	// PhaseMeasure releases noisy marginals for every target-augmented
	// single attribute and all of their subsets.
	PhaseMeasure
	// PhaseEstimate fits a first model to the measurement log.
	PhaseEstimate
	// PhaseSelect privately picks the next cliques to measure.
	PhaseSelect
	// PhaseRemeasure releases noisy marginals for the selected cliques.
	PhaseRemeasure
	// PhaseFinal refits the model over the full log, warm-started.
	PhaseFinal
	// PhaseDone means the synthetic sample has been produced.
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseInit:      "INIT",
	PhaseMeasure:   "PHASE1_MEASURE",
	PhaseEstimate:  "PHASE1_ESTIMATE",
	PhaseSelect:    "PHASE2_SELECT",
	PhaseRemeasure: "PHASE3_MEASURE",
	PhaseFinal:     "FINAL_ESTIMATE",
	PhaseDone:      "DONE",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// advance moves the run to the next phase, enforcing the strictly
// sequential order.
func (r *Result) advance(to Phase) error {
	if to != r.phase+1 {
		return fmt.Errorf("cannot advance from %v to %v", r.phase, to)
	}
	r.phase = to
	r.Phases = append(r.Phases, to)
	return nil
}
