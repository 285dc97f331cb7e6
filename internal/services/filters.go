package services

import (
	"slices"
	"time"

	"program-enrollment/backend/pkg/models"
)

// filterRetired returns the non-retired items of items in their original order.
func filterRetired[T any](items []*T, retired func(*T) bool) []*T {
	kept := make([]*T, 0, len(items))
	for _, item := range items {
		if item == nil || retired(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func filterRetiredPrograms(programs []*models.Program) []*models.Program {
	return filterRetired(programs, func(p *models.Program) bool { return p.Retired })
}

// filterRetiredWorkflowsAndStates drops retired workflows, then retired
// states of the workflows that remain.
func filterRetiredWorkflowsAndStates(workflows []*models.Workflow) []*models.Workflow {
	kept := filterRetired(workflows, func(w *models.Workflow) bool { return w.Retired })
	for _, w := range kept {
		w.States = filterRetired(w.States, func(s *models.State) bool { return s.Retired })
	}
	return kept
}

func filterRetiredOutcomes(outcomes []*models.Outcome) []*models.Outcome {
	return filterRetired(outcomes, func(o *models.Outcome) bool { return o.Retired })
}

// cleanProgram removes retired workflows, states and outcomes from p in place.
func cleanProgram(p *models.Program) {
	p.AllWorkflows = filterRetiredWorkflowsAndStates(p.AllWorkflows)
	if p.OutcomesConcept != nil {
		p.OutcomesConcept.SetMembers = filterRetiredOutcomes(p.OutcomesConcept.SetMembers)
	}
}

// filterRetiredEnrollments drops enrollments whose program is retired.
func filterRetiredEnrollments(enrollments []*models.PatientProgram) []*models.PatientProgram {
	return filterRetired(enrollments, func(pp *models.PatientProgram) bool {
		return pp.Program != nil && pp.Program.Retired
	})
}

// GroupPrograms partitions enrollments into active and ended ones. Each
// group is stable-sorted by date ascending and then reversed, so the most
// recent comes first and equal dates end up in reverse input order.
// Enrollments must already carry parsed dates.
func GroupPrograms(enrollments []*models.PatientProgram) *models.GroupedPrograms {
	grouped := &models.GroupedPrograms{
		ActivePrograms: []*models.PatientProgram{},
		EndedPrograms:  []*models.PatientProgram{},
	}
	for _, pp := range filterRetiredEnrollments(enrollments) {
		if pp.Program != nil {
			pp.Program.AllWorkflows = filterRetiredWorkflowsAndStates(pp.Program.AllWorkflows)
		}
		if pp.IsEnded() {
			grouped.EndedPrograms = append(grouped.EndedPrograms, pp)
		} else {
			grouped.ActivePrograms = append(grouped.ActivePrograms, pp)
		}
	}

	sortDescending(grouped.ActivePrograms, func(pp *models.PatientProgram) *time.Time { return pp.DateEnrolled })
	sortDescending(grouped.EndedPrograms, func(pp *models.PatientProgram) *time.Time { return pp.DateCompleted })
	return grouped
}

// sortDescending sorts a stable-ascending then reverses it. A nil date sorts
// as the zero time.
func sortDescending(programs []*models.PatientProgram, date func(*models.PatientProgram) *time.Time) {
	key := func(pp *models.PatientProgram) time.Time {
		if d := date(pp); d != nil {
			return *d
		}
		return time.Time{}
	}
	slices.SortStableFunc(programs, func(a, b *models.PatientProgram) int {
		return key(a).Compare(key(b))
	})
	slices.Reverse(programs)
}

// StatePayload is an enrollment state entry sent when transitioning state.
type StatePayload struct {
	State     models.Reference `json:"state"`
	UUID      string           `json:"uuid,omitempty"`
	StartDate time.Time        `json:"startDate"`
}

// ConstructStatesPayload returns the states sent by SavePatientProgram:
// empty when stateID is empty, otherwise a single entry. onDate is used as
// given.
func ConstructStatesPayload(stateID string, onDate time.Time, currentStateRecordID string) []*StatePayload {
	states := []*StatePayload{}
	if stateID != "" {
		states = append(states, &StatePayload{
			State:     models.Reference{UUID: stateID},
			UUID:      currentStateRecordID,
			StartDate: onDate,
		})
	}
	return states
}
