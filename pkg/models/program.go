// Package models defines the program enrollment records exchanged with the
// clinical backend.
package models

// Concept is a coded backend concept. Program outcomes are concepts that
// are members of a program's outcomes concept set.
type Concept struct {
	UUID       string     `json:"uuid"`
	Display    string     `json:"display,omitempty"`
	Name       *Name      `json:"name,omitempty"`
	Retired    bool       `json:"retired"`
	SetMembers []*Concept `json:"setMembers,omitempty"`
}

// Name is the localized name of a concept.
type Name struct {
	UUID    string `json:"uuid,omitempty"`
	Name    string `json:"name"`
	Display string `json:"display,omitempty"`
}

// Outcome is a terminal classification recorded when an enrollment ends.
type Outcome = Concept

// State is a step within a workflow that an enrollment can occupy.
type State struct {
	UUID     string   `json:"uuid"`
	Concept  *Concept `json:"concept,omitempty"`
	Retired  bool     `json:"retired"`
	Initial  bool     `json:"initial,omitempty"`
	Terminal bool     `json:"terminal,omitempty"`
}

// Workflow is a named sequence of states within a program.
type Workflow struct {
	UUID    string   `json:"uuid"`
	Concept *Concept `json:"concept,omitempty"`
	Retired bool     `json:"retired"`
	States  []*State `json:"states"`
}

// Program is a clinical care pathway definition a patient can be enrolled into.
type Program struct {
	UUID            string      `json:"uuid"`
	Name            string      `json:"name,omitempty"`
	Description     string      `json:"description,omitempty"`
	Display         string      `json:"display,omitempty"`
	Retired         bool        `json:"retired"`
	AllWorkflows    []*Workflow `json:"allWorkflows"`
	OutcomesConcept *Concept    `json:"outcomesConcept,omitempty"`
}

// Outcomes returns the outcome set members of the program, or nil when the
// program has no outcomes concept.
func (p *Program) Outcomes() []*Outcome {
	if p.OutcomesConcept == nil {
		return nil
	}
	return p.OutcomesConcept.SetMembers
}
