package models

import "time"

// Reference points at another backend resource by uuid.
type Reference struct {
	UUID    string `json:"uuid"`
	Display string `json:"display,omitempty"`
}

// PatientState records an enrollment occupying a workflow state.
type PatientState struct {
	UUID      string `json:"uuid,omitempty"`
	State     *State `json:"state,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Voided    bool   `json:"voided,omitempty"`
}

// ProgramAttribute is an attribute value stored on an enrollment.
type ProgramAttribute struct {
	UUID          string     `json:"uuid,omitempty"`
	AttributeType *Reference `json:"attributeType,omitempty"`
	Value         any        `json:"value,omitempty"`
	Voided        bool       `json:"voided,omitempty"`
}

// PatientProgram is an enrollment linking a patient to a program.
type PatientProgram struct {
	UUID          string              `json:"uuid"`
	Display       string              `json:"display,omitempty"`
	Patient       *Reference          `json:"patient,omitempty"`
	Program       *Program            `json:"program,omitempty"`
	DateEnrolled  *time.Time          `json:"dateEnrolled,omitempty"`
	DateCompleted *time.Time          `json:"dateCompleted,omitempty"`
	Outcome       *Concept            `json:"outcome,omitempty"`
	Attributes    []*ProgramAttribute `json:"attributes,omitempty"`
	States        []*PatientState     `json:"states,omitempty"`
	Voided        bool                `json:"voided,omitempty"`
}

// IsEnded reports whether the enrollment has been completed.
func (p *PatientProgram) IsEnded() bool {
	return p.DateCompleted != nil
}

// GroupedPrograms partitions a patient's enrollments, most recent first.
type GroupedPrograms struct {
	ActivePrograms []*PatientProgram `json:"activePrograms"`
	EndedPrograms  []*PatientProgram `json:"endedPrograms"`
}

// ProgramAttributeType is the backend definition of an enrollment attribute.
type ProgramAttributeType struct {
	UUID              string     `json:"uuid"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	DatatypeClassname string     `json:"datatypeClassname,omitempty"`
	SortWeight        *float64   `json:"sortWeight,omitempty"`
	Concept           *Concept   `json:"concept,omitempty"`
	Answers           []*Concept `json:"answers,omitempty"`
}

// AttributeAnswer is a selectable coded answer of a concept attribute.
type AttributeAnswer struct {
	FullySpecifiedName string `json:"fullySpecifiedName"`
	Description        string `json:"description"`
	ConceptID          string `json:"conceptId"`
}

// AttributeType is a typed attribute descriptor ready for display.
type AttributeType struct {
	UUID               string             `json:"uuid"`
	SortWeight         *float64           `json:"sortWeight,omitempty"`
	Name               string             `json:"name"`
	FullySpecifiedName string             `json:"fullySpecifiedName"`
	Description        string             `json:"description"`
	Format             string             `json:"format"`
	Answers            []*AttributeAnswer `json:"answers"`
	Required           bool               `json:"required"`
	Concept            *Concept           `json:"concept,omitempty"`
}

// AttributeRecord is the backend shape of an attribute sent on enrollment.
type AttributeRecord struct {
	AttributeType Reference `json:"attributeType"`
	Value         string    `json:"value,omitempty"`
	Voided        bool      `json:"voided,omitempty"`
}

// ConceptAnswer is the value supplied for a concept-typed attribute.
type ConceptAnswer struct {
	ConceptUUID string `json:"conceptUuid"`
	Value       string `json:"value,omitempty"`
}
