package attributes

import (
	"slices"

	"program-enrollment/backend/pkg/models"
)

// TypeMapper maps backend attribute type definitions to typed descriptors.
type TypeMapper struct{}

// NewTypeMapper creates a TypeMapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// MapFromOpenmrsAttributeTypes converts raw attribute types, in order. A type
// is required when its name appears in mandatory.
func (m *TypeMapper) MapFromOpenmrsAttributeTypes(raw []*models.ProgramAttributeType, mandatory []string) []*models.AttributeType {
	types := make([]*models.AttributeType, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		at := &models.AttributeType{
			UUID:               r.UUID,
			SortWeight:         r.SortWeight,
			Name:               r.Name,
			FullySpecifiedName: r.Name,
			Description:        r.Description,
			Format:             r.DatatypeClassname,
			Answers:            []*models.AttributeAnswer{},
			Required:           slices.Contains(mandatory, r.Name),
			Concept:            r.Concept,
		}
		if at.Description == "" {
			at.Description = r.Name
		}
		if r.Concept != nil {
			if name := conceptName(r.Concept); name != "" {
				at.FullySpecifiedName = name
			}
			at.Answers = append(at.Answers, mapAnswers(r.Concept.SetMembers)...)
		}
		at.Answers = append(at.Answers, mapAnswers(r.Answers)...)
		types = append(types, at)
	}
	return types
}

func mapAnswers(concepts []*models.Concept) []*models.AttributeAnswer {
	answers := make([]*models.AttributeAnswer, 0, len(concepts))
	for _, c := range concepts {
		if c == nil || c.Retired {
			continue
		}
		name := conceptName(c)
		answers = append(answers, &models.AttributeAnswer{
			FullySpecifiedName: name,
			Description:        name,
			ConceptID:          c.UUID,
		})
	}
	return answers
}

func conceptName(c *models.Concept) string {
	if c.Name != nil && c.Name.Name != "" {
		return c.Name.Name
	}
	return c.Display
}
