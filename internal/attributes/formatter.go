// Package attributes converts between program attribute values and the
// backend's attribute records and type definitions.
package attributes

import (
	"fmt"
	"time"

	"program-enrollment/backend/internal/dateutil"
	"program-enrollment/backend/pkg/models"
)

// Datatype class names with special value handling.
const (
	ConceptFormat              = "org.openmrs.Concept"
	ConceptDatatypeFormat      = "org.openmrs.customdatatype.datatype.ConceptDatatype"
	AttributableDateFormat     = "org.openmrs.util.AttributableDate"
	DateDatatypeFormat         = "org.openmrs.customdatatype.datatype.DateDatatype"
	BooleanDatatypeFormat      = "org.openmrs.customdatatype.datatype.BooleanDatatype"
	FreeTextDatatypeFormat     = "org.openmrs.customdatatype.datatype.FreeTextDatatype"
	LongFreeTextDatatypeFormat = "org.openmrs.customdatatype.datatype.LongFreeTextDatatype"
)

// Formatter turns attribute values keyed by attribute type name into
// backend attribute records.
type Formatter struct {
	dates *dateutil.Formatter
}

// NewFormatter creates a Formatter that renders date values with dates.
func NewFormatter(dates *dateutil.Formatter) *Formatter {
	if dates == nil {
		dates = dateutil.New(nil)
	}
	return &Formatter{dates: dates}
}

// GetMrsAttributes returns one record per attribute type, in type order.
// Types without a usable value produce a voided record.
func (f *Formatter) GetMrsAttributes(values map[string]any, types []*models.AttributeType) []*models.AttributeRecord {
	records := make([]*models.AttributeRecord, 0, len(types))
	for _, at := range types {
		if at == nil {
			continue
		}
		record := &models.AttributeRecord{
			AttributeType: models.Reference{UUID: at.UUID},
		}
		value, ok := f.formatValue(at.Format, values[at.Name])
		if ok {
			record.Value = value
		} else {
			record.Voided = true
		}
		records = append(records, record)
	}
	return records
}

// RemoveUnfilledAttributes drops voided records and records without a value.
func (f *Formatter) RemoveUnfilledAttributes(records []*models.AttributeRecord) []*models.AttributeRecord {
	filled := make([]*models.AttributeRecord, 0, len(records))
	for _, r := range records {
		if r == nil || r.Voided || r.Value == "" {
			continue
		}
		filled = append(filled, r)
	}
	return filled
}

func (f *Formatter) formatValue(format string, value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case models.ConceptAnswer:
		return v.ConceptUUID, v.ConceptUUID != ""
	case *models.ConceptAnswer:
		if v == nil {
			return "", false
		}
		return v.ConceptUUID, v.ConceptUUID != ""
	case map[string]any:
		conceptUUID, _ := v["conceptUuid"].(string)
		return conceptUUID, conceptUUID != ""
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return f.formatTime(format, v), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return "", false
		}
		return f.formatTime(format, *v), true
	default:
		return fmt.Sprint(v), true
	}
}

func (f *Formatter) formatTime(format string, t time.Time) string {
	switch format {
	case AttributableDateFormat, DateDatatypeFormat:
		return f.dates.FormatDate(t)
	default:
		return f.dates.Format(t)
	}
}
