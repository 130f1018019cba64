// Package profile implements the fetch, edit and replace cycle of the patient profile.
package profile

import (
	"sort"
	"strconv"
	"strings"

	"example.com/sia/internal/domain"
)

// Form is the flat, editable field set of PatientMetadata. Age is kept as typed text so
// invalid input can be reported instead of silently coerced.
type Form struct {
	PatientName    string
	PatientAge     string
	City           string
	Language       string
	Diagnosis      string
	PatientAddress *string
	State          *string
	Country        *string
	Profession     *string
	Education      *string
}

// FieldErrors maps wire field names to the violation found in that field.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid profile: " + strings.Join(parts, "; ")
}

// FormFromMetadata maps metadata into form values, keeping nulls.
func FormFromMetadata(meta domain.PatientMetadata) Form {
	return Form{
		PatientName:    meta.PatientName,
		PatientAge:     strconv.Itoa(meta.PatientAge),
		City:           meta.City,
		Language:       meta.Language,
		Diagnosis:      meta.Diagnosis,
		PatientAddress: clone(meta.PatientAddress),
		State:          clone(meta.State),
		Country:        clone(meta.Country),
		Profession:     clone(meta.Profession),
		Education:      clone(meta.Education),
	}
}

// Validate reports every field violation, or nil.
func (f Form) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.PatientName) == "" {
		errs["patient_name"] = "Patient Name is required"
	}
	if _, msg := parseAge(f.PatientAge); msg != "" {
		errs["patient_age"] = msg
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Metadata converts a valid form into the replacement metadata. Optional fields are copied as
// they are: only a nil field is sent as null, so an empty string survives a save.
func (f Form) Metadata() (domain.PatientMetadata, error) {
	if errs := f.Validate(); errs != nil {
		return domain.PatientMetadata{}, errs
	}
	age, _ := parseAge(f.PatientAge)
	return domain.PatientMetadata{
		PatientName:    f.PatientName,
		PatientAge:     age,
		City:           f.City,
		Language:       f.Language,
		Diagnosis:      f.Diagnosis,
		PatientAddress: clone(f.PatientAddress),
		State:          clone(f.State),
		Country:        clone(f.Country),
		Profession:     clone(f.Profession),
		Education:      clone(f.Education),
	}, nil
}

func parseAge(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "Age is required"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if _, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return 0, "Age must be a whole number"
		}
		return 0, "Age must be a number"
	}
	if n < 0 {
		return 0, "Age must be a non-negative number"
	}
	return n, ""
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
