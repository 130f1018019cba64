package cli

import (
	"strings"

	"example.com/sia/internal/profile"
)

// field binds one editable form value to its label and wire name.
type field struct {
	name     string
	label    string
	required *string
	optional **string
}

func fields(f *profile.Form) []field {
	return []field{
		{name: "patient_name", label: "Patient Name", required: &f.PatientName},
		{name: "patient_age", label: "Patient Age", required: &f.PatientAge},
		{name: "city", label: "City", required: &f.City},
		{name: "language", label: "Language", required: &f.Language},
		{name: "diagnosis", label: "Diagnosis", required: &f.Diagnosis},
		{name: "patient_address", label: "Address", optional: &f.PatientAddress},
		{name: "state", label: "State", optional: &f.State},
		{name: "country", label: "Country", optional: &f.Country},
		{name: "profession", label: "Profession", optional: &f.Profession},
		{name: "education", label: "Education", optional: &f.Education},
	}
}

func (f field) display() string {
	if f.required != nil {
		return *f.required
	}
	if *f.optional == nil {
		return "-"
	}
	return **f.optional
}

// set applies typed input. Empty input keeps the value.
func (f field) set(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	if f.required != nil {
		*f.required = input
		return
	}
	if input == "-" {
		*f.optional = nil
		return
	}
	*f.optional = &input
}
