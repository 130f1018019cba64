package domain

// PatientMetadata is replaced wholesale on every profile save.
type PatientMetadata struct {
	PatientName    string  `json:"patient_name"`
	PatientAge     int     `json:"patient_age"`
	City           string  `json:"city"`
	Language       string  `json:"language"`
	Diagnosis      string  `json:"diagnosis"`
	PatientAddress *string `json:"patient_address"`
	State          *string `json:"state"`
	Country        *string `json:"country"`
	Profession     *string `json:"profession"`
	Education      *string `json:"education"`
}

// Profile is one-to-one with a user.
type Profile struct {
	UserID   string          `json:"user_id"`
	Metadata PatientMetadata `json:"metadata"`
}
