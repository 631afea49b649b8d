package reception

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message kinds stored in the outbound log.
const (
	KindHL7  = "hl7"
	KindFHIR = "fhir"
)

// ErrValidation marks input rejected before anything is stored.
var ErrValidation = errors.New("validation failed")

// Patient is a locally registered patient.
type Patient struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	DOB       string    `json:"dob"`
	CreatedAt time.Time `json:"-"`
}

// PatientInput is the registration form submitted by the reception desk.
type PatientInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"` // YYYY-MM-DD
}

// Normalize trims the input and checks that names are present and the
// birth date is a calendar date.
func (in PatientInput) Normalize() (PatientInput, error) {
	out := PatientInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		DOB:       strings.TrimSpace(in.DOB),
	}
	if out.FirstName == "" || out.LastName == "" {
		return out, fmt.Errorf("%w: first_name and last_name are required", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", out.DOB); err != nil {
		return out, fmt.Errorf("%w: dob must be YYYY-MM-DD", ErrValidation)
	}
	return out, nil
}

// Message is one outbound HL7 or FHIR payload as sent to the chief service.
type Message struct {
	ID        int64     `json:"-"`
	Kind      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Raw       string    `json:"raw"`
}
