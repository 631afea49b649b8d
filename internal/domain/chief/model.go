package chief

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message kinds kept in the inbound log.
const (
	KindHL7  = "hl7"
	KindFHIR = "fhir"
)

var (
	// ErrNotFound is returned when a patient id does not exist.
	ErrNotFound = errors.New("patient not found")
	// ErrValidation marks a registration or resource that cannot be stored.
	ErrValidation = errors.New("validation failed")
)

// Patient is a patient known to the chief dashboard. SourceID is the
// reception's id for HL7 registrations; FHIRID is the resource id for FHIR
// ingests.
type Patient struct {
	ID         int64     `json:"id"`
	SourceID   *int64    `json:"-"`
	FHIRID     string    `json:"fhir_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	DOB        string    `json:"dob"`
	ReceivedAt time.Time `json:"-"`
}

// Registration is the body reception posts to /api/register-patient.
type Registration struct {
	PatientID int64  `json:"patient_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	HL7Raw    string `json:"hl7_raw,omitempty"`
}

// Validate checks the required fields and trims names in place.
func (r *Registration) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DOB = strings.TrimSpace(r.DOB)
	if r.PatientID <= 0 {
		return fmt.Errorf("%w: patient_id must be positive", ErrValidation)
	}
	if r.FirstName == "" || r.LastName == "" || r.DOB == "" {
		return fmt.Errorf("%w: first_name, last_name and dob are required", ErrValidation)
	}
	return nil
}

// Message is one raw inbound HL7 or FHIR payload.
type Message struct {
	ID        int64     `json:"-"`
	Kind      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Raw       string    `json:"raw"`
}
