package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotPatient is returned when a payload's resourceType is not Patient.
	ErrNotPatient = errors.New("not a Patient resource")
	// ErrMissingFields is returned when family, given or birthDate is empty.
	ErrMissingFields = errors.New("missing required fields")
)

// Patient is the subset of the FHIR R4 Patient resource exchanged between
// reception and the chief service.
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Meta         *Meta       `json:"meta,omitempty"`
	Name         []HumanName `json:"name,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

// NewPatient builds a Patient resource with a fresh id and a single official name.
func NewPatient(firstName, lastName, birthDate string) *Patient {
	return &Patient{
		ResourceType: "Patient",
		ID:           uuid.New().String(),
		Name: []HumanName{{
			Use:    "official",
			Family: strings.TrimSpace(lastName),
			Given:  []string{strings.TrimSpace(firstName)},
		}},
		BirthDate: birthDate,
	}
}

// Marshal encodes the resource as FHIR JSON.
func (p *Patient) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// PatientFields are the values extracted from an inbound Patient resource.
type PatientFields struct {
	ID        string
	Family    string
	Given     string
	BirthDate string
}

// DecodePatient extracts the first name entry and birth date of a Patient
// resource. Only the first HumanName and its first given name are read.
func DecodePatient(raw []byte) (PatientFields, error) {
	var p Patient
	if err := json.Unmarshal(raw, &p); err != nil {
		return PatientFields{}, fmt.Errorf("bad json: %w", err)
	}
	if p.ResourceType != "Patient" {
		return PatientFields{}, ErrNotPatient
	}

	var fields PatientFields
	if len(p.Name) > 0 {
		fields.Family = strings.TrimSpace(p.Name[0].Family)
		if len(p.Name[0].Given) > 0 {
			fields.Given = strings.TrimSpace(p.Name[0].Given[0])
		}
	}
	fields.BirthDate = strings.TrimSpace(p.BirthDate)
	fields.ID = strings.TrimSpace(p.ID)

	if fields.Family == "" || fields.Given == "" || fields.BirthDate == "" {
		return PatientFields{}, ErrMissingFields
	}
	return fields, nil
}
