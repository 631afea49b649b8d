package hl7v2

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Header holds the MSH routing fields shared by every generated message.
type Header struct {
	SendingApp        string // MSH-3
	SendingFacility   string // MSH-4
	ReceivingApp      string // MSH-5
	ReceivingFacility string // MSH-6
	Version           string // MSH-12
}

// DefaultHeader routes messages from the reception desk to the hospital system.
func DefaultHeader() Header {
	return Header{
		SendingApp:        "Reception",
		SendingFacility:   "Clinic",
		ReceivingApp:      "HIS",
		ReceivingFacility: "Hospital",
		Version:           "2.5",
	}
}

// Patient carries the PID fields of a registration.
type Patient struct {
	ID         string
	FamilyName string
	GivenName  string
	BirthDate  string // YYYY-MM-DD
}

// Generator builds outbound HL7v2 messages.
type Generator struct {
	header    Header
	clock     clockwork.Clock
	controlID func() string
}

// NewGenerator creates a generator stamping messages with clock.
func NewGenerator(header Header, clock clockwork.Clock) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		header:    header,
		clock:     clock,
		controlID: func() string { return uuid.New().String() },
	}
}

// GenerateADTA04 builds an ADT^A04 (register a patient) message. Segments are
// separated by CR and the message ends with a trailing CR.
func (g *Generator) GenerateADTA04(p Patient) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("hl7v2: patient id is required")
	}

	segments := []string{
		g.buildMSH("ADT", "A04"),
		buildPID(p),
		buildPV1("O"),
	}
	return strings.Join(segments, "\r") + "\r", nil
}

// buildMSH constructs an MSH segment header for the given message type and trigger event.
func (g *Generator) buildMSH(msgType, trigger string) string {
	timestamp := g.clock.Now().UTC().Format("20060102150405")
	h := g.header

	return fmt.Sprintf("MSH|^~\\&|%s|%s|%s|%s|%s||%s^%s|%s|P|%s",
		h.SendingApp, h.SendingFacility, h.ReceivingApp, h.ReceivingFacility,
		timestamp, msgType, trigger, g.controlID(), h.Version)
}

// buildPID constructs a PID (patient identification) segment.
// PID-3 carries the local id, PID-5 family^given and PID-7 the birth date.
func buildPID(p Patient) string {
	name := escapeHL7(p.FamilyName) + "^" + escapeHL7(p.GivenName)
	dob := strings.ReplaceAll(p.BirthDate, "-", "")
	return fmt.Sprintf("PID|||%s||%s||%s|", escapeHL7(p.ID), name, dob)
}

// buildPV1 constructs a PV1 (patient visit) segment with only the patient class.
func buildPV1(patientClass string) string {
	return "PV1||" + patientClass
}

// escapeHL7 escapes special characters in HL7v2 field values.
// The HL7 escape sequences are:
//
//	\F\ = |  (field separator)
//	\S\ = ^  (component separator)
//	\R\ = ~  (repetition separator)
//	\E\ = \  (escape character)
//	\T\ = &  (subcomponent separator)
func escapeHL7(s string) string {
	// Escape backslash first to avoid double-escaping
	s = strings.ReplaceAll(s, "\\", "\\E\\")
	s = strings.ReplaceAll(s, "|", "\\F\\")
	s = strings.ReplaceAll(s, "^", "\\S\\")
	s = strings.ReplaceAll(s, "~", "\\R\\")
	s = strings.ReplaceAll(s, "&", "\\T\\")
	return s
}
