package websocket

import "encoding/json"

// Event types understood by the dashboard.
const (
	EventPatients = "patients"
	EventPing     = "ping"
)

// Event is a tagged snapshot pushed to every dashboard client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// PingEvent is the heartbeat sent on idle connections.
func PingEvent() Event {
	return Event{Type: EventPing}
}

// PatientsEvent wraps a patient list. A nil list is sent as an empty array
// so that dashboards can always iterate over data.
func PatientsEvent[T any](patients []T) Event {
	if patients == nil {
		patients = []T{}
	}
	return Event{Type: EventPatients, Data: patients}
}

// Encode serializes the event into a text frame payload.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
