package reception

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medsoft/medsoft/internal/platform/fhir"
	"github.com/medsoft/medsoft/internal/platform/metrics"
)

// Protocols understood by ChiefClient.
const (
	ProtocolHL7  = "hl7"
	ProtocolFHIR = "fhir"
)

// Notification is one registration forwarded to the chief service. HL7 is
// set in HL7 mode, FHIR in FHIR mode.
type Notification struct {
	Patient *Patient
	HL7     string
	FHIR    *fhir.Patient
}

// ChiefNotifier forwards registrations to the chief service.
type ChiefNotifier interface {
	Notify(ctx context.Context, n Notification) error
}

// registrationPayload is the JSON body of POST /api/register-patient.
type registrationPayload struct {
	PatientID int64  `json:"patient_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	HL7Raw    string `json:"hl7_raw,omitempty"`
}

// ClientOption configures a ChiefClient.
type ClientOption func(*ChiefClient)

// WithHTTPClient overrides the default HTTP client used for notifications.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cc *ChiefClient) { cc.httpClient = c }
}

// ChiefClient posts registrations to the chief service over HTTP(S).
type ChiefClient struct {
	baseURL    string
	protocol   string
	httpClient *http.Client
}

// NewChiefClient creates a client for the chief service at baseURL. When
// insecure is set, the chief's certificate is not verified (self-signed
// development certificates).
func NewChiefClient(baseURL, protocol string, timeout time.Duration, insecure bool, opts ...ClientOption) *ChiefClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev certs
	}

	c := &ChiefClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		protocol: protocol,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Notify delivers n using the configured protocol. Any non-2xx response is
// an error.
func (c *ChiefClient) Notify(ctx context.Context, n Notification) error {
	var (
		path        string
		contentType string
		body        []byte
		err         error
	)

	switch c.protocol {
	case ProtocolFHIR:
		if n.FHIR == nil {
			return fmt.Errorf("notify chief: missing FHIR resource")
		}
		path, contentType = "/fhir/Patient", "application/fhir+json"
		body, err = n.FHIR.Marshal()
	default:
		path, contentType = "/api/register-patient", "application/json"
		body, err = json.Marshal(registrationPayload{
			PatientID: n.Patient.ID,
			FirstName: n.Patient.FirstName,
			LastName:  n.Patient.LastName,
			DOB:       n.Patient.DOB,
			HL7Raw:    n.HL7,
		})
	}
	if err != nil {
		return fmt.Errorf("notify chief: encode: %w", err)
	}

	err = c.post(ctx, path, contentType, body)
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.ChiefNotifications.WithLabelValues(c.protocol, result).Inc()
	return err
}

func (c *ChiefClient) post(ctx context.Context, path, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify chief: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify chief: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read at most 1KB of response body.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify chief: non-2xx response: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
