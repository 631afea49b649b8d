package chief

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsoft/medsoft/internal/platform/fhir"
	"github.com/medsoft/medsoft/internal/platform/websocket"
)

var testNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *fakePublisher) {
	repo := newMockRepo()
	pub := &fakePublisher{}
	svc := NewService(repo, pub, zerolog.Nop(), Options{
		ListLimit: 3,
		Clock:     clockwork.NewFakeClockAt(testNow),
	})
	return svc, repo, pub
}

func registration(id int64, first string) Registration {
	return Registration{PatientID: id, FirstName: first, LastName: "Doe", DOB: "1980-05-15"}
}

func TestService_RegisterFromReceptionPublishesList(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	reg := registration(42, "John")
	reg.HL7Raw = "MSH|^~\\&|Reception\rPID|||42\r"
	p, err := svc.RegisterFromReception(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, testNow, p.ReceivedAt)

	require.Len(t, repo.messages, 1)
	assert.Equal(t, KindHL7, repo.messages[0].Kind)
	assert.Equal(t, reg.HL7Raw, repo.messages[0].Raw)

	require.Equal(t, 1, pub.count())
	assert.Equal(t, websocket.EventPatients, pub.events[0].Type)
	list := pub.lastList()
	require.Len(t, list, 1)
	assert.Equal(t, "John", list[0].FirstName)
}

func TestService_RegisterFromReceptionWithoutHL7(t *testing.T) {
	svc, repo, pub := newTestService()

	_, err := svc.RegisterFromReception(context.Background(), registration(1, "Ann"))
	require.NoError(t, err)
	assert.Empty(t, repo.messages)
	assert.Equal(t, 1, pub.count())
}

func TestService_RegisterFromReceptionUpsertsBySource(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	_, err := svc.RegisterFromReception(ctx, registration(5, "Ann"))
	require.NoError(t, err)
	_, err = svc.RegisterFromReception(ctx, registration(5, "Anne"))
	require.NoError(t, err)

	assert.Len(t, repo.patients, 1)
	list := pub.lastList()
	require.Len(t, list, 1)
	assert.Equal(t, "Anne", list[0].FirstName)
}

func TestService_RegisterFromReceptionValidation(t *testing.T) {
	svc, repo, pub := newTestService()

	_, err := svc.RegisterFromReception(context.Background(), Registration{PatientID: 1})
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, repo.patients)
	assert.Zero(t, pub.count())
}

func TestService_PublishesNewestFirstUpToLimit(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	for i, name := range []string{"A", "B", "C", "D"} {
		_, err := svc.RegisterFromReception(ctx, registration(int64(i+1), name))
		require.NoError(t, err)
	}

	assert.Equal(t, 4, pub.count())
	list := pub.lastList()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"D", "C", "B"}, []string{list[0].FirstName, list[1].FirstName, list[2].FirstName})
}

func TestService_IngestFHIR(t *testing.T) {
	svc, repo, pub := newTestService()

	raw, err := fhir.NewPatient("Jane", "Roe", "1975-12-01").Marshal()
	require.NoError(t, err)

	id, err := svc.IngestFHIR(context.Background(), raw)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, repo.patients, 1)
	stored := repo.patients[0]
	assert.Equal(t, id, stored.FHIRID)
	assert.Equal(t, "Jane", stored.FirstName)
	assert.Equal(t, "Roe", stored.LastName)
	assert.Nil(t, stored.SourceID)

	require.Len(t, repo.messages, 1)
	assert.Equal(t, KindFHIR, repo.messages[0].Kind)
	assert.Equal(t, 1, pub.count())
}

func TestService_IngestFHIRAssignsMissingID(t *testing.T) {
	svc, repo, _ := newTestService()

	raw := []byte(`{"resourceType":"Patient","name":[{"family":"Roe","given":["Jane"]}],"birthDate":"1975-12-01"}`)
	id, err := svc.IngestFHIR(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, id, repo.patients[0].FHIRID)
}

func TestService_IngestFHIRRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"bad json", `{`, nil},
		{"wrong type", `{"resourceType":"Observation"}`, fhir.ErrNotPatient},
		{"missing given", `{"resourceType":"Patient","name":[{"family":"Roe"}],"birthDate":"1975-12-01"}`, fhir.ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, pub := newTestService()

			_, err := svc.IngestFHIR(context.Background(), []byte(tt.raw))
			require.ErrorIs(t, err, ErrValidation)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Empty(t, repo.patients)
			assert.Len(t, repo.messages, 1, "raw payload is kept even when rejected")
			assert.Zero(t, pub.count())
		})
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	p, err := svc.RegisterFromReception(ctx, registration(1, "Ann"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.Empty(t, repo.patients)
	assert.Equal(t, 2, pub.count())
	assert.Empty(t, pub.lastList())

	err = svc.Delete(ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 2, pub.count())
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, repo, pub := newTestService()
	pub.full = true

	_, err := svc.RegisterFromReception(context.Background(), registration(1, "Ann"))
	require.NoError(t, err)
	assert.Len(t, repo.patients, 1)

	repo.listErr = errDB
	_, err = svc.RegisterFromReception(context.Background(), registration(2, "Bo"))
	require.NoError(t, err)
}

func TestService_Snapshot(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ev, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	data, err := ev.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"patients","data":[]}`, string(data))

	_, err = svc.RegisterFromReception(ctx, registration(3, "Cy"))
	require.NoError(t, err)

	ev, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	data, err = ev.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"patients","data":[{"id":1,"fhir_id":"","first_name":"Cy","last_name":"Doe","dob":"1980-05-15"}]}`, string(data))
}

func TestService_SnapshotError(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.listErr = errDB

	_, err := svc.Snapshot(context.Background())
	assert.ErrorIs(t, err, errDB)
}

func TestService_Defaults(t *testing.T) {
	svc := NewService(newMockRepo(), &fakePublisher{}, zerolog.Nop(), Options{})
	assert.Equal(t, defaultListLimit, svc.opts.ListLimit)
	assert.NotNil(t, svc.opts.Clock)
}

func TestService_LastMessagesDefaultCount(t *testing.T) {
	svc, repo, _ := newTestService()
	for i := 0; i < 7; i++ {
		require.NoError(t, repo.SaveMessage(context.Background(), &Message{Kind: KindHL7, Raw: "MSH"}))
	}

	msgs, err := svc.LastMessages(context.Background(), KindHL7, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, defaultMessageCount)
}

