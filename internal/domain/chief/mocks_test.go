package chief

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/medsoft/medsoft/internal/platform/websocket"
)

// =========== Mock Repository ===========

type mockRepo struct {
	mu       sync.Mutex
	nextID   int64
	patients []*Patient
	messages []*Message
	listErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func (m *mockRepo) UpsertBySource(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.SourceID != nil && p.SourceID != nil && *existing.SourceID == *p.SourceID {
			existing.FirstName, existing.LastName, existing.DOB = p.FirstName, p.LastName, p.DOB
			existing.ReceivedAt = p.ReceivedAt
			p.ID = existing.ID
			return nil
		}
	}
	m.insertLocked(p)
	return nil
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(p)
	return nil
}

func (m *mockRepo) insertLocked(p *Patient) {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.patients = append(m.patients, &cp)
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.patients {
		if p.ID == id {
			m.patients = append(m.patients[:i], m.patients[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepo) ListRecent(_ context.Context, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*Patient, 0, limit)
	for i := len(m.patients) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.patients[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) SaveMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *mockRepo) LastMessages(_ context.Context, kind string, n int) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Message, 0, n)
	for _, msg := range m.messages {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// =========== Fake Publisher ===========

type fakePublisher struct {
	mu     sync.Mutex
	events []websocket.Event
	full   bool
}

func (f *fakePublisher) Publish(ev websocket.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

// lastList returns the patient list carried by the newest published event.
func (f *fakePublisher) lastList() []*Patient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	list, _ := f.events[len(f.events)-1].Data.([]*Patient)
	return list
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var errDB = errors.New("database unavailable")
