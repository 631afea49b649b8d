package reception

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// =========== Mock Repository ===========

type mockRepo struct {
	mu       sync.Mutex
	patients []*Patient
	messages []*Message
	failNext error
}

func newMockRepo() *mockRepo {
	return &mockRepo{}
}

func (m *mockRepo) CreatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	p.ID = int64(len(m.patients) + 1)
	cp := *p
	m.patients = append(m.patients, &cp)
	return nil
}

func (m *mockRepo) ListRecent(_ context.Context, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Patient, 0, limit)
	for i := len(m.patients) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.patients[i])
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

// =========== Mock Notifier ===========

type mockNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	calls int
}

func (m *mockNotifier) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

var errDown = errors.New("chief unreachable")
