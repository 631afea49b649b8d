package reception

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medsoft/medsoft/internal/platform/db"
)

type repoSQLite struct {
	db *sql.DB
}

func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &repoSQLite{db: sqlDB}
}

func (r *repoSQLite) CreatePatient(ctx context.Context, p *Patient) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (first_name, last_name, dob, created_at) VALUES (?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.DOB, db.FormatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoSQLite) ListRecent(ctx context.Context, limit int) ([]*Patient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, dob, created_at FROM patients ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]*Patient, 0, limit)
	for rows.Next() {
		var p Patient
		var createdAt string
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DOB, &createdAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		if p.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}

func (r *repoSQLite) SaveMessage(ctx context.Context, m *Message) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (kind, created_at, raw) VALUES (?, ?, ?)`,
		m.Kind, db.FormatTime(m.CreatedAt), m.Raw,
	)
	if err != nil {
		return fmt.Errorf("save %s message: %w", m.Kind, err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save %s message: %w", m.Kind, err)
	}
	return nil
}

func (r *repoSQLite) LastMessages(ctx context.Context, kind string, n int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, created_at, raw FROM messages WHERE kind = ? ORDER BY id DESC LIMIT ?`, kind, n)
	if err != nil {
		return nil, fmt.Errorf("list %s messages: %w", kind, err)
	}
	defer rows.Close()

	messages := make([]*Message, 0, n)
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Kind, &createdAt, &m.Raw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
