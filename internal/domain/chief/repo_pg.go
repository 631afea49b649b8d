package chief

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool querier
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, source_id, fhir_id, first_name, last_name, dob, received_at`

func (r *repoPG) UpsertBySource(ctx context.Context, p *Patient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (source_id, fhir_id, first_name, last_name, dob, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			dob = EXCLUDED.dob,
			received_at = EXCLUDED.received_at
		RETURNING id`,
		p.SourceID, p.FHIRID, p.FirstName, p.LastName, p.DOB, p.ReceivedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (source_id, fhir_id, first_name, last_name, dob, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.SourceID, p.FHIRID, p.FirstName, p.LastName, p.DOB, p.ReceivedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListRecent(ctx context.Context, limit int) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]*Patient, 0, limit)
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.SourceID, &p.FHIRID, &p.FirstName, &p.LastName, &p.DOB, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}

func (r *repoPG) SaveMessage(ctx context.Context, m *Message) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (kind, created_at, raw) VALUES ($1, $2, $3)
		RETURNING id`,
		m.Kind, m.CreatedAt, m.Raw,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("save %s message: %w", m.Kind, err)
	}
	return nil
}

func (r *repoPG) LastMessages(ctx context.Context, kind string, n int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, created_at, raw
		FROM messages WHERE kind = $1 ORDER BY id DESC LIMIT $2`, kind, n)
	if err != nil {
		return nil, fmt.Errorf("list %s messages: %w", kind, err)
	}
	defer rows.Close()

	messages := make([]*Message, 0, n)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Kind, &m.CreatedAt, &m.Raw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
