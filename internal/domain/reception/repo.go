package reception

import (
	"context"
	"embed"
	"io/fs"

	"github.com/medsoft/medsoft/internal/platform/db"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the schema files, one subdirectory per driver.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	ListRecent(ctx context.Context, limit int) ([]*Patient, error)
	SaveMessage(ctx context.Context, m *Message) error
	LastMessages(ctx context.Context, kind string, n int) ([]*Message, error)
}

// NewRepository picks the implementation matching the open database.
func NewRepository(d *db.Database) Repository {
	if d.Pool != nil {
		return NewRepoPG(d.Pool)
	}
	return NewRepoSQLite(d.SQL)
}
