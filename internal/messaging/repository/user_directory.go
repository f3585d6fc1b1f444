package repository

import (
	"context"

	errprocess "school_messaging_service/pkg/err"

	"github.com/jackc/pgx/v4/pgxpool"
)

// UserDirectory answers whether a user id belongs to a known account.
// Accounts live in the identity provider; messaging only reads.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// memberStatusDeleted member.status of a removed account
const memberStatusDeleted = 3

// PgUserDirectory reads the identity provider's member table.
type PgUserDirectory struct {
	pool *pgxpool.Pool
}

var _ UserDirectory = (*PgUserDirectory)(nil)

// NewPgUserDirectory create PgUserDirectory
func NewPgUserDirectory(pool *pgxpool.Pool) *PgUserDirectory {
	return &PgUserDirectory{pool: pool}
}

// Exists deleted accounts count as unknown
func (d *PgUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM member WHERE member_id = $1 AND status <> $2)`,
		userID, memberStatusDeleted,
	).Scan(&ok)
	if err != nil {
		return false, errprocess.Wrap(errprocess.TransientStoreFailure, "lookup member", err)
	}
	return ok, nil
}

// OpenUserDirectory accepts every non empty id. Used when no member table
// is reachable (sqlite single node mode).
type OpenUserDirectory struct{}

var _ UserDirectory = OpenUserDirectory{}

// Exists true for any non empty id
func (OpenUserDirectory) Exists(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}
