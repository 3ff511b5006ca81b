package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrInvalidReference is a foreign key violation, e.g. a program whose
	// channel does not exist.
	ErrInvalidReference = errors.New("store: referenced record not found")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are exposed as methods so a Tx-scoped Store
// hands out repos bound to the same transaction.
type Store interface {
	Users() Users
	Channels() Channels
	Programs() Programs

	ApplyMigrations(ctx context.Context) error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Nested transactions are not supported.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error

	// LockAdmins blocks until no other transaction holds the admin lock and
	// keeps it until Commit or Rollback. Transactions that check and then
	// grant the admin role take it first so the check stays true.
	LockAdmins(ctx context.Context) error
}

// Users is the user directory. Uniqueness of username is enforced by the
// database; drivers report a violation as ErrAlreadyExists.
type Users interface {
	// GetUserByUsername returns ErrNotFound for unknown usernames.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the stored digest and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateRole changes the role and bumps updated_at.
	UpdateRole(ctx context.Context, userID string, role domain.Role) error

	// CountByRole returns how many users hold role.
	CountByRole(ctx context.Context, role domain.Role) (int, error)
}

type Channels interface {
	CreateChannel(ctx context.Context, c domain.Channel) error
	GetChannelByID(ctx context.Context, id string) (domain.Channel, error)

	// ListChannels returns channels ordered by name.
	ListChannels(ctx context.Context) ([]domain.Channel, error)

	// DeleteChannel cascades to the channel's programs (per schema).
	DeleteChannel(ctx context.Context, id string) error
}

// ProgramFilter narrows ListPrograms. Zero value lists everything.
type ProgramFilter struct {
	ChannelID string
}

type Programs interface {
	CreateProgram(ctx context.Context, p domain.Program) error
	GetProgramByID(ctx context.Context, id string) (domain.Program, error)

	// ListPrograms returns programs ordered by start time.
	ListPrograms(ctx context.Context, f ProgramFilter) ([]domain.Program, error)

	// UpdateProgram overwrites every mutable field and bumps updated_at.
	UpdateProgram(ctx context.Context, p domain.Program) error

	DeleteProgram(ctx context.Context, id string) error
}
