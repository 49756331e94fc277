// Package store is the PostgreSQL persistence layer: documents and their
// chunks (with pgvector embedding columns), conversations and messages,
// and the contacts directory behind the built-in tools.
//
// All methods are safe for concurrent use; callers that need narrower
// surfaces define their own interfaces over *Store.
package store

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern/internal/config"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRole indicates a message role outside the closed set.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmptyContent indicates an attempt to persist an empty message.
	ErrEmptyContent = errors.New("empty message content")

	// ErrInvalidColumn indicates an embedding column name outside the schema.
	ErrInvalidColumn = errors.New("invalid embedding column")

	// ErrInvalidTransition indicates a status write the lifecycle state
	// machine disallows, e.g. a duplicate job finding its row already
	// settled.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// validColumns are the embedding columns present in the schema. Column
// names are interpolated into SQL and must never come from user input.
var validColumns = map[string]bool{
	config.ColumnOpenAI: true,
	config.ColumnOllama: true,
}

// Store provides database operations over a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store. logger may be nil.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}
