package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaizen/nemt837/internal/platform/x12"
)

// SequenceStore persists the interchange numbering state so control numbers
// stay monotonic across process restarts. Each named counter advances
// atomically in the database.
type SequenceStore struct {
	pool *pgxpool.Pool
}

func NewSequenceStore(pool *pgxpool.Pool) *SequenceStore {
	return &SequenceStore{pool: pool}
}

// EnsureTable creates the counter table if it does not already exist.
func (s *SequenceStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS edi_control_numbers (
    name VARCHAR(32) PRIMARY KEY,
    value BIGINT NOT NULL DEFAULT 0
)`)
	if err != nil {
		return fmt.Errorf("create edi_control_numbers table: %w", err)
	}
	return nil
}

// Next advances the named counter and returns its new value. The first call
// for a name returns 1.
func (s *SequenceStore) Next(ctx context.Context, name string) (int, error) {
	var value int
	err := s.pool.QueryRow(ctx, `INSERT INTO edi_control_numbers (name, value)
VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = edi_control_numbers.value + 1
RETURNING value`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	return value, nil
}

// NextFileSequence advances the per-day submission file counter used in the
// output file name.
func (s *SequenceStore) NextFileSequence(ctx context.Context, day string) (int, error) {
	return s.Next(ctx, "file_"+day)
}

// ControlNumbers reserves the next interchange and group numbers and returns
// a counter state for one emission. The transaction-set counter always
// restarts at 1 inside a fresh interchange.
func (s *SequenceStore) ControlNumbers(ctx context.Context) (*x12.ControlNumbers, error) {
	isa, err := s.Next(ctx, "isa")
	if err != nil {
		return nil, err
	}
	gs, err := s.Next(ctx, "gs")
	if err != nil {
		return nil, err
	}
	return &x12.ControlNumbers{ISA: isa, GS: gs, ST: 1}, nil
}
