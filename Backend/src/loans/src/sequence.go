package main

import (
	"context"
	"database/sql"
	"sync"
)

// Sequence hands out correlation ids for borrow attempts: strictly
// increasing, persisted across restarts. The mutex plus the single-statement
// UPDATE keep concurrent issuers from ever seeing the same value.
type Sequence struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSequence(db *sql.DB) *Sequence { return &Sequence{db: db} }

func (s *Sequence) Next(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE sequence SET value = value + 1 WHERE name='borrow' RETURNING value`).Scan(&v)
	if err != nil { return 0, err }
	return v, nil
}
