package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"welth/internal/amqp"
	"welth/internal/sheets"
)

// Store keeps exported rows in memory. Used in development and tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ExportEvent stores the row and returns a synthetic row reference.
func (s *Store) ExportEvent(_ context.Context, evt *amqp.TransactionEvent) (string, error) {
	if evt == nil {
		return "", errors.New("nil event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(evt))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
