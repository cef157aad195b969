// Package memory provides an in-process exporter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var (
	_ ports.TransactionExporter = (*Store)(nil)
	_ ports.TransactionRemover  = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	rows  [][]string
	index map[string]int
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Export stores the row for tx and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, tx core.Transaction) (string, error) {
	if strings.TrimSpace(tx.ID) == "" {
		return "", errors.New("transaction without id")
	}
	row := ports.Row(tx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[tx.ID]; ok {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	s.index[tx.ID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Remove clears the row for id, keeping later row references stable.
func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.rows[i] = nil
		delete(s.index, id)
	}
	return nil
}

// Rows returns a copy of the non-empty rows in insertion order.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.index))
	for _, r := range s.rows {
		if r == nil {
			continue
		}
		out = append(out, append([]string(nil), r...))
	}
	return out
}

// Len reports how many transactions are currently exported.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}
