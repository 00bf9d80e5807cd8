// Package storetest provides an in-memory stores.Searcher for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/cbc/pkg/stores"
)

// Searcher serves canned rows per (query, key). Rows are checked against
// the catalogue column types when added, so fixtures cannot drift from
// what the SQLite store would return.
type Searcher struct {
	mu    sync.Mutex
	rows  map[stores.QueryID]map[string][]stores.Row
	calls map[stores.QueryID]int
	fail  map[stores.QueryID]error
}

// New returns an empty Searcher.
func New() *Searcher {
	return &Searcher{
		rows:  make(map[stores.QueryID]map[string][]stores.Row),
		calls: make(map[stores.QueryID]int),
		fail:  make(map[stores.QueryID]error),
	}
}

// Add appends rows for (id, key). It panics when a row does not match the
// declared columns of id.
func (s *Searcher) Add(id stores.QueryID, key any, rows ...stores.Row) *Searcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		if err := stores.CheckRow(id, row); err != nil {
			panic(err)
		}
	}

	byKey, ok := s.rows[id]
	if !ok {
		byKey = make(map[string][]stores.Row)
		s.rows[id] = byKey
	}
	k := keyOf(id, key)
	byKey[k] = append(byKey[k], rows...)
	return s
}

// Fail makes every Search for id return err.
func (s *Searcher) Fail(id stores.QueryID, err error) *Searcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[id] = err
	return s
}

// Calls returns how many times id was searched.
func (s *Searcher) Calls(id stores.QueryID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

// Search implements stores.Searcher.
func (s *Searcher) Search(_ context.Context, id stores.QueryID, key any) (*stores.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[id]++
	if err := s.fail[id]; err != nil {
		return nil, err
	}

	src := s.rows[id][keyOf(id, key)]
	rs := &stores.ResultSet{Query: id, Rows: make([]stores.Row, len(src))}
	copy(rs.Rows, src)
	return rs, nil
}

func keyOf(id stores.QueryID, key any) string {
	if q, ok := stores.Lookup(id); ok && !q.Keyed() {
		return ""
	}
	return fmt.Sprint(key)
}
