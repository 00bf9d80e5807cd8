package engine

import (
	"context"
	"fmt"

	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/rs/zerolog"
)

// RequireOne runs a query that must produce exactly one row. No rows is a
// NoRecords error. More than one row is logged as ambiguous and the first
// row is returned.
func RequireOne(ctx context.Context, s stores.Searcher, id stores.QueryID, key any, server string, logger zerolog.Logger) (stores.Row, error) {
	rs, err := s.Search(ctx, id, key)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", id, server, err)
	}

	row, ok := rs.First()
	if !ok {
		return nil, NewNoRecordsError(id.String(), server)
	}

	if n := rs.Len(); n > 1 {
		logger.Warn().
			Err(NewAmbiguousRecordsError(id.String(), server, n)).
			Str("server", server).
			Str("query", id.String()).
			Int("rows", n).
			Msg("Multiple rows where one expected, using the first")
	}

	return row, nil
}

// RequireRows runs a query that must produce at least one row.
func RequireRows(ctx context.Context, s stores.Searcher, id stores.QueryID, key any, server string) ([]stores.Row, error) {
	rs, err := s.Search(ctx, id, key)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", id, server, err)
	}
	if rs.Len() == 0 {
		return nil, NewNoRecordsError(id.String(), server)
	}
	return rs.Rows, nil
}
