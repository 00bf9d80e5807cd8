package assemble

import (
	"context"

	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
)

// instrumented counts catalogue queries in the metrics of the telemetry
// carried by each call's context.
type instrumented struct {
	stores.Searcher
}

// Instrument wraps s so every Search is counted in store_queries_total.
func Instrument(s stores.Searcher) stores.Searcher {
	if _, ok := s.(instrumented); ok {
		return s
	}
	return instrumented{Searcher: s}
}

func (i instrumented) Search(ctx context.Context, id stores.QueryID, key any) (*stores.ResultSet, error) {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordQuery(id.String())
	}
	return i.Searcher.Search(ctx, id, key)
}
