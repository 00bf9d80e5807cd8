package assemble

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultParallelism bounds BuildAll when no limit is given.
const DefaultParallelism = 4

// BuildAll runs Build for every server on at most parallelism workers.
// Reports come back in the order of servers; a server whose build was
// never started because ctx ended has a nil report. The returned error
// joins every failed server's error.
func (g *Generator) BuildAll(ctx context.Context, servers []string, kinds []Kind, parallelism int) ([]*Report, error) {
	workers := parallelism
	if workers <= 0 {
		workers = DefaultParallelism
	}
	if len(servers) < workers {
		workers = len(servers)
	}

	type job struct {
		index  int
		server string
	}

	queue := make(chan job, len(servers))
	for i, s := range servers {
		queue <- job{index: i, server: s}
	}
	close(queue)

	reports := make([]*Report, len(servers))
	errs := make([]error, len(servers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				select {
				case <-ctx.Done():
					errs[j.index] = fmt.Errorf("%s: %w", j.server, ctx.Err())
					continue
				default:
				}

				report, err := g.Build(ctx, j.server, kinds)
				reports[j.index] = report
				if err != nil {
					errs[j.index] = fmt.Errorf("%s: %w", j.server, err)
				}
			}
		}()
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}
