// Package dispatcher implements the worker pool: it enumerates (solution,
// testcase) pairs filtered by the caller's predicate, schedules them
// across P workers sharing one Judge and build cache, and aggregates
// results in enumeration order regardless of completion order.
package dispatcher

import (
	"context"
	"sort"
	"sync"

	"hammurabi/internal/discovery"
	"hammurabi/internal/judge"
	"hammurabi/internal/model"
)

// Pair is one (solution, testcase) scheduling unit.
type Pair struct {
	Solution *model.Solution
	Testcase *model.Testcase
	index    int // position in the stable enumeration order
}

// Dispatcher schedules Judge.Run calls across a fixed-size worker pool.
type Dispatcher struct {
	Judge       *judge.Judge
	Parallelism int
}

// New returns a Dispatcher with parallelism clamped to at least 1; the
// default of 1 runs strictly serial, for deterministic timing.
func New(j *judge.Judge, parallelism int) *Dispatcher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Dispatcher{Judge: j, Parallelism: parallelism}
}

// Run enumerates all pairs in inv matching filter, in lexicographic
// (problem, author, testcase) order, dispatches them across the worker
// pool, and returns the complete list of TestRuns in that same enumeration
// order, not completion order.
//
// Pairs are enqueued eagerly into a queue bounded by Parallelism*4 for
// backpressure. Cancelling ctx stops new dispatch; the returned list still
// holds one TestRun per enumerated pair: pairs in flight at cancellation are
// tagged as cancelled once their subprocess is reaped, and pairs never
// judged are reported as cancelled SKIP results.
func (d *Dispatcher) Run(ctx context.Context, inv discovery.Inventory, filter discovery.Filter) []*model.TestRun {
	pairs := enumerate(inv, filter)
	results := make([]*model.TestRun, len(pairs))

	queueSize := d.Parallelism * 4
	if queueSize < 1 {
		queueSize = 1
	}
	queue := make(chan Pair, queueSize)

	var wg sync.WaitGroup
	for w := 0; w < d.Parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range queue {
				select {
				case <-ctx.Done():
					results[pair.index] = cancelledRun(pair)
					continue
				default:
				}
				tr := d.Judge.Run(ctx, pair.Solution, pair.Testcase)
				if ctx.Err() != nil {
					tr.Cancelled = true
				}
				results[pair.index] = tr
			}
		}()
	}

feed:
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- pair:
		}
	}
	close(queue)
	wg.Wait()

	// Any pair that never got a TestRun (dispatch stopped early on
	// cancellation) is reported as a cancelled partial result rather than a
	// nil slot.
	for i, tr := range results {
		if tr == nil {
			results[i] = cancelledRun(pairs[i])
		}
	}

	return results
}

func cancelledRun(p Pair) *model.TestRun {
	return &model.TestRun{
		Solution:  p.Solution,
		Testcase:  p.Testcase,
		Cancelled: true,
		Result:    model.Result{Kind: model.ResultSkipped, StatusCode: model.StatusSkip, Detail: "cancelled before scheduling"},
	}
}

// enumerate builds the stable (problem, author, testcase) ordered pair
// list. It sorts problems, authors and testcases by name itself, so the
// order does not depend on the order of the Inventory's slices, and applies
// filter to each triple.
func enumerate(inv discovery.Inventory, filter discovery.Filter) []Pair {
	problems := make([]*model.Problem, len(inv.Problems))
	copy(problems, inv.Problems)
	sort.Slice(problems, func(i, j int) bool { return problems[i].Name < problems[j].Name })

	var pairs []Pair
	for _, p := range problems {
		solutions := make([]*model.Solution, len(p.Solutions))
		copy(solutions, p.Solutions)
		sort.Slice(solutions, func(i, j int) bool { return solutions[i].Author < solutions[j].Author })

		testcases := make([]*model.Testcase, len(p.Testcases))
		copy(testcases, p.Testcases)
		sort.Slice(testcases, func(i, j int) bool { return testcases[i].Name < testcases[j].Name })

		for _, sol := range solutions {
			for _, tc := range testcases {
				if filter != nil && !filter(p.Name, sol.Author, tc.Name) {
					continue
				}
				pairs = append(pairs, Pair{Solution: sol, Testcase: tc})
			}
		}
	}
	for i := range pairs {
		pairs[i].index = i
	}
	return pairs
}
