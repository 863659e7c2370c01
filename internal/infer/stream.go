package infer

import (
	"context"
	"sync"

	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/stats"
)

// Stream calls every read received from reads on a pool of workers and
// hands the results to visit in completion order. visit runs on a single
// goroutine. Reads with per-read failures are passed to visit with Err set
// and tallied. The first model error, visit error or cancellation stops
// the stream.
func (e *Engine) Stream(ctx context.Context, reads <-chan *read.Read, visit func(*ReadCalls) error) (*stats.Tally, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tally := stats.NewTally()
	results := make(chan *ReadCalls, e.opts.Workers*2)

	var (
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	getErr := func() error {
		mu.Lock()
		defer mu.Unlock()
		return firstErr
	}

	var wg sync.WaitGroup
	wg.Add(e.opts.Workers)
	for w := 0; w < e.opts.Workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case r, ok := <-reads:
					if !ok {
						return
					}
					calls, err := e.CallRead(ctx, r)
					if err != nil {
						if ctx.Err() == nil {
							setErr(err)
						}
						return
					}
					select {
					case results <- calls:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for calls := range results {
		if calls.Err != nil {
			tally.Fail(read.Reason(calls.Err))
		} else {
			tally.Success()
		}
		if getErr() != nil {
			continue
		}
		if err := visit(calls); err != nil {
			setErr(err)
		}
	}

	if err := getErr(); err != nil {
		return tally, err
	}
	if err := ctx.Err(); err != nil {
		return tally, err
	}
	return tally, nil
}
