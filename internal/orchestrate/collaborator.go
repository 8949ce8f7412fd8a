// ---------------------------------------------------------------------------
// collaborator.go — external collaborator interfaces and the timeout
// boundary through which every collaborator call runs. Collaborators are
// advisory: a timeout or failure degrades the calling stage, it never
// aborts the request.
// ---------------------------------------------------------------------------

package orchestrate

import (
	"context"
	"errors"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/core"
)

// Retriever returns the k events most relevant to a free-text query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]core.Event, error)
}

// Generator produces analyst prose from a prompt context. Its output is
// presentation only and never feeds back into scoring or matching.
type Generator interface {
	Generate(ctx context.Context, promptContext string) (string, error)
}

// callRetrieve runs one retrieval through the timeout boundary. The select
// guards against implementations that ignore context cancellation.
func callRetrieve(ctx context.Context, r Retriever, query string, k int, timeout time.Duration) ([]core.Event, error) {
	if r == nil {
		return nil, &core.ExternalCallError{Collaborator: "retriever", Err: errors.New("not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		events []core.Event
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		events, err := r.Retrieve(ctx, query, k)
		ch <- result{events, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &core.ExternalCallError{
				Collaborator: "retriever",
				Timeout:      errors.Is(res.err, context.DeadlineExceeded),
				Err:          res.err,
			}
		}
		return res.events, nil
	case <-ctx.Done():
		return nil, &core.ExternalCallError{
			Collaborator: "retriever",
			Timeout:      errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:          ctx.Err(),
		}
	}
}

// callGenerate runs one generation through the timeout boundary.
func callGenerate(ctx context.Context, g Generator, promptContext string, timeout time.Duration) (string, error) {
	if g == nil {
		return "", &core.ExternalCallError{Collaborator: "generator", Err: errors.New("not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := g.Generate(ctx, promptContext)
		ch <- result{text, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", &core.ExternalCallError{
				Collaborator: "generator",
				Timeout:      errors.Is(res.err, context.DeadlineExceeded),
				Err:          res.err,
			}
		}
		return res.text, nil
	case <-ctx.Done():
		return "", &core.ExternalCallError{
			Collaborator: "generator",
			Timeout:      errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:          ctx.Err(),
		}
	}
}
