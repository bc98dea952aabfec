// Parallel batch dispatch with conflict serialization and retry.
//
// Information Hiding:
// - Worker pool and ordering mechanics hidden
// - Conflict detection between calls hidden
// - Retry strategy and error classification hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/richinex/daedalus/shape"
)

// CallRequest is one tool invocation within a batch. The ID ties the
// result back to the controller's tool_use block.
type CallRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

// CallResult is the outcome of one call. Exactly one of Output and Err is
// meaningful; Err nil means Output holds the shaped tool output.
type CallResult struct {
	ID       string
	Name     string
	Output   shape.Output
	Err      error
	Attempts int
	Duration time.Duration
}

// Success returns true if the call produced an output.
func (r CallResult) Success() bool {
	return r.Err == nil
}

// Dispatcher executes batches of tool calls concurrently while serializing
// calls that touch the same resource.
type Dispatcher struct {
	registry    *Registry
	workers     int
	callTimeout time.Duration
	maxAttempts int
	limits      shape.Limits
}

// NewDispatcher creates a dispatcher over the given registry with default
// concurrency, timeout, and shaping limits.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		workers:     8,
		callTimeout: DefaultToolTimeout * time.Second,
		maxAttempts: 3,
		limits:      shape.DefaultLimits(),
	}
}

// WithWorkers sets the worker pool size.
func (d *Dispatcher) WithWorkers(n int) *Dispatcher {
	if n > 0 {
		d.workers = n
	}
	return d
}

// WithCallTimeout sets the per-call deadline.
func (d *Dispatcher) WithCallTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.callTimeout = timeout
	}
	return d
}

// WithMaxAttempts sets the attempt budget for retryable failures.
func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

// WithLimits sets the output shaping limits.
func (d *Dispatcher) WithLimits(limits shape.Limits) *Dispatcher {
	d.limits = limits
	return d
}

// DispatchBatch executes the requests and returns one result per request,
// in request order, with results[i].ID == reqs[i].ID. Calls that touch the
// same resource with at least one writer run serialized in input order;
// everything else runs concurrently. A failed call never aborts its
// siblings.
func (d *Dispatcher) DispatchBatch(ctx context.Context, reqs []CallRequest) []CallResult {
	results := make([]CallResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	deps := d.conflictDeps(reqs)

	// Predecessor-done channels. Jobs are consumed FIFO and every
	// predecessor index is smaller than the waiter's, so a predecessor has
	// always been dequeued earlier and is either running or finished; the
	// wait cannot deadlock the pool.
	done := make([]chan struct{}, len(reqs))
	for i := range done {
		done[i] = make(chan struct{})
	}

	jobs := make(chan int, len(reqs))
	for i := range reqs {
		jobs <- i
	}
	close(jobs)

	workers := d.workers
	if workers > len(reqs) {
		workers = len(reqs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
		next:
			for idx := range jobs {
				for _, dep := range deps[idx] {
					select {
					case <-done[dep]:
					case <-ctx.Done():
						results[idx] = CallResult{
							ID:   reqs[idx].ID,
							Name: reqs[idx].Name,
							Err:  fmt.Errorf("tool '%s': %w", reqs[idx].Name, ctx.Err()),
						}
						close(done[idx])
						continue next
					}
				}
				results[idx] = d.executeCall(ctx, reqs[idx])
				close(done[idx])
			}
		}()
	}
	wg.Wait()

	return results
}

// conflictDeps computes, for each request, the indices of the earlier
// requests it must wait for. Two requests conflict iff they report the same
// resource key and at least one is a write. A reader waits on the previous
// write to its key; a write waits on the previous write and on every reader
// since that write, so it cannot start while any earlier same-key request
// is still running.
func (d *Dispatcher) conflictDeps(reqs []CallRequest) [][]int {
	deps := make([][]int, len(reqs))

	type keyState struct {
		lastWrite    int
		readersSince []int
	}
	seen := make(map[string]*keyState)

	for i, req := range reqs {
		key := d.resourceKey(req)
		if key.Key == "" {
			continue
		}

		state, ok := seen[key.Key]
		if !ok {
			state = &keyState{lastWrite: -1}
			seen[key.Key] = state
		}

		if key.Write {
			if state.lastWrite >= 0 {
				deps[i] = append(deps[i], state.lastWrite)
			}
			deps[i] = append(deps[i], state.readersSince...)
			state.lastWrite = i
			state.readersSince = nil
		} else {
			if state.lastWrite >= 0 {
				deps[i] = append(deps[i], state.lastWrite)
			}
			state.readersSince = append(state.readersSince, i)
		}
	}
	return deps
}

// resourceKey asks the tool what this call touches. Unknown tools and
// tools without conflict reporting are treated as conflict-free.
func (d *Dispatcher) resourceKey(req CallRequest) ResourceKey {
	tool, ok := d.registry.Get(req.Name)
	if !ok {
		return ResourceKey{}
	}
	keyer, ok := tool.(ResourceKeyer)
	if !ok {
		return ResourceKey{}
	}
	return keyer.ResourceKey(req.Args)
}

// executeCall runs one call through validation, execution with bounded
// retries, and output shaping.
func (d *Dispatcher) executeCall(ctx context.Context, req CallRequest) CallResult {
	start := time.Now()
	result := CallResult{ID: req.ID, Name: req.Name}

	tool, ok := d.registry.Get(req.Name)
	if !ok {
		result.Err = fmt.Errorf("%w: '%s'", ErrToolNotFound, req.Name)
		result.Duration = time.Since(start)
		return result
	}

	if err := d.registry.CheckArguments(req.Name, req.Args); err != nil {
		result.Err = fmt.Errorf("tool '%s': %w", req.Name, err)
		result.Duration = time.Since(start)
		return result
	}
	if err := tool.Validate(req.Args); err != nil {
		result.Err = fmt.Errorf("tool '%s': %w: %v", req.Name, ErrInvalidArguments, err)
		result.Duration = time.Since(start)
		return result
	}

	key := d.resourceKey(req)
	log.Debug().
		Str("tool", req.Name).
		Str("call_id", req.ID).
		Str("resource", key.Key).
		Bool("write", key.Write).
		Msg("dispatching tool call")

	toolResult, attempts, err := d.executeWithRetry(ctx, tool, req)
	result.Attempts = attempts
	result.Duration = time.Since(start)

	if err != nil {
		result.Err = err
		log.Error().Err(err).
			Str("tool", req.Name).
			Str("call_id", req.ID).
			Str("resource", key.Key).
			Int("attempts", attempts).
			Msg("tool call failed")
		return result
	}

	kind := shape.KindGeneric
	if shaper, ok := tool.(OutputShaper); ok {
		kind = shaper.OutputKind()
	}
	result.Output = shape.Shape(toolResult.Output, kind, d.limits)

	log.Info().
		Str("tool", req.Name).
		Str("call_id", req.ID).
		Int("attempts", attempts).
		Dur("duration", result.Duration).
		Bool("truncated", result.Output.Truncated).
		Msg("tool call completed")
	return result
}

// executeWithRetry runs the tool with a per-call deadline and exponential
// backoff between retryable failures. Timeouts and validation-class
// failures end the attempt budget immediately.
func (d *Dispatcher) executeWithRetry(ctx context.Context, tool Tool, req CallRequest) (ToolResult, int, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ToolResult{}, attempt - 1, fmt.Errorf("tool '%s': %w", req.Name, ctx.Err())
			case <-time.After(backoffDelay(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		toolResult, err := tool.Execute(callCtx, req.Args)
		timedOut := callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if timedOut {
			return ToolResult{}, attempt, fmt.Errorf("tool '%s': %w after %s",
				req.Name, ErrCallTimeout, d.callTimeout)
		}
		if ctx.Err() != nil {
			return ToolResult{}, attempt, fmt.Errorf("tool '%s': %w", req.Name, ctx.Err())
		}

		if err != nil {
			lastErr = err
			continue
		}
		if toolResult.Success() {
			return toolResult, attempt, nil
		}
		if !retryableFailure(toolResult) {
			return ToolResult{}, attempt, fmt.Errorf("tool '%s': %w", req.Name, toolResult.Error)
		}
		lastErr = toolResult.Error
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("unknown error")
	}
	return ToolResult{}, d.maxAttempts, fmt.Errorf("tool '%s' failed after %d attempts: %w",
		req.Name, d.maxAttempts, lastErr)
}

// backoffDelay returns the delay before the given attempt (2, 3, ...).
func backoffDelay(attempt int) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<(attempt-2))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// retryableFailure classifies a tool-level failure. Validation and
// permission failures are deterministic and never retried; timeouts are
// handled by the caller and never reach here.
func retryableFailure(result ToolResult) bool {
	if result.Error == nil {
		return true
	}

	errLower := strings.ToLower(result.Error.Error())

	nonRetryable := []string{"validation", "not allowed", "permission", "empty", "does not exist", "not found", "timed out"}
	for _, s := range nonRetryable {
		if strings.Contains(errLower, s) {
			return false
		}
	}

	retryable := []string{"connection", "network", "temporarily"}
	for _, s := range retryable {
		if strings.Contains(errLower, s) {
			return true
		}
	}

	return true
}
