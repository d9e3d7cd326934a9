package verify

import (
	"context"
	"sync"
)

// Backend pairs an explorer back-end name with the orchestrator driving
// it.
type Backend struct {
	Name         string
	Orchestrator *Orchestrator
}

// BackendResult is one back-end's outcome for a batch request.
type BackendResult struct {
	Backend string
	Result  *Result
	Err     error
}

// VerifyAll runs the request against every back-end concurrently. Each
// back-end is an independent job: one failing does not abort the others,
// and all outcomes are reported. Results are ordered like the back-ends.
func VerifyAll(ctx context.Context, backends []Backend, req *Request) []BackendResult {
	results := make([]BackendResult, len(backends))

	var wg sync.WaitGroup
	for i, backend := range backends {
		wg.Add(1)
		go func(i int, backend Backend) {
			defer wg.Done()
			result, err := backend.Orchestrator.Verify(ctx, req)
			results[i] = BackendResult{Backend: backend.Name, Result: result, Err: err}
		}(i, backend)
	}
	wg.Wait()

	return results
}
