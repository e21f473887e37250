package report

import (
	"context"
	"fmt"

	"github.com/itsupport/csreport/internal/codegen"
)

// maxAllocateAttempts bounds generated-code retries. Ten misses out of a
// 36^8 space means something is wrong with the store, not bad luck.
const maxAllocateAttempts = 10

// ExistsFunc answers whether a lookup code is already in use.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Allocator decides the final lookup code for a new report. It never writes:
// the caller performs the insert, and the storage uniqueness constraint is
// what closes the check-then-act race between concurrent submitters, not
// this pre-check.
type Allocator struct {
	gen *codegen.Generator
}

func NewAllocator(gen *codegen.Generator) *Allocator {
	return &Allocator{gen: gen}
}

// Allocate returns an accepted lookup code. A non-empty customCode is
// accepted verbatim if free and rejected with ErrCodeTaken otherwise;
// generation is never substituted for a caller's choice. With no custom
// code, up to maxAllocateAttempts candidates are generated and the first
// free one wins; total collision yields ErrAllocationExhausted.
func (a *Allocator) Allocate(ctx context.Context, customCode string, exists ExistsFunc) (string, error) {
	if customCode != "" {
		taken, err := exists(ctx, customCode)
		if err != nil {
			return "", fmt.Errorf("checking custom code: %w", err)
		}
		if taken {
			return "", ErrCodeTaken
		}
		return customCode, nil
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		candidate := a.gen.LookupCode()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking candidate code: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrAllocationExhausted
}
