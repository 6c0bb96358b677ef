package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
)

// Allocator mints business numbers. Each (kind, year) bucket is a
// critical section: in-process callers serialize on a per-bucket mutex,
// and the durable counter upsert serializes across processes. The mutex
// is held only for the counter write, never for the caller's remaining
// work.
type Allocator struct {
	counters repository.CounterRepository
	now      func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*sync.Mutex
}

type bucketKey struct {
	kind domain.NumberKind
	year int
}

func NewAllocator(counters repository.CounterRepository) (*Allocator, error) {
	return newAllocator(counters, time.Now)
}

func newAllocator(counters repository.CounterRepository, nowFn func() time.Time) (*Allocator, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter repository is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Allocator{
		counters: counters,
		now:      nowFn,
		buckets:  make(map[bucketKey]*sync.Mutex),
	}, nil
}

// Allocate mints the next number for kind in the current wall-clock year.
// On failure nothing is consumed and the caller must not create the
// entity the number was meant for.
func (a *Allocator) Allocate(ctx context.Context, kind domain.NumberKind) (domain.BusinessNumber, error) {
	return a.AllocateForYear(ctx, kind, a.now().UTC().Year())
}

// AllocateForYear mints the next number for an explicit bucket year.
// Buckets from prior years stay frozen at their last value; a new year
// simply opens a fresh bucket starting at 1.
func (a *Allocator) AllocateForYear(ctx context.Context, kind domain.NumberKind, year int) (domain.BusinessNumber, error) {
	if !kind.IsValid() {
		return domain.BusinessNumber{}, fmt.Errorf("%w: invalid number kind %q", domain.ErrValidation, kind)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	lock := a.bucketLock(bucketKey{kind: kind, year: year})
	lock.Lock()
	defer lock.Unlock()

	seq, err := a.counters.Next(ctx, kind, year)
	if err != nil {
		return domain.BusinessNumber{}, fmt.Errorf("%w: %s/%d: %v", domain.ErrAllocation, kind, year, err)
	}

	number := domain.BusinessNumber{Kind: kind, Year: year, Sequence: seq}
	if err := number.Validate(); err != nil {
		return domain.BusinessNumber{}, fmt.Errorf("%w: counter produced %s: %v", domain.ErrAllocation, number, err)
	}

	return number, nil
}

func (a *Allocator) bucketLock(key bucketKey) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.buckets[key]
	if !ok {
		lock = &sync.Mutex{}
		a.buckets[key] = lock
	}
	return lock
}
