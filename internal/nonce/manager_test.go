package nonce_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flowsniper/flowsniper/internal/nonce"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

type fakeNonceReader struct {
	mu    sync.Mutex
	next  uint64
	calls int
}

func (f *fakeNonceReader) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.next, nil
}

func TestManager_SequentialCommits(t *testing.T) {
	ctx := context.Background()
	reader := &fakeNonceReader{next: 7}
	m := nonce.NewManager(reader, common.Address{}, testutil.NopLogger())

	for want := uint64(7); want < 10; want++ {
		res, err := m.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Nonce() != want {
			t.Fatalf("nonce = %d, want %d", res.Nonce(), want)
		}
		res.Commit()
	}

	if reader.calls != 1 {
		t.Errorf("PendingNonceAt called %d times, want 1", reader.calls)
	}
}

func TestManager_ReleaseReusesNonce(t *testing.T) {
	ctx := context.Background()
	m := nonce.NewManager(&fakeNonceReader{next: 3}, common.Address{}, testutil.NopLogger())

	res, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	res.Release()

	res2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer res2.Commit()

	if res2.Nonce() != 3 {
		t.Errorf("released nonce not reused: got %d, want 3", res2.Nonce())
	}
}

func TestManager_InvalidateResyncs(t *testing.T) {
	ctx := context.Background()
	reader := &fakeNonceReader{next: 3}
	m := nonce.NewManager(reader, common.Address{}, testutil.NopLogger())

	res, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	reader.mu.Lock()
	reader.next = 12 // another sender moved the account forward
	reader.mu.Unlock()
	res.Invalidate()

	res2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer res2.Commit()

	if res2.Nonce() != 12 {
		t.Errorf("nonce after invalidate = %d, want 12", res2.Nonce())
	}
	if reader.calls != 2 {
		t.Errorf("PendingNonceAt called %d times, want 2", reader.calls)
	}
}

func TestManager_ConcurrentAcquireIsSerialized(t *testing.T) {
	ctx := context.Background()
	m := nonce.NewManager(&fakeNonceReader{}, common.Address{}, testutil.NopLogger())

	const workers = 8
	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Acquire(ctx)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			if seen[res.Nonce()] {
				t.Errorf("duplicate nonce %d handed out", res.Nonce())
			}
			seen[res.Nonce()] = true
			mu.Unlock()
			res.Commit()
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Errorf("distinct nonces = %d, want %d", len(seen), workers)
	}
}

func TestManager_AcquireHonorsContext(t *testing.T) {
	m := nonce.NewManager(&fakeNonceReader{}, common.Address{}, testutil.NopLogger())

	res, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer res.Commit()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Acquire(ctx); err == nil {
		t.Error("expected context error while reservation held")
	}
}
