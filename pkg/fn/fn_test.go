package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryValueSucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := RetryValue(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Fatalf("v=%d calls=%d", v, calls)
	}
}

func TestRetryValueExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := RetryValue(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryValueShouldRetryStopsEarly(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	_, err := RetryValue(context.Background(), RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("want fatal, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on fatal)", calls)
	}
}

func TestRetryRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryOpts{MaxAttempts: 3, InitialWait: time.Minute}, func(ctx context.Context) error {
		return errors.New("always")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestOnceRetriesExactlyOnce(t *testing.T) {
	opts := Once(time.Millisecond, nil)
	calls := 0
	_ = Retry(context.Background(), opts, func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestFanOutOrder(t *testing.T) {
	got := FanOut(
		func() int { time.Sleep(5 * time.Millisecond); return 1 },
		func() int { return 2 },
		func() int { return 3 },
	)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestParMapErrBoundsWorkers(t *testing.T) {
	var active, peak int64
	items := make([]int, 20)
	out, err := ParMapErr(items, 4, func(int) (int, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&active, -1)
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 20 || out[0] != 7 {
		t.Fatalf("out = %v", out)
	}
	if peak > 4 {
		t.Fatalf("peak concurrency %d exceeds bound 4", peak)
	}
}

func TestParMapErrReturnsFirstErrorByOrder(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	_, err := ParMapErr([]int{0, 1, 2}, 3, func(i int) (int, error) {
		switch i {
		case 1:
			return 0, e1
		case 2:
			return 0, e2
		}
		return i, nil
	})
	if !errors.Is(err, e1) {
		t.Fatalf("want first error by input order, got %v", err)
	}
}

func TestSliceHelpers(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Errorf("Map = %v", doubled)
	}

	odd := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 1 })
	if len(odd) != 2 || odd[1] != 3 {
		t.Errorf("Filter = %v", odd)
	}

	groups := GroupBy([]string{"aa", "ab", "ba"}, func(s string) byte { return s[0] })
	if len(groups['a']) != 2 || len(groups['b']) != 1 {
		t.Errorf("GroupBy = %v", groups)
	}

	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Errorf("Chunk = %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Error("Chunk with n<=0 should be nil")
	}

	uniq := Unique([]string{"a", "b", "a", "c", "b"})
	if len(uniq) != 3 || uniq[0] != "a" || uniq[2] != "c" {
		t.Errorf("Unique = %v", uniq)
	}
}
