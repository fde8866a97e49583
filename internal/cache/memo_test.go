package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemo_ComputesOnce(t *testing.T) {
	m, err := NewMemo(16)
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int64
	key := Key("BTCUSDT", "1h", 500, 500, "zones")
	compute := func() (any, error) {
		calls.Add(1)
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Do(key, compute)
			if err != nil || v.(int) != 42 {
				t.Errorf("got %v %v", v, err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute ran %d times, want 1", got)
	}
	if _, err := m.Do(key, compute); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("cached hit recomputed, calls = %d", got)
	}
}

func TestMemo_ErrorsNotCached(t *testing.T) {
	m, err := NewMemo(16)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	boom := errors.New("boom")
	compute := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := m.Do("k", compute); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	v, err := m.Do("k", compute)
	if err != nil || v.(string) != "ok" {
		t.Errorf("retry got %v %v", v, err)
	}
}

func TestMemo_Bounded(t *testing.T) {
	m, err := NewMemo(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		k := Key("BTCUSDT", "1h", int64(i), i, "snapshot")
		if _, err := m.Do(k, func() (any, error) { return i, nil }); err != nil {
			t.Fatal(err)
		}
	}
	if m.Len() > 4 {
		t.Errorf("len = %d, want at most 4", m.Len())
	}
}

func TestKey_DistinguishesWindows(t *testing.T) {
	a := Key("BTCUSDT", "1h", 100, 100, "zones")
	b := Key("BTCUSDT", "1h", 101, 100, "zones")
	c := Key("BTCUSDT", "4h", 100, 100, "zones")
	if a == b || a == c || b == c {
		t.Errorf("keys collide: %s %s %s", a, b, c)
	}
}
