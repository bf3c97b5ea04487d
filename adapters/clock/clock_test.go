package clock_test

import (
	"testing"
	"time"

	"github.com/finswitch/finswitch/adapters/clock"
)

func TestFake_NowAndSet(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := clock.NewFake(base)

	if !f.Now().Equal(base) {
		t.Errorf("Now = %v, want %v", f.Now(), base)
	}

	later := base.Add(time.Minute)
	f.Set(later)
	if !f.Now().Equal(later) {
		t.Errorf("Now after Set = %v, want %v", f.Now(), later)
	}
}

func TestFake_AfterFiresOnAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := clock.NewFake(base)

	ch := f.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case ts := <-ch:
		if !ts.Equal(base.Add(10 * time.Second)) {
			t.Errorf("fired at %v", ts)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFake_AfterNonPositiveFiresImmediately(t *testing.T) {
	f := clock.NewFake(time.Now())
	select {
	case <-f.After(0):
	default:
		t.Fatal("After(0) must fire immediately")
	}
}

func TestFake_MultipleWaitersFireInOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := clock.NewFake(base)

	early := f.After(time.Second)
	late := f.After(time.Minute)

	f.Advance(2 * time.Second)
	select {
	case <-early:
	default:
		t.Error("early timer did not fire")
	}
	select {
	case <-late:
		t.Error("late timer fired too soon")
	default:
	}
}

func TestReal_After(t *testing.T) {
	start := time.Now()
	<-clock.Real{}.After(5 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("After returned after %v", elapsed)
	}
}
