package depletion

import "testing"

func TestApplyDamage_DepletesAfterMaxHealthUnits(t *testing.T) {
	cases := []struct {
		maxHealth, multiplier, hits int
	}{
		{2000, 1, 2000},
		{10000, 1, 10000},
		{777, 3, 259},
		{100, 3, 34},
	}
	for _, tc := range cases {
		tr := New(tc.maxHealth)
		for i := 0; i < tc.hits-1; i++ {
			tr.ApplyDamage(1, tc.multiplier)
			if tr.IsDepleted() {
				t.Fatalf("max=%d mult=%d: depleted early after %d hits (remaining=%v)", tc.maxHealth, tc.multiplier, i+1, tr.Remaining)
			}
		}
		tr.ApplyDamage(1, tc.multiplier)
		if !tr.IsDepleted() {
			t.Fatalf("max=%d mult=%d: not depleted after %d hits (remaining=%v)", tc.maxHealth, tc.multiplier, tc.hits, tr.Remaining)
		}
	}
}

func TestHealth(t *testing.T) {
	tr := New(2000)
	tr.ApplyDamage(3, 1)
	if got := tr.Health(); got != 1997 {
		t.Fatalf("expected 1997 units, got %d", got)
	}
	if New(0).Health() != 0 {
		t.Fatalf("unbounded tracker reports health")
	}
}

func TestApplyDamage_Monotonic(t *testing.T) {
	tr := New(100)
	prev := tr.Remaining
	for i := 0; i < 150; i++ {
		tr.ApplyDamage(1+i%3, 3)
		if tr.Remaining > prev {
			t.Fatalf("remaining increased: %v -> %v", prev, tr.Remaining)
		}
		if tr.Remaining <= 0 && !tr.IsDepleted() {
			t.Fatalf("remaining %v but not depleted", tr.Remaining)
		}
		prev = tr.Remaining
	}
	if !tr.IsDepleted() {
		t.Fatalf("expected depletion")
	}
}

func TestApplyDamage_Multiplier(t *testing.T) {
	tr := New(1000)
	tr.ApplyDamage(2, 3)
	if got, want := tr.Remaining, 0.994; got < want-1e-12 || got > want+1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := tr.Percent(); got < 99.4-1e-9 || got > 99.4+1e-9 {
		t.Fatalf("expected 99.4%%, got %v", got)
	}
}

func TestUnbounded(t *testing.T) {
	tr := New(0)
	for i := 0; i < 5000; i++ {
		tr.ApplyDamage(3, 3)
	}
	if tr.Percent() != 100 {
		t.Fatalf("unbounded percent must stay 100, got %v", tr.Percent())
	}
	if tr.IsDepleted() {
		t.Fatalf("unbounded tracker must never deplete")
	}
}

func TestReset(t *testing.T) {
	tr := New(10)
	tr.ApplyDamage(10, 1)
	if !tr.IsDepleted() {
		t.Fatalf("expected depleted")
	}
	tr.Reset()
	if tr.IsDepleted() || tr.Percent() != 100 {
		t.Fatalf("reset should refill, got %v", tr.Remaining)
	}
}
