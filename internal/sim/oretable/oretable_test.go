package oretable

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"quarrysim.ai/internal/sim/catalogs"
)

type fixedRoll int

func (f fixedRoll) IntN(int) int { return int(f) }

func mustTable(t *testing.T, entries ...Entry) *Table {
	t.Helper()
	tb, err := New(entries)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tb
}

func TestPick_WalksTableOrder(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 500}, Entry{"ComponentIndustrial", 250})
	got, err := tb.Sample(fixedRoll(600))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got != "ComponentIndustrial" {
		t.Fatalf("roll=600: expected ComponentIndustrial, got %s", got)
	}
	if got, _ := tb.Pick(0); got != "Steel" {
		t.Fatalf("roll=0: expected Steel, got %s", got)
	}
	if got, _ := tb.Pick(499); got != "Steel" {
		t.Fatalf("roll=499: expected Steel, got %s", got)
	}
	if got, _ := tb.Pick(500); got != "ComponentIndustrial" {
		t.Fatalf("roll=500: expected ComponentIndustrial, got %s", got)
	}
	if _, err := tb.Pick(750); err == nil {
		t.Fatalf("expected out-of-range roll error")
	}
}

func TestSample_ZeroWeightEntriesNeverDrawn(t *testing.T) {
	tb := mustTable(t, Entry{"Jade", 0}, Entry{"Steel", 3}, Entry{"Gold", 0})
	for roll := 0; roll < 3; roll++ {
		if got, _ := tb.Pick(roll); got != "Steel" {
			t.Fatalf("roll=%d: expected Steel, got %s", roll, got)
		}
	}
}

func TestSample_EmptyTable(t *testing.T) {
	var tb Table
	if _, err := tb.Sample(fixedRoll(0)); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
	zero := mustTable(t, Entry{"Steel", 0})
	if _, err := zero.Sample(fixedRoll(0)); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable for zero total, got %v", err)
	}
}

func TestSample_FrequenciesConverge(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 500}, Entry{"Silver", 300}, Entry{"Gold", 150}, Entry{"ComponentIndustrial", 50})
	r := rand.New(rand.NewPCG(1, 2))
	const n = 200000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		k, err := tb.Sample(r)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		if _, ok := tb.Weight(k); !ok {
			t.Fatalf("sampled kind outside table: %s", k)
		}
		counts[k]++
	}
	total := float64(tb.Total())
	for _, e := range tb.Entries() {
		p := float64(e.Weight) / total
		got := float64(counts[e.Kind]) / n
		sigma := math.Sqrt(p * (1 - p) / n)
		if math.Abs(got-p) > 5*sigma {
			t.Fatalf("%s: frequency %.4f too far from %.4f (sigma %.5f)", e.Kind, got, p, sigma)
		}
	}
}

func TestAdd_Duplicate(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 10})
	if err := tb.Add("Steel", 5); !errors.Is(err, ErrDuplicateKind) {
		t.Fatalf("expected ErrDuplicateKind, got %v", err)
	}
	if err := tb.Add("Gold", 5000); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w, _ := tb.Weight("Gold"); w != MaxWeight {
		t.Fatalf("expected add to clamp to %d, got %d", MaxWeight, w)
	}
}

func TestRemove_KeepsOneEntry(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 10}, Entry{"Gold", 1})
	if err := tb.Remove("Jade"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := tb.Remove("Gold"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := tb.Remove("Steel"); !errors.Is(err, ErrMinimumSize) {
		t.Fatalf("expected ErrMinimumSize, got %v", err)
	}
	if tb.Len() != 1 {
		t.Fatalf("table size changed after rejected remove: %d", tb.Len())
	}
}

func TestReweight_Clamps(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 10})
	if err := tb.Reweight("Steel", -4); err != nil {
		t.Fatalf("Reweight: %v", err)
	}
	if w, _ := tb.Weight("Steel"); w != 0 {
		t.Fatalf("expected 0, got %d", w)
	}
	if err := tb.Reweight("Steel", 1001); err != nil {
		t.Fatalf("Reweight: %v", err)
	}
	if w, _ := tb.Weight("Steel"); w != MaxWeight {
		t.Fatalf("expected %d, got %d", MaxWeight, w)
	}
	if err := tb.Reweight("Gold", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShareOf(t *testing.T) {
	var empty Table
	if got := empty.ShareOf(10); got != 0 {
		t.Fatalf("empty table share should be 0, got %v", got)
	}
	tb := mustTable(t, Entry{"Steel", 300}, Entry{"Gold", 100})
	if got := tb.ShareOf(100); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	tb := mustTable(t, Entry{"Steel", 300}, Entry{"Gold", 100})
	a := tb.Snapshot()
	b := tb.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("snapshots differ: %v vs %v", a, b)
	}
	if a[0].Kind != "Steel" || a[0].Percent != 75 || a[1].Percent != 25 {
		t.Fatalf("snapshot mismatch: %+v", a)
	}
}

func TestCommonalityCurve(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 10}, {0.01, 9}, {0.02, 9}, {0.03, 8}, {0.05, 6}, {0.07, 3}, {0.08, 3}, {0.081, 1}, {1, 1},
	}
	prev := math.Inf(1)
	for _, c := range cases {
		got := CommonalityCurve(c.in)
		if got != c.want {
			t.Fatalf("curve(%v)=%v want %v", c.in, got, c.want)
		}
		if got > prev {
			t.Fatalf("curve not monotonically decreasing at %v", c.in)
		}
		prev = got
	}
}

func TestWeightFor(t *testing.T) {
	// deep clamps to 1.5, market floor is 2: 50*1.5*1*1/2 = 37.5
	if got := WeightFor(1.0, 2.0, 1.9); got != 37 {
		t.Fatalf("expected 37, got %d", got)
	}
	// 50*1*(0.055*6)/2 = 8.25
	if got := WeightFor(0.055, 1.0, 1.0); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	// market value 50 -> divisor 10: 50*1*(1*1)/10 = 5
	if got := WeightFor(1.0, 1.0, 50); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := WeightFor(0.5, 0, 1); got != 0 {
		t.Fatalf("expected 0 for zero deep commonality, got %d", got)
	}
}

func TestBuild_FromRepoCatalog(t *testing.T) {
	c, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	tb := Build(c, BuildOptions{
		Eligible:      catalogs.ResourceRock("MineableComponentsIndustrial"),
		ComponentKind: "ComponentIndustrial",
	})
	want := []Entry{
		{"Gold", 3},
		{"Jade", 4},
		{"Uranium", 4},
		{"Plasteel", 7},
		{"Silver", 8},
		{"Steel", 37},
		{"ComponentIndustrial", 4},
	}
	if got := tb.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("build mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestComponentWeight(t *testing.T) {
	if got := ComponentWeight(nil); got != MaxWeight {
		t.Fatalf("empty: expected cap %d, got %d", MaxWeight, got)
	}
	if got := ComponentWeight([]Entry{{"A", 40}, {"B", 10}}); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
	if got := ComponentWeight([]Entry{{"A", 900}}); got != MaxWeight {
		t.Fatalf("expected cap %d, got %d", MaxWeight, got)
	}
}

func TestRestore_DropsUnresolved(t *testing.T) {
	known := map[string]bool{"Steel": true, "Gold": true}
	tb, dropped := Restore([]Entry{{"Steel", 10}, {"ModOre", 5}, {"Gold", 2000}, {"Steel", 3}}, func(k string) bool { return known[k] })
	if len(dropped) != 2 || dropped[0].Kind != "ModOre" || dropped[0].Duplicate {
		t.Fatalf("expected ModOre dropped, got %v", dropped)
	}
	if d := dropped[1]; d.Kind != "Steel" || !d.Duplicate || d.Weight != 3 {
		t.Fatalf("expected duplicate Steel reported, got %+v", d)
	}
	if !strings.Contains(dropped[1].Error(), "duplicate") {
		t.Fatalf("duplicate warning text: %q", dropped[1].Error())
	}
	want := []Entry{{"Steel", 10}, {"Gold", MaxWeight}}
	if got := tb.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("restore mismatch: got %v want %v", got, want)
	}
}
