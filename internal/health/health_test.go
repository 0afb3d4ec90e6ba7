package health

import "testing"

func TestPercentageUnknownWhenDenomZero(t *testing.T) {
	_, ok := Percentage(100, 0)
	if ok {
		t.Fatal("expected unknown HP for zero denom")
	}
}

func TestPercentageClampsUsedToDenom(t *testing.T) {
	pct, ok := Percentage(500, 100)
	if !ok {
		t.Fatal("expected known HP")
	}
	if pct != 0 {
		t.Fatalf("expected 0%%, got %d", pct)
	}
}

func TestPercentageHalfUsed(t *testing.T) {
	pct, ok := Percentage(50, 100)
	if !ok {
		t.Fatal("expected known HP")
	}
	if pct != 50 {
		t.Fatalf("expected 50%%, got %d", pct)
	}
}

func TestZoneOfThresholds(t *testing.T) {
	cases := []struct {
		pct  int
		want Zone
	}{
		{100, Healthy},
		{50, Wounded},
		{10, Critical},
		{0, Critical},
	}
	for _, c := range cases {
		if got := ZoneOf(c.pct, 60, 20); got != c.want {
			t.Fatalf("ZoneOf(%d) = %s, want %s", c.pct, got, c.want)
		}
	}
}
