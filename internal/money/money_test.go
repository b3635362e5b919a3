package money_test

import (
	"testing"

	"github.com/caiorlm/logichain/internal/money"
)

func Test_AddSub(t *testing.T) {
	a := money.FromUnits(100)
	b := money.FromUnits(30)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Should be able to add: %s", err)
	}
	if sum.String() != "130.000000000000000000" {
		t.Fatalf("got %s, exp 130.000000000000000000", sum.String())
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Should be able to subtract: %s", err)
	}
	if diff.String() != "70.000000000000000000" {
		t.Fatalf("got %s, exp 70.000000000000000000", diff.String())
	}
}

func Test_WireRoundTrip(t *testing.T) {
	cases := []money.Money{
		money.FromUnits(0),
		money.FromUnits(1),
		money.FromUnits(1000000),
	}

	for _, m := range cases {
		encoded, err := m.MarshalBinary()
		if err != nil {
			t.Fatalf("Should marshal: %s", err)
		}

		decoded := money.UnmarshalMoney(encoded)
		if decoded.Cmp(m) != 0 {
			t.Fatalf("round trip mismatch: got %s, exp %s", decoded, m)
		}
	}
}

func Test_MulFloatSplit(t *testing.T) {
	total := money.FromUnits(100)

	driver, err := total.MulFloat(0.70)
	if err != nil {
		t.Fatalf("Should split: %s", err)
	}
	if driver.String() != "70.000000000000000000" {
		t.Fatalf("got %s, exp 70.000000000000000000", driver.String())
	}
}
