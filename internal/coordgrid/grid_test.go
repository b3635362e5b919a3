package coordgrid_test

import (
	"testing"
	"time"

	"github.com/caiorlm/logichain/internal/coordgrid"
)

func Test_CellAtFloorsCoordinates(t *testing.T) {
	g := coordgrid.NewGrid(100)

	cell, err := g.CellAt(40.7, -73.9)
	if err != nil {
		t.Fatalf("Should resolve a cell: %s", err)
	}
	if cell.Lat != 40 || cell.Lng != -74 {
		t.Fatalf("got (%d,%d), exp (40,-74)", cell.Lat, cell.Lng)
	}
}

func Test_CellAtRejectsOutOfRange(t *testing.T) {
	g := coordgrid.NewGrid(100)

	if _, err := g.CellAt(91, 0); err != coordgrid.ErrOutOfRange {
		t.Fatalf("got %v, exp ErrOutOfRange", err)
	}
}

func Test_SaturationNeverExceedsCap(t *testing.T) {
	g := coordgrid.NewGrid(5)
	now := time.Now()

	accepted := 0
	for i := 0; i < 20; i++ {
		_, err := g.RecordOp(10, 10, now)
		if err == nil {
			accepted++
		}
	}

	if accepted != 5 {
		t.Fatalf("got %d accepted ops, exp 5 (MAX_COORDINATE_OPS)", accepted)
	}

	cell, _ := g.CellAt(10, 10)
	if cell.OpsInWindow(now) != 5 {
		t.Fatalf("got %d ops in window, exp 5", cell.OpsInWindow(now))
	}
}

func Test_WindowSlidesAfter60Seconds(t *testing.T) {
	g := coordgrid.NewGrid(2)
	now := time.Now()

	if _, err := g.RecordOp(0, 0, now); err != nil {
		t.Fatalf("first op should be accepted: %s", err)
	}
	if _, err := g.RecordOp(0, 0, now); err != nil {
		t.Fatalf("second op should be accepted: %s", err)
	}
	if _, err := g.RecordOp(0, 0, now); err != coordgrid.ErrCoordinateSaturated {
		t.Fatalf("got %v, exp ErrCoordinateSaturated", err)
	}

	later := now.Add(61 * time.Second)
	if _, err := g.RecordOp(0, 0, later); err != nil {
		t.Fatalf("op after the window slides should be accepted: %s", err)
	}
}

func Test_HaversineKnownDistance(t *testing.T) {
	// New York City to London, roughly 5570 km.
	d := coordgrid.HaversineMeters(40.7128, -74.0060, 51.5074, -0.1278)
	if d < 5_400_000 || d > 5_600_000 {
		t.Fatalf("got %.0fm, exp roughly 5570km", d)
	}
}

func Test_EMAMovesTowardOutcome(t *testing.T) {
	g := coordgrid.NewGrid(100)
	cell, err := g.CellAt(1, 1)
	if err != nil {
		t.Fatalf("Should resolve cell: %s", err)
	}

	start := cell.Snapshot().SuccessRateEMA
	cell.RecordFailure()
	after := cell.Snapshot().SuccessRateEMA
	if after >= start {
		t.Fatalf("EMA should move toward 0 after a failure: got %f from %f", after, start)
	}
}
