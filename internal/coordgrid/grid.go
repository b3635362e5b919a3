// Package coordgrid implements the fixed 181x361 integer-degree coordinate
// index spec §3/§4.2 describes: one cell per (lat, lng) integer pair,
// holding per-cell contract/delivery counters, an exponentially-weighted
// success rate, and a rolling ops-per-minute saturation guard.
package coordgrid

import (
	"errors"
	"math"
	"sync"
	"time"
)

const (
	// LatMin/LatMax/LngMin/LngMax bound the fixed grid spec §3 defines:
	// 181 latitude bins x 361 longitude bins.
	LatMin, LatMax = -90, 90
	LngMin, LngMax = -180, 180

	// EMAAlpha is the exponential-moving-average weight spec §4.2 assigns
	// the per-cell success rate.
	EMAAlpha = 0.1

	rollingWindow = 60 * time.Second
)

// ErrCoordinateSaturated is returned when a cell's ops-per-minute window is
// already at MaxOpsPerMinute.
var ErrCoordinateSaturated = errors.New("coordgrid: cell saturated")

// ErrOutOfRange is returned for a (lat, lng) pair outside the fixed grid.
var ErrOutOfRange = errors.New("coordgrid: coordinate out of range")

// Cell holds the counters and rolling state for one integer-degree bin.
type Cell struct {
	mu sync.Mutex

	Lat, Lng int

	ActiveContracts int64
	Successes       uint64
	Failures        uint64
	LastActivity     time.Time
	SuccessRateEMA   float64
	AvgDurationSeconds float64

	opTimestamps []time.Time
}

func newCell(lat, lng int) *Cell {
	return &Cell{Lat: lat, Lng: lng, SuccessRateEMA: 1.0}
}

// pruneLocked drops timestamps older than the rolling window. Caller holds c.mu.
func (c *Cell) pruneLocked(now time.Time) {
	cutoff := now.Add(-rollingWindow)
	i := 0
	for i < len(c.opTimestamps) && c.opTimestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		c.opTimestamps = c.opTimestamps[i:]
	}
}

// Grid is the fixed 181x361 coordinate index. It owns one Cell per integer
// degree pair, pre-allocated at construction so lookups never allocate.
type Grid struct {
	maxOpsPerMinute int
	cells           [LatMax - LatMin + 1][LngMax - LngMin + 1]*Cell
}

// NewGrid allocates every cell up front, matching the eager initialization
// the original coordinate grid performs.
func NewGrid(maxOpsPerMinute int) *Grid {
	g := &Grid{maxOpsPerMinute: maxOpsPerMinute}
	for lat := LatMin; lat <= LatMax; lat++ {
		for lng := LngMin; lng <= LngMax; lng++ {
			g.cells[lat-LatMin][lng-LngMin] = newCell(lat, lng)
		}
	}
	return g
}

// CellAt returns the cell for the integer floor of lat/lng, or
// ErrOutOfRange if the floored coordinate falls outside the grid.
func (g *Grid) CellAt(lat, lng float64) (*Cell, error) {
	latInt := int(math.Floor(lat))
	lngInt := int(math.Floor(lng))
	if latInt < LatMin || latInt > LatMax || lngInt < LngMin || lngInt > LngMax {
		return nil, ErrOutOfRange
	}
	return g.cells[latInt-LatMin][lngInt-LngMin], nil
}

// RecordOp registers one contract operation against the cell at (lat, lng)
// at time now, enforcing the rolling ops-per-minute cap. Returns
// ErrCoordinateSaturated without mutating counters when the cap is already
// met, so the caller's transaction can be rejected cleanly.
func (g *Grid) RecordOp(lat, lng float64, now time.Time) (*Cell, error) {
	cell, err := g.CellAt(lat, lng)
	if err != nil {
		return nil, err
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	cell.pruneLocked(now)
	if len(cell.opTimestamps) >= g.maxOpsPerMinute {
		return cell, ErrCoordinateSaturated
	}

	cell.opTimestamps = append(cell.opTimestamps, now)
	cell.LastActivity = now
	return cell, nil
}

// OpsInWindow reports how many operations the cell has recorded in the
// current rolling 60s window, for metrics/tests.
func (c *Cell) OpsInWindow(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	return len(c.opTimestamps)
}

// RecordSuccess updates the cell's EMA success rate toward 1.0, increments
// the success counter, and folds durationSeconds into the running average
// delivery duration.
func (c *Cell) RecordSuccess(durationSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Successes++
	c.SuccessRateEMA = EMAAlpha*1.0 + (1-EMAAlpha)*c.SuccessRateEMA

	total := c.Successes
	if total == 1 {
		c.AvgDurationSeconds = durationSeconds
		return
	}
	c.AvgDurationSeconds = (c.AvgDurationSeconds*float64(total-1) + durationSeconds) / float64(total)
}

// RecordFailure updates the cell's EMA success rate toward 0 and increments
// the failure counter.
func (c *Cell) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Failures++
	c.SuccessRateEMA = EMAAlpha*0.0 + (1-EMAAlpha)*c.SuccessRateEMA
}

// IncActive/DecActive track contracts currently open against this cell.
func (c *Cell) IncActive() {
	c.mu.Lock()
	c.ActiveContracts++
	c.mu.Unlock()
}

func (c *Cell) DecActive() {
	c.mu.Lock()
	if c.ActiveContracts > 0 {
		c.ActiveContracts--
	}
	c.mu.Unlock()
}

// Snapshot returns a copy of the cell's counters for read-only callers
// (API responses, tests) without holding the lock past the call.
func (c *Cell) Snapshot() Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Cell{
		Lat:                c.Lat,
		Lng:                c.Lng,
		ActiveContracts:    c.ActiveContracts,
		Successes:          c.Successes,
		Failures:           c.Failures,
		LastActivity:       c.LastActivity,
		SuccessRateEMA:     c.SuccessRateEMA,
		AvgDurationSeconds: c.AvgDurationSeconds,
	}
}
