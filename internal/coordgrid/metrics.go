package coordgrid

import "gonum.org/v1/gonum/stat"

// GlobalSuccessRate returns the unweighted mean of every active cell's EMA
// success rate, used by the node's health/metrics surface to report network
// delivery health at a glance.
func (g *Grid) GlobalSuccessRate() float64 {
	var rates []float64
	for lat := range g.cells {
		for lng := range g.cells[lat] {
			cell := g.cells[lat][lng].Snapshot()
			if cell.Successes+cell.Failures == 0 {
				continue
			}
			rates = append(rates, cell.SuccessRateEMA)
		}
	}
	if len(rates) == 0 {
		return 0
	}
	return stat.Mean(rates, nil)
}

// AverageDeliveryDuration returns the mean of every active cell's running
// average delivery duration, in seconds.
func (g *Grid) AverageDeliveryDuration() float64 {
	var durations []float64
	for lat := range g.cells {
		for lng := range g.cells[lat] {
			cell := g.cells[lat][lng].Snapshot()
			if cell.Successes == 0 {
				continue
			}
			durations = append(durations, cell.AvgDurationSeconds)
		}
	}
	if len(durations) == 0 {
		return 0
	}
	return stat.Mean(durations, nil)
}
