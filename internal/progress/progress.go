// Package progress models the gallery's cosmetic progress bar as a pure
// function of elapsed time. It is deliberately decoupled from the real
// pipeline: the bar crawls toward 99 and only the actual completion signal
// takes it to 100.
package progress

import "time"

// stage advances the bar at a fixed rate (percent per second) until the bar
// reaches its ceiling.
type stage struct {
	ceiling float64
	rate    float64
}

// Fast start, steady middle, crawl near the end. Tuned to reach ~95% around
// ten seconds, matching the typical generation round trip.
var stages = []stage{
	{ceiling: 20, rate: 10},
	{ceiling: 50, rate: 8},
	{ceiling: 80, rate: 6},
	{ceiling: 95, rate: 3},
	{ceiling: 99, rate: 0.4},
}

// Percent maps elapsed pipeline time to a simulated completion percentage in
// [0, 99]. Monotonic non-decreasing in elapsed.
func Percent(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}

	seconds := elapsed.Seconds()
	current := 0.0
	for _, s := range stages {
		needed := (s.ceiling - current) / s.rate
		if seconds < needed {
			return int(current + seconds*s.rate)
		}
		seconds -= needed
		current = s.ceiling
	}
	return 99
}
