package stagepipe

import "time"

// Stats holds the rolling duration statistics of a runner.
type Stats struct {
	Samples       uint64
	AverageMillis uint64
}

// Add returns the stats updated with one more sample, using the incremental integer mean
// avg' = (avg*n + latest) / (n+1). The result is truncated at each step, so it may drift from the exact
// mean of all samples.
func (s Stats) Add(latestMillis uint64) Stats {
	return Stats{
		Samples:       s.Samples + 1,
		AverageMillis: (s.AverageMillis*s.Samples + latestMillis) / (s.Samples + 1),
	}
}

// AddDuration is Add with d truncated to whole milliseconds.
func (s Stats) AddDuration(d time.Duration) Stats {
	if d < 0 {
		d = 0
	}
	return s.Add(uint64(d.Milliseconds()))
}

// Snapshot describes the state of a runner at one instant.
type Snapshot struct {
	Name     string
	ID       string
	Queued   int
	InFlight bool
	Stats
}
