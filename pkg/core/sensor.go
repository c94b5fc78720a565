// pkg/core/sensor.go
package core

import (
	"math"
	"time"
)

// Sample is one row of a sensor file. Values is aligned with SensorSeries.Channels; NaN marks a missing value.
type Sample struct {
	Time   time.Time
	Values []float64
}

// SensorSeries is a dense multi-channel time series.
type SensorSeries struct {
	Source    string
	TimeField string
	Channels  []string
	Samples   []Sample

	// SkippedLines counts the leading comment lines removed before parsing.
	SkippedLines int

	// Dropped lists columns that held non-numeric text and were not loaded as channels.
	Dropped []string
}

// Len returns the number of samples.
func (s *SensorSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// ChannelIndex returns the position of a channel in Values, or -1.
func (s *SensorSeries) ChannelIndex(name string) int {
	for i, c := range s.Channels {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value of channel name at sample i. ok is false when the channel is unknown or the value is missing.
func (s *SensorSeries) Value(i int, name string) (v float64, ok bool) {
	c := s.ChannelIndex(name)
	if c < 0 || i < 0 || i >= len(s.Samples) {
		return math.NaN(), false
	}
	v = s.Samples[i].Values[c]
	return v, !math.IsNaN(v)
}

// TimeRange returns the earliest and latest timestamps. ok is false for an empty series.
func (s *SensorSeries) TimeRange() (first, last time.Time, ok bool) {
	if s.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = s.Samples[0].Time, s.Samples[0].Time
	for _, r := range s.Samples[1:] {
		if r.Time.Before(first) {
			first = r.Time
		}
		if r.Time.After(last) {
			last = r.Time
		}
	}
	return first, last, true
}
