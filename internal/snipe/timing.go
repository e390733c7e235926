package snipe

import (
	"sort"
	"time"
)

// PollStage sets the poll interval once the window is at most Within away.
type PollStage struct {
	Within time.Duration
	Every  time.Duration
}

// Timing holds the thresholds that shape the wait before a window opens.
type Timing struct {
	// NearThreshold is when coarse sleeping stops and polling starts.
	NearThreshold time.Duration
	// MaxChunk bounds a single coarse sleep.
	MaxChunk   time.Duration
	PollStages []PollStage
	// PollJitter adds up to this much random delay to each poll sleep.
	PollJitter time.Duration
}

// DefaultTiming is the conservative five-minute variant.
func DefaultTiming() Timing {
	return Timing{
		NearThreshold: 5 * time.Minute,
		MaxChunk:      time.Hour,
		PollStages: []PollStage{
			{Within: 5 * time.Minute, Every: 10 * time.Second},
			{Within: time.Minute, Every: 2 * time.Second},
		},
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.NearThreshold <= 0 {
		t.NearThreshold = d.NearThreshold
	}
	if t.MaxChunk <= 0 {
		t.MaxChunk = d.MaxChunk
	}
	if len(t.PollStages) == 0 {
		t.PollStages = d.PollStages
	}
	stages := append([]PollStage(nil), t.PollStages...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Within < stages[j].Within })
	t.PollStages = stages
	return t
}

// coarseSleep is how long to sleep when remaining is still outside the near
// threshold.
func (t Timing) coarseSleep(remaining time.Duration) time.Duration {
	return min(remaining-t.NearThreshold, t.MaxChunk)
}

// pollInterval picks the tightest stage that still covers remaining. Stages
// must be sorted by Within.
func (t Timing) pollInterval(remaining time.Duration) time.Duration {
	for _, s := range t.PollStages {
		if remaining <= s.Within {
			return s.Every
		}
	}
	return t.PollStages[len(t.PollStages)-1].Every
}
