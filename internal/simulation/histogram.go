package simulation

import (
	"encoding/json"
	"math"
)

// Histogram counts, for every round played while a losing streak is open,
// the streak length at that round. Pushes inside a streak and each loss
// along the way are counted too, so a run of three losses adds 1, 2 and 3.
// Index 0 is unused.
type Histogram struct {
	counts []int64
	total  int64
}

// Add records one observation of a streak of the given length.
func (h *Histogram) Add(length int) {
	if length <= 0 {
		return
	}
	if length >= len(h.counts) {
		grown := make([]int64, length+1)
		copy(grown, h.counts)
		h.counts = grown
	}
	h.counts[length]++
	h.total++
}

// Count returns the number of observations of a given length.
func (h *Histogram) Count(length int) int64 {
	if length <= 0 || length >= len(h.counts) {
		return 0
	}
	return h.counts[length]
}

// Total returns the number of observations.
func (h *Histogram) Total() int64 { return h.total }

// Max returns the longest length observed.
func (h *Histogram) Max() int {
	for i := len(h.counts) - 1; i > 0; i-- {
		if h.counts[i] > 0 {
			return i
		}
	}
	return 0
}

// Percentile returns the smallest length L such that at least p of all
// observations are <= L (nearest rank). p is clamped to [0, 1].
func (h *Histogram) Percentile(p float64) int {
	if h.total == 0 {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	rank := int64(math.Ceil(p * float64(h.total)))
	if rank < 1 {
		rank = 1
	}
	var seen int64
	for length, c := range h.counts {
		seen += c
		if seen >= rank {
			return length
		}
	}
	return h.Max()
}

// MarshalJSON encodes the histogram as a length -> count object.
func (h Histogram) MarshalJSON() ([]byte, error) {
	out := make(map[int]int64)
	for length, c := range h.counts {
		if c > 0 {
			out[length] = c
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the object form written by MarshalJSON.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	var in map[int]int64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*h = Histogram{}
	for length, c := range in {
		if length <= 0 || c <= 0 {
			continue
		}
		h.Add(length)
		h.counts[length] += c - 1
		h.total += c - 1
	}
	return nil
}
