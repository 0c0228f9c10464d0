package digest

import (
	"math"
	"time"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

// Summary aggregates a window of score records.
type Summary struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Lines    int       `json:"lines"`
	Negative int       `json:"negative"`
	Positive int       `json:"positive"`
	Neutral  int       `json:"neutral"`
	Average  float64   `json:"average"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
}

// Bucket is the average score over one time slice of the window.
type Bucket struct {
	Start   time.Time `json:"start"`
	Lines   int       `json:"lines"`
	Average float64   `json:"average"`
}

// Summarize folds records into a Summary. Records with a score of exactly
// zero are counted as neutral (empty or unscorable lines).
func Summarize(recs []domain.ScoreRecord, from, to time.Time) Summary {
	s := Summary{From: from, To: to, Lines: len(recs)}
	if len(recs) == 0 {
		return s
	}

	sum := 0.0
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	for _, r := range recs {
		sum += r.Score
		s.Min = math.Min(s.Min, r.Score)
		s.Max = math.Max(s.Max, r.Score)
		switch {
		case r.Score == 0:
			s.Neutral++
		case r.Score < 0:
			s.Negative++
		default:
			s.Positive++
		}
	}
	s.Average = sum / float64(len(recs))
	return s
}

// Bucketize slices the window into fixed-width buckets with per-bucket
// averages, for trend views. Empty buckets are kept with zero lines.
func Bucketize(recs []domain.ScoreRecord, from, to time.Time, width time.Duration) []Bucket {
	if width <= 0 || !to.After(from) {
		return nil
	}

	n := int(to.Sub(from)/width) + 1
	buckets := make([]Bucket, n)
	sums := make([]float64, n)
	for i := range buckets {
		buckets[i].Start = from.Add(time.Duration(i) * width)
	}

	for _, r := range recs {
		if r.ObservedAt.Before(from) || r.ObservedAt.After(to) {
			continue
		}
		i := int(r.ObservedAt.Sub(from) / width)
		if i >= n {
			i = n - 1
		}
		buckets[i].Lines++
		sums[i] += r.Score
	}

	for i := range buckets {
		if buckets[i].Lines > 0 {
			buckets[i].Average = sums[i] / float64(buckets[i].Lines)
		}
	}
	return buckets
}
