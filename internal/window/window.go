// Package window computes trailing wall-clock window aggregates over a time-ordered series.
//
// For an entry i and a duration d the window holds every entry j with
//
//	t_i - d < t_j <= t_i
//
// so it is open on the trailing edge, closed on the leading edge, and always contains i together
// with every entry sharing i's timestamp.
package window

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"txfeatures/internal/feature"
)

// Day is the unit window sizes are configured in.
const Day = 24 * time.Hour

// Point is one (timestamp, value) observation of an entity.
type Point struct {
	Time  time.Time
	Value decimal.Decimal
}

// Stat is the aggregate of a window.
type Stat struct {
	Count int
	Sum   decimal.Decimal
}

// Days converts a window size in days to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * Day
}

// TrailingDays is Trailing with the duration given in days.
func TrailingDays(points []Point, days int) ([]Stat, error) {
	return Trailing(points, Days(days))
}

// Trailing returns, for every point, the count and sum of the window of size d ending at that
// point. Results are aligned with the input slice, which is never modified.
func Trailing(points []Point, d time.Duration) ([]Stat, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: window duration must be positive, got %s", feature.ErrConfiguration, d)
	}

	order := Order(points)
	stats := make([]Stat, len(points))

	var (
		head  int // next point to enter the window
		tail  int // oldest point still inside the window
		count int
		sum   = decimal.Zero
	)
	for _, idx := range order {
		now := points[idx].Time

		for head < len(order) && !points[order[head]].Time.After(now) {
			sum = sum.Add(points[order[head]].Value)
			count++
			head++
		}

		cutoff := now.Add(-d)
		for tail < head && !points[order[tail]].Time.After(cutoff) {
			sum = sum.Sub(points[order[tail]].Value)
			count--
			tail++
		}

		stats[idx] = Stat{Count: count, Sum: sum}
	}

	return stats, nil
}

// Order returns the indices of points in ascending time order. Ties keep input order.
func Order(points []Point) []int {
	order := make([]int, len(points))
	sorted := true
	for i := range order {
		order[i] = i
		if i > 0 && points[i].Time.Before(points[i-1].Time) {
			sorted = false
		}
	}
	if sorted {
		return order
	}

	sort.SliceStable(order, func(a, b int) bool {
		return points[order[a]].Time.Before(points[order[b]].Time)
	})
	return order
}
