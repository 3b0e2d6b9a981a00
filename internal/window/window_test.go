package window

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txfeatures/internal/feature"
)

var epoch = time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC)

func at(days float64) time.Time {
	return epoch.Add(time.Duration(days * float64(Day)))
}

func pt(days float64, value int64) Point {
	return Point{Time: at(days), Value: decimal.NewFromInt(value)}
}

func TestTrailingOpenTrailingEdge(t *testing.T) {
	points := []Point{pt(0, 10), pt(1, 20), pt(8, 30)}

	stats, err := TrailingDays(points, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, stats[0].Count)
	assert.True(t, stats[0].Sum.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2, stats[1].Count)
	assert.True(t, stats[1].Sum.Equal(decimal.NewFromInt(30)))
	// day 1 sits exactly on the open edge of (day 1, day 8].
	assert.Equal(t, 1, stats[2].Count)
	assert.True(t, stats[2].Sum.Equal(decimal.NewFromInt(30)))
}

func TestTrailingJustInsideEdge(t *testing.T) {
	points := []Point{pt(0, 10), {Time: at(1).Add(time.Second), Value: decimal.NewFromInt(20)}, pt(8, 30)}

	stats, err := TrailingDays(points, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, stats[2].Count)
	assert.True(t, stats[2].Sum.Equal(decimal.NewFromInt(50)))
}

func TestTrailingIncludesEqualTimestamps(t *testing.T) {
	points := []Point{pt(2, 1), pt(2, 2), pt(2, 3)}

	stats, err := TrailingDays(points, 1)
	require.NoError(t, err)

	for i, s := range stats {
		assert.Equal(t, 3, s.Count, "point %d", i)
		assert.True(t, s.Sum.Equal(decimal.NewFromInt(6)), "point %d", i)
	}
}

func TestTrailingUnsortedInputKeepsCallerOrder(t *testing.T) {
	points := []Point{pt(8, 30), pt(0, 10), pt(1, 20)}
	snapshot := append([]Point(nil), points...)

	stats, err := TrailingDays(points, 7)
	require.NoError(t, err)

	assert.Equal(t, snapshot, points)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, 1, stats[1].Count)
	assert.Equal(t, 2, stats[2].Count)
}

func TestTrailingEmpty(t *testing.T) {
	stats, err := TrailingDays(nil, 7)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestTrailingRejectsNonPositiveDuration(t *testing.T) {
	_, err := Trailing([]Point{pt(0, 1)}, 0)
	require.ErrorIs(t, err, feature.ErrConfiguration)

	_, err = TrailingDays([]Point{pt(0, 1)}, -3)
	require.ErrorIs(t, err, feature.ErrConfiguration)
}

func TestTrailingMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := make([]Point, 400)
	for i := range points {
		offset := time.Duration(rng.Int63n(int64(60 * Day)))
		// snap some points to midnight so ties and exact-edge entries occur
		if i%5 == 0 {
			offset = offset.Truncate(Day)
		}
		points[i] = Point{Time: epoch.Add(offset), Value: decimal.NewFromInt(rng.Int63n(1000))}
	}

	for _, days := range []int{1, 7, 30} {
		stats, err := TrailingDays(points, days)
		require.NoError(t, err)

		d := Days(days)
		for i, p := range points {
			var count int
			sum := decimal.Zero
			for _, q := range points {
				if q.Time.After(p.Time.Add(-d)) && !q.Time.After(p.Time) {
					count++
					sum = sum.Add(q.Value)
				}
			}
			require.Equal(t, count, stats[i].Count, "days=%d point=%d", days, i)
			require.True(t, sum.Equal(stats[i].Sum), "days=%d point=%d", days, i)
		}
	}
}

func TestOrderStableOnTies(t *testing.T) {
	points := []Point{pt(3, 0), pt(1, 0), pt(3, 0), pt(1, 0)}
	assert.Equal(t, []int{1, 3, 0, 2}, Order(points))
}
