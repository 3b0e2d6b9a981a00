package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"txfeatures/internal/feature"
)

// dailyPoint aggregates the records of one calendar day.
type dailyPoint struct {
	Day          time.Time
	Transactions int
	FraudRate    float64
	MeanRisk     float64
}

// dailySeries buckets records by the calendar day of their timestamp.
// MeanRisk averages the risk of the given terminal window.
func dailySeries(records []*feature.Record, riskWindow int) []dailyPoint {
	type bucket struct {
		count  int
		frauds int
		risk   decimal.Decimal
	}

	var (
		order   []time.Time
		buckets = make(map[time.Time]*bucket)
	)
	for _, rec := range records {
		y, m, d := rec.Timestamp.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
			order = append(order, day)
		}
		b.count++
		if rec.Fraud {
			b.frauds++
		}
		for _, w := range rec.Terminal {
			if w.Days == riskWindow {
				b.risk = b.risk.Add(w.Risk)
				break
			}
		}
	}

	points := make([]dailyPoint, 0, len(order))
	for _, day := range order {
		b := buckets[day]
		n := decimal.NewFromInt(int64(b.count))
		points = append(points, dailyPoint{
			Day:          day,
			Transactions: b.count,
			FraudRate:    float64(b.frauds) / float64(b.count),
			MeanRisk:     b.risk.Div(n).InexactFloat64(),
		})
	}
	return points
}

// writeDailyChart renders daily volume, fraud rate and mean delayed terminal risk as a PNG.
func writeDailyChart(path string, records []*feature.Record, opts feature.Options) error {
	if len(opts.TerminalWindows) == 0 {
		return errors.New("no terminal windows configured")
	}
	points := dailySeries(records, opts.TerminalWindows[0])
	if len(points) < 2 {
		return errors.New("at least two days of transactions are needed to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	volume := make([]float64, len(points))
	fraud := make([]float64, len(points))
	risk := make([]float64, len(points))

	maxVolume := 1.0
	for i, p := range points {
		x[i] = p.Day
		volume[i] = float64(p.Transactions)
		fraud[i] = p.FraudRate
		risk[i] = p.MeanRisk
		if volume[i] > maxVolume {
			maxVolume = volume[i]
		}
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Transactions per day",
			Range: &chart.ContinuousRange{Min: 0, Max: maxVolume * 1.1},
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Rate",
			ValueFormatter: rateFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Transactions",
				XValues: x,
				YValues: volume,
			},
			chart.TimeSeries{
				Name:    "Fraud rate",
				XValues: x,
				YValues: fraud,
				YAxis:   chart.YAxisSecondary,
			},
			chart.TimeSeries{
				Name:    feature.TerminalRiskColumn(opts.TerminalWindows[0]),
				XValues: x,
				YValues: risk,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
