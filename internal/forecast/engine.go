package forecast

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/couchcryptid/soil-telemetry-service/internal/train"
)

// Scorer is the slice of the fitted model the engine needs: a fixed-order
// feature vector in, an irrigation probability out.
type Scorer interface {
	Score(x []float64) float64
}

// DayForecast is one horizon day scored across the four periods.
type DayForecast struct {
	Date   string              `json:"date"`
	Scores [numPeriods]float64 `json:"scores"`
	Best   Period              `json:"best_period"`
}

// Table is the full recommendation: one row per horizon day, the mean
// irrigation probability per period, and the winning period per day.
type Table struct {
	GeneratedAt time.Time          `json:"generated_at"`
	HorizonDays int                `json:"horizon_days"`
	Periods     [numPeriods]string `json:"periods"`
	Days        []DayForecast      `json:"days"`
}

// Engine turns the latest field reading plus a fitted model into an
// irrigation window recommendation.
type Engine struct {
	model Scorer
}

func New(model Scorer) *Engine {
	return &Engine{model: model}
}

// Recommend scores a synthetic hourly grid over the horizon. Soil features
// are held at the latest reading; only the clock advances. The model was
// trained with hour and weekday features, so scores vary across the grid even
// though the soil state is frozen. Within a day, ties go to the earliest
// period.
func (e *Engine) Recommend(latest store.SoilReading, now time.Time, horizonDays int) (*Table, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("forecast: horizon must be at least 1 day, got %d", horizonDays)
	}

	start := now.Truncate(time.Hour)
	table := &Table{
		GeneratedAt: now,
		HorizonDays: horizonDays,
		Periods:     periodNames,
		Days:        make([]DayForecast, 0, horizonDays),
	}

	for day := 0; day < horizonDays; day++ {
		dayStart := start.Add(time.Duration(day) * 24 * time.Hour)
		var buckets [numPeriods][]float64

		for h := 0; h < 24; h++ {
			ts := dayStart.Add(time.Duration(h) * time.Hour)
			synthetic := latest
			synthetic.Timestamp = ts
			x, err := train.FeatureVector(synthetic)
			if err != nil {
				return nil, fmt.Errorf("forecast: %w", err)
			}
			p := PeriodOf(ts.Hour())
			buckets[p] = append(buckets[p], e.model.Score(x))
		}

		df := DayForecast{Date: dayStart.Format("2006-01-02")}
		for p := 0; p < numPeriods; p++ {
			df.Scores[p] = stat.Mean(buckets[p], nil)
		}
		df.Best = bestPeriod(df.Scores)
		table.Days = append(table.Days, df)
	}
	return table, nil
}

// bestPeriod picks the highest-scoring period, earliest wins on a tie.
func bestPeriod(scores [numPeriods]float64) Period {
	best := NightEarly
	for p := Period(1); int(p) < numPeriods; p++ {
		if scores[p] > scores[best] {
			best = p
		}
	}
	return best
}

// WriteText renders the table for terminal consumption.
func (t *Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "date\t%s\t%s\t%s\t%s\tbest\n",
		t.Periods[0], t.Periods[1], t.Periods[2], t.Periods[3])
	for _, d := range t.Days {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			d.Date, d.Scores[0], d.Scores[1], d.Scores[2], d.Scores[3], d.Best)
	}
	return tw.Flush()
}
