package forecast_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/domain"
	"github.com/couchcryptid/soil-telemetry-service/internal/forecast"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hourModel scores purely on the hour feature so period preferences are
// predictable: mornings win.
type hourModel struct{}

func (hourModel) Score(x []float64) float64 {
	hour := x[5]
	if hour >= 6 && hour < 12 {
		return 0.9
	}
	return 0.2
}

// flatModel scores every vector identically.
type flatModel struct{}

func (flatModel) Score([]float64) float64 { return 0.5 }

func latestReading() store.SoilReading {
	temp := 23.0
	return store.SoilReading{
		ID:          42,
		Timestamp:   time.Date(2026, 8, 28, 9, 45, 0, 0, time.Local),
		Moisture:    36.5,
		PH:          6.1,
		NPK:         domain.EncodeNPK(true, true),
		Temperature: &temp,
		DeviceID:    1,
		PlotID:      1,
	}
}

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, forecast.NightEarly, forecast.PeriodOf(0))
	assert.Equal(t, forecast.NightEarly, forecast.PeriodOf(5))
	assert.Equal(t, forecast.Morning, forecast.PeriodOf(6))
	assert.Equal(t, forecast.Morning, forecast.PeriodOf(11))
	assert.Equal(t, forecast.Afternoon, forecast.PeriodOf(12))
	assert.Equal(t, forecast.Afternoon, forecast.PeriodOf(17))
	assert.Equal(t, forecast.NightLate, forecast.PeriodOf(18))
	assert.Equal(t, forecast.NightLate, forecast.PeriodOf(23))
}

func TestRecommend_ShapeAndDates(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 17, 0, 0, time.UTC)

	table, err := forecast.New(flatModel{}).Recommend(latestReading(), now, 7)
	require.NoError(t, err)

	assert.Equal(t, 7, table.HorizonDays)
	require.Len(t, table.Days, 7)
	assert.Equal(t, [4]string{"night-early", "morning", "afternoon", "night-late"}, table.Periods)

	for i, d := range table.Days {
		want := now.Truncate(time.Hour).Add(time.Duration(i) * 24 * time.Hour)
		assert.Equal(t, want.Format("2006-01-02"), d.Date)
	}
}

func TestRecommend_MorningModelPrefersMorning(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	table, err := forecast.New(hourModel{}).Recommend(latestReading(), now, 3)
	require.NoError(t, err)

	for _, d := range table.Days {
		assert.Equal(t, forecast.Morning, d.Best, "day %s", d.Date)
		assert.InDelta(t, 0.9, d.Scores[forecast.Morning], 1e-12)
		assert.InDelta(t, 0.2, d.Scores[forecast.Afternoon], 1e-12)
	}
}

func TestRecommend_TieGoesToEarliestPeriod(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	table, err := forecast.New(flatModel{}).Recommend(latestReading(), now, 2)
	require.NoError(t, err)

	for _, d := range table.Days {
		assert.Equal(t, forecast.NightEarly, d.Best)
	}
}

func TestRecommend_BadHorizon(t *testing.T) {
	_, err := forecast.New(flatModel{}).Recommend(latestReading(), time.Now(), 0)
	assert.Error(t, err)
}

func TestRecommend_BadStoredNPK(t *testing.T) {
	r := latestReading()
	r.NPK = "bogus"

	_, err := forecast.New(flatModel{}).Recommend(r, time.Now(), 1)
	assert.Error(t, err)
}

func TestTable_WriteText(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	table, err := forecast.New(hourModel{}).Recommend(latestReading(), now, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "2026-08-28")
	assert.Contains(t, out, "2026-08-29")
	assert.Contains(t, out, "morning")
}
