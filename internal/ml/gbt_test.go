package ml_test

import (
	"testing"

	"github.com/couchcryptid/soil-telemetry-service/internal/ml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableDataset builds a deterministic, strictly separable two-feature
// dataset following the irrigation rule shape: label 1 iff moisture < 40 and
// pH inside (5.5, 6.5). Classes are interleaved so every temporal prefix
// contains both.
func separableDataset(n int) (X [][]float64, y []int) {
	for i := 0; i < n; i++ {
		var moisture, ph float64
		if i%2 == 0 {
			moisture = 30 + float64(i%16)*0.5 // 30.0 .. 37.5
			ph = 5.8 + float64(i%8)*0.05      // 5.80 .. 6.15
		} else {
			moisture = 45 + float64(i%16)*0.5 // 45.0 .. 52.5
			ph = 5.8 + float64(i%8)*0.05
		}
		label := 0
		if moisture < 40 && ph > 5.5 && ph < 6.5 {
			label = 1
		}
		X = append(X, []float64{moisture, ph})
		y = append(y, label)
	}
	return X, y
}

func TestTrain_LearnsSeparableRule(t *testing.T) {
	X, y := separableDataset(200)

	c, err := ml.Train(X, y, ml.DefaultParams())
	require.NoError(t, err)

	assert.Greater(t, c.Accuracy(X, y), 0.95)

	// Held-out points generated by the same rule.
	irrigate := []float64{35, 6.0}
	hold := []float64{48, 6.0}
	assert.Equal(t, 1, c.Predict(irrigate))
	assert.Equal(t, 0, c.Predict(hold))
	assert.Greater(t, c.Score(irrigate), c.Score(hold),
		"irrigate-class point must score higher than hold-class point")
}

func TestTrain_DegenerateLabels(t *testing.T) {
	X := [][]float64{{1, 2}, {3, 4}, {5, 6}}

	_, err := ml.Train(X, []int{0, 0, 0}, ml.DefaultParams())
	assert.ErrorIs(t, err, ml.ErrDegenerateLabels)

	_, err = ml.Train(X, []int{1, 1, 1}, ml.DefaultParams())
	assert.ErrorIs(t, err, ml.ErrDegenerateLabels)
}

func TestTrain_ShapeErrors(t *testing.T) {
	_, err := ml.Train(nil, nil, ml.DefaultParams())
	assert.Error(t, err)

	_, err = ml.Train([][]float64{{1, 2}}, []int{0, 1}, ml.DefaultParams())
	assert.Error(t, err)

	_, err = ml.Train([][]float64{{1, 2}, {1}}, []int{0, 1}, ml.DefaultParams())
	assert.Error(t, err)
}

func TestScore_IsProbability(t *testing.T) {
	X, y := separableDataset(100)
	c, err := ml.Train(X, y, ml.DefaultParams())
	require.NoError(t, err)

	for _, x := range X {
		s := c.Score(x)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestScore_Deterministic(t *testing.T) {
	X, y := separableDataset(100)
	c, err := ml.Train(X, y, ml.DefaultParams())
	require.NoError(t, err)

	x := []float64{36, 6.1}
	assert.Equal(t, c.Score(x), c.Score(x))
}
