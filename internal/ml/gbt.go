// Package ml implements the irrigation classifier: gradient-boosted
// regression trees with logistic loss, trained with time-ordered
// cross-validation. The booster is self-contained and its serialized form is
// the model artifact the forecast engine consumes; consumers depend only on
// the fixed-order feature vector in, score out contract.
package ml

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateLabels is returned when training data contains a single class.
// A booster fit on one class would always emit that class; callers must treat
// this as "not enough signal", not fit anyway.
var ErrDegenerateLabels = errors.New("ml: training labels contain a single class")

// Params configure the booster. The learning rate is the only parameter the
// training pipeline searches over; the rest are fixed structure bounds.
type Params struct {
	LearningRate float64 `json:"learning_rate"`
	NumTrees     int     `json:"num_trees"`
	MaxDepth     int     `json:"max_depth"`
	MinLeafSize  int     `json:"min_leaf_size"`
}

// DefaultParams returns the production booster configuration.
func DefaultParams() Params {
	return Params{
		LearningRate: 0.1,
		NumTrees:     100,
		MaxDepth:     3,
		MinLeafSize:  5,
	}
}

// Classifier is a fitted gradient-boosted tree ensemble for the binary
// irrigation label. Scores are probabilities of class 1.
type Classifier struct {
	Params       Params   `json:"params"`
	FeatureNames []string `json:"feature_names"`
	InitScore    float64  `json:"init_score"`
	Trees        []Tree   `json:"trees"`
}

// Train fits a classifier on the feature matrix X and binary labels y.
// Rows must be in temporal order when the caller intends to cross-validate;
// Train itself is order-agnostic.
func Train(X [][]float64, y []int, p Params) (*Classifier, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("ml: bad training shape: %d rows, %d labels", n, len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("ml: ragged feature row %d: %d != %d", i, len(row), width)
		}
	}

	pos := 0
	for _, label := range y {
		if label != 0 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return nil, ErrDegenerateLabels
	}

	// Initial raw score: log-odds of the base rate.
	base := float64(pos) / float64(n)
	init := math.Log(base / (1 - base))

	c := &Classifier{Params: p, InitScore: init}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = init
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for t := 0; t < p.NumTrees; t++ {
		for i := 0; i < n; i++ {
			prob := sigmoid(raw[i])
			grad[i] = float64(y[i]) - prob
			hess[i] = prob * (1 - prob)
		}

		tree := fitTree(X, grad, hess, indices, p.MaxDepth, p.MinLeafSize)
		c.Trees = append(c.Trees, tree)

		for i := 0; i < n; i++ {
			raw[i] += p.LearningRate * tree.predict(X[i])
		}
	}

	return c, nil
}

// Score returns the probability of the irrigate class for one feature row.
func (c *Classifier) Score(x []float64) float64 {
	raw := c.InitScore
	for i := range c.Trees {
		raw += c.Params.LearningRate * c.Trees[i].predict(x)
	}
	return sigmoid(raw)
}

// Predict collapses the score to the hard decision at 0.5.
func (c *Classifier) Predict(x []float64) int {
	if c.Score(x) >= 0.5 {
		return 1
	}
	return 0
}

// Accuracy is the share of rows whose hard decision matches the label.
func (c *Classifier) Accuracy(X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i := range X {
		if c.Predict(X[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
