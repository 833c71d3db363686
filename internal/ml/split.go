package ml

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Fold is one temporal train/validation split: rows [0, TrainEnd) train,
// rows [TrainEnd, ValEnd) validate. Validation slices always come after
// their training slice in time; validating on the past of the training
// window would leak future information into the generalization estimate.
type Fold struct {
	TrainEnd int
	ValEnd   int
}

// TimeSeriesSplit produces nSplits expanding-window folds over n
// time-ordered rows: successive equal validation blocks, each trained on
// everything before it.
func TimeSeriesSplit(n, nSplits int) ([]Fold, error) {
	if nSplits < 2 {
		return nil, fmt.Errorf("ml: need at least 2 splits, got %d", nSplits)
	}
	valSize := n / (nSplits + 1)
	if valSize < 1 {
		return nil, fmt.Errorf("ml: %d rows are too few for %d temporal splits", n, nSplits)
	}

	folds := make([]Fold, 0, nSplits)
	for i := 1; i <= nSplits; i++ {
		trainEnd := n - (nSplits-i+1)*valSize
		folds = append(folds, Fold{TrainEnd: trainEnd, ValEnd: trainEnd + valSize})
	}
	return folds, nil
}

// CVResult is the cross-validation outcome for one candidate configuration.
type CVResult struct {
	Params     Params
	FoldScores []float64
	MeanScore  float64
}

// crossValidate scores one configuration across the folds by validation
// accuracy.
func crossValidate(X [][]float64, y []int, p Params, folds []Fold) (CVResult, error) {
	res := CVResult{Params: p}
	for _, fold := range folds {
		c, err := Train(X[:fold.TrainEnd], y[:fold.TrainEnd], p)
		if err != nil {
			return CVResult{}, fmt.Errorf("ml: fold train [0:%d): %w", fold.TrainEnd, err)
		}
		score := c.Accuracy(X[fold.TrainEnd:fold.ValEnd], y[fold.TrainEnd:fold.ValEnd])
		res.FoldScores = append(res.FoldScores, score)
	}
	res.MeanScore = stat.Mean(res.FoldScores, nil)
	return res, nil
}

// GridSearch evaluates each learning-rate candidate with time-ordered
// cross-validation, refits the best candidate (highest mean fold accuracy,
// ties to the earliest candidate) on the full dataset, and returns the
// fitted classifier plus every candidate's scores for diagnostics.
func GridSearch(X [][]float64, y []int, learningRates []float64, nSplits int, base Params) (*Classifier, []CVResult, error) {
	if len(learningRates) == 0 {
		return nil, nil, fmt.Errorf("ml: empty learning-rate grid")
	}
	folds, err := TimeSeriesSplit(len(X), nSplits)
	if err != nil {
		return nil, nil, err
	}

	results := make([]CVResult, 0, len(learningRates))
	best := -1
	for _, lr := range learningRates {
		p := base
		p.LearningRate = lr
		res, err := crossValidate(X, y, p, folds)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
		if best < 0 || res.MeanScore > results[best].MeanScore {
			best = len(results) - 1
		}
	}

	c, err := Train(X, y, results[best].Params)
	if err != nil {
		return nil, nil, err
	}
	return c, results, nil
}
