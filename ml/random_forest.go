package ml

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest is a bagged ensemble of DecisionTree classifiers that averages leaf
// probabilities. Tree i draws its bootstrap sample and feature subsets from Seed+i,
// so a fit is reproducible regardless of scheduling.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int // 0 means floor(sqrt(features))
	Bootstrap       bool
	Seed            int64
	Workers         int

	trees   []*DecisionTree
	classes []int
}

type ForestOption func(*RandomForest)

func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForest) {
		if n > 0 {
			rf.NEstimators = n
		}
	}
}

func WithMaxDepth(depth int) ForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = depth }
}

func WithMaxFeatures(k int) ForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}

func WithBootstrap(b bool) ForestOption {
	return func(rf *RandomForest) { rf.Bootstrap = b }
}

func WithSeed(seed int64) ForestOption {
	return func(rf *RandomForest) { rf.Seed = seed }
}

func WithWorkers(n int) ForestOption {
	return func(rf *RandomForest) {
		if n > 0 {
			rf.Workers = n
		}
	}
}

func NewRandomForest(opts ...ForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		Seed:            42,
		Workers:         runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	return rf.FitContext(context.Background(), features, labels)
}

func (rf *RandomForest) FitContext(ctx context.Context, features [][]float64, labels []int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	if rf.NEstimators <= 0 {
		return errors.New("n_estimators must be positive")
	}

	classes := uniqueLabels(labels)
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(len(features[0]))))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	workers := rf.Workers
	if workers <= 0 {
		workers = 1
	}

	trees := make([]*DecisionTree, rf.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := rf.Seed + int64(i)
			rnd := rand.New(rand.NewSource(seed))

			n := len(features)
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = rnd.Intn(n)
				} else {
					sample[j] = j
				}
			}

			tree := &DecisionTree{
				MaxDepth:        rf.MaxDepth,
				MinSamplesSplit: rf.MinSamplesSplit,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			}
			if err := tree.fitSample(features, labels, sample, classes, rnd); err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.trees = trees
	rf.classes = classes
	return nil
}

func (rf *RandomForest) Classes() []int {
	return append([]int(nil), rf.classes...)
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not trained")
	}
	sum := make([]float64, len(rf.classes))
	for _, tree := range rf.trees {
		probas, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i, p := range probas {
			sum[i] += p
		}
	}
	for i := range sum {
		sum[i] /= float64(len(rf.trees))
	}
	return sum, nil
}

func (rf *RandomForest) Trees() int {
	return len(rf.trees)
}
