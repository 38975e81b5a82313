package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SMOTE oversamples every minority class up to the majority count by interpolating
// between a sample and one of its K nearest same-class neighbours.
type SMOTE struct {
	K    int
	Seed int64
}

func NewSMOTE(k int, seed int64) *SMOTE {
	if k <= 0 {
		k = 5
	}
	return &SMOTE{K: k, Seed: seed}
}

// Resample returns the original rows followed by the synthetic ones. Input slices are not modified.
func (s *SMOTE) Resample(features [][]float64, labels []int) ([][]float64, []int, error) {
	if err := checkTrainingSet(features, labels); err != nil {
		return nil, nil, err
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := uniqueLabels(labels)
	if len(classes) < 2 {
		return nil, nil, errors.New("oversampling needs at least two classes")
	}

	majority := 0
	for _, c := range classes {
		if len(byClass[c]) > majority {
			majority = len(byClass[c])
		}
	}

	outX := make([][]float64, 0, majority*len(classes))
	outY := make([]int, 0, majority*len(classes))
	for i, row := range features {
		outX = append(outX, append([]float64(nil), row...))
		outY = append(outY, labels[i])
	}

	rnd := rand.New(rand.NewSource(s.Seed))
	for _, c := range classes {
		members := byClass[c]
		need := majority - len(members)
		if need == 0 {
			continue
		}
		if len(members) <= s.K {
			return nil, nil, fmt.Errorf("class %d has %d samples, need more than %d for neighbour search", c, len(members), s.K)
		}

		neighbours := nearestNeighbours(features, members, s.K)
		for j := 0; j < need; j++ {
			pick := rnd.Intn(len(members))
			nn := neighbours[pick][rnd.Intn(s.K)]
			gap := rnd.Float64()

			base := features[members[pick]]
			other := features[nn]
			synthetic := make([]float64, len(base))
			for d := range base {
				synthetic[d] = base[d] + gap*(other[d]-base[d])
			}
			outX = append(outX, synthetic)
			outY = append(outY, c)
		}
	}
	return outX, outY, nil
}

// nearestNeighbours returns, for each member, the row indices of its k closest other
// members by Euclidean distance. Equal distances are ordered by row index.
func nearestNeighbours(features [][]float64, members []int, k int) [][]int {
	result := make([][]int, len(members))
	type candidate struct {
		row  int
		dist float64
	}
	candidates := make([]candidate, 0, len(members)-1)
	for i, row := range members {
		candidates = candidates[:0]
		for _, other := range members {
			if other == row {
				continue
			}
			candidates = append(candidates, candidate{row: other, dist: floats.Distance(features[row], features[other], 2)})
		}
		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].dist != candidates[b].dist {
				return candidates[a].dist < candidates[b].dist
			}
			return candidates[a].row < candidates[b].row
		})
		nn := make([]int, k)
		for j := 0; j < k; j++ {
			nn[j] = candidates[j].row
		}
		result[i] = nn
	}
	return result
}

// ClassCounts returns the number of rows per label.
func ClassCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}
