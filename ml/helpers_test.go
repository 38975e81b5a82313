package ml

import "math/rand"

// syntheticCustomers draws well-separated clusters: cluster c buys roughly 10^c times
// more than cluster 0.
func syntheticCustomers(counts map[int]int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	var features [][]float64
	var labels []int
	for c := 0; c < 3; c++ {
		scale := 1.0
		for i := 0; i < c; i++ {
			scale *= 10
		}
		for i := 0; i < counts[c]; i++ {
			transactions := scale * (1 + rnd.Float64())
			products := transactions * (2 + rnd.Float64())
			unique := products * (0.5 + 0.3*rnd.Float64())
			sales := products * (10 + 5*rnd.Float64())
			cart := sales / transactions
			features = append(features, []float64{
				transactions,
				products,
				unique,
				sales,
				sales / products,
				cart,
				cart * (0.3 + 0.2*rnd.Float64()),
				cart * (1.5 + 0.5*rnd.Float64()),
			})
			labels = append(labels, c)
		}
	}
	return features, labels
}
