package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/linnemanlabs/medtriage/internal/urgency"
)

// StratifiedSplit shuffles each urgency level's rows with seed and holds out
// testFrac of them, so train and test keep the dataset's class ratios. Every
// level with at least two rows contributes to both sides.
func StratifiedSplit(d *Dataset, testFrac float64, seed uint64) (train, test *Dataset, err error) {
	if testFrac <= 0 || testFrac >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v must be in (0, 1)", testFrac)
	}
	if d.Len() < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, have %d", d.Len())
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))

	var trainIdx, testIdx []int
	for _, lvl := range urgency.Levels {
		var idx []int
		for i, r := range d.Rows {
			if r.Urgency == lvl {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(testFrac * float64(len(idx))))
		if len(idx) >= 2 {
			nTest = min(max(nTest, 1), len(idx)-1)
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}

	slices.Sort(trainIdx)
	slices.Sort(testIdx)
	return d.subset(trainIdx), d.subset(testIdx), nil
}

// StratifiedFolds assigns every row to one of k folds: the i-th row of each
// class, in dataset order, goes to fold i mod k. Each returned slice holds the
// row indices of one fold.
func StratifiedFolds(y []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("folds must be at least 2, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("need at least %d rows for %d folds, have %d", k, k, len(y))
	}

	folds := make([][]int, k)
	seen := make(map[int]int)
	for i, c := range y {
		f := seen[c] % k
		seen[c]++
		folds[f] = append(folds[f], i)
	}
	return folds, nil
}
