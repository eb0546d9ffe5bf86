package recommend

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"plant-advisor/internal/common/errors"
)

// ForestConfig holds the bagging hyperparameters shared by every forest.
type ForestConfig struct {
	Trees           int
	MaxDepth        int // 0 means grow until pure
	MinSamplesSplit int
	Seed            uint64
}

func (c ForestConfig) withDefaults() ForestConfig {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	return c
}

// node is one entry of a flattened tree. Feature < 0 marks a leaf.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     float64   `json:"v,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) leaf(x []float64) *node {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// Forest is a bagged ensemble of CART trees. Classes is empty for regression.
type Forest struct {
	Classes    []string `json:"classes,omitempty"`
	Width      int      `json:"width"`
	Trees      []tree   `json:"trees"`
	OOBScore   float64  `json:"oobScore"`
	OOBSamples int      `json:"oobSamples"`
}

// Regression reports whether the forest averages leaf values.
func (f *Forest) Regression() bool {
	return len(f.Classes) == 0
}

// TrainRegressor fits a forest predicting y from x. OOBScore is the
// out-of-bag mean squared error.
func TrainRegressor(x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	width, err := checkMatrix(x, len(y))
	if err != nil {
		return nil, err
	}
	f := &Forest{Width: width}
	f.fit(x, y, 0, cfg.withDefaults())
	return f, nil
}

// TrainClassifier fits a forest over string labels. Classes are sorted, and
// OOBScore is the out-of-bag accuracy.
func TrainClassifier(x [][]float64, labels []string, cfg ForestConfig) (*Forest, error) {
	width, err := checkMatrix(x, len(labels))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	if len(classes) < 2 {
		return nil, errors.NewInsufficientTrainingDataError("forest", len(x)).WithMetadata("classes", len(classes))
	}

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = float64(index[l])
	}

	f := &Forest{Classes: classes, Width: width}
	f.fit(x, y, len(classes), cfg.withDefaults())
	return f, nil
}

func checkMatrix(x [][]float64, targets int) (int, error) {
	if len(x) < 2 || len(x) != targets {
		return 0, errors.NewInsufficientTrainingDataError("forest", len(x))
	}
	width := len(x[0])
	for _, row := range x {
		if len(row) != width {
			return 0, errors.NewDimensionMismatchError("forest", width, len(row))
		}
	}
	return width, nil
}

func (f *Forest) fit(x [][]float64, y []float64, nClasses int, cfg ForestConfig) {
	n := len(x)
	f.Trees = make([]tree, cfg.Trees)
	inBag := make([][]bool, cfg.Trees)

	mtry := int(math.Sqrt(float64(f.Width)))
	if nClasses == 0 {
		mtry = f.Width / 3
	}
	if mtry < 1 {
		mtry = 1
	}

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i := 0; i < cfg.Trees; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer func() { <-sem; wg.Done() }()

			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			sample := make([]int, n)
			bag := make([]bool, n)
			for j := range sample {
				sample[j] = rng.IntN(n)
				bag[sample[j]] = true
			}

			b := &treeBuilder{x: x, y: y, nClasses: nClasses, cfg: cfg, mtry: mtry, rng: rng}
			b.grow(sample, 0)
			f.Trees[i] = tree{Nodes: b.nodes}
			inBag[i] = bag
		}(i)
	}
	wg.Wait()

	f.scoreOOB(x, y, inBag)
}

func (f *Forest) scoreOOB(x [][]float64, y []float64, inBag [][]bool) {
	var total float64
	samples := 0
	for j := range x {
		var votes []float64
		var sum float64
		count := 0
		for t := range f.Trees {
			if inBag[t][j] {
				continue
			}
			leaf := f.Trees[t].leaf(x[j])
			if f.Regression() {
				sum += leaf.Value
			} else {
				if votes == nil {
					votes = make([]float64, len(f.Classes))
				}
				for k, p := range leaf.Dist {
					votes[k] += p
				}
			}
			count++
		}
		if count == 0 {
			continue
		}
		samples++
		if f.Regression() {
			d := sum/float64(count) - y[j]
			total += d * d
		} else if argmax(votes) == int(y[j]) {
			total++
		}
	}

	f.OOBSamples = samples
	if samples > 0 {
		f.OOBScore = total / float64(samples)
	}
}

// Predict averages the leaf values of every tree.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.Width {
		return 0, errors.NewDimensionMismatchError("regression", f.Width, len(x))
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].leaf(x).Value
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictProba returns one probability per class, aligned with Classes. The
// averaged tree votes are smoothed with 1/len(Classes) of a vote per class.
// Training requires two classes, so no probability reaches 0 or 1.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.Width {
		return nil, errors.NewDimensionMismatchError("classification", f.Width, len(x))
	}
	k := len(f.Classes)
	votes := make([]float64, k)
	for i := range f.Trees {
		for c, p := range f.Trees[i].leaf(x).Dist {
			votes[c] += p
		}
	}

	alpha := 1 / float64(k)
	denom := float64(len(f.Trees)) + alpha*float64(k)
	for c := range votes {
		votes[c] = (votes[c] + alpha) / denom
	}
	return votes, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	nClasses int
	cfg      ForestConfig
	mtry     int
	rng      *rand.Rand
	nodes    []node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: -1})

	if len(idx) < b.cfg.MinSamplesSplit || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) || b.pure(idx) {
		b.makeLeaf(id, idx)
		return id
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		b.makeLeaf(id, idx)
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

func (b *treeBuilder) makeLeaf(id int, idx []int) {
	if b.nClasses == 0 {
		var sum float64
		for _, i := range idx {
			sum += b.y[i]
		}
		b.nodes[id].Value = sum / float64(len(idx))
		return
	}
	dist := make([]float64, b.nClasses)
	for _, i := range idx {
		dist[int(b.y[i])]++
	}
	for c := range dist {
		dist[c] /= float64(len(idx))
	}
	b.nodes[id].Dist = dist
}

// bestSplit examines mtry random features, continuing past mtry only while
// no usable split has been found.
func (b *treeBuilder) bestSplit(idx []int) (split, bool) {
	width := len(b.x[idx[0]])
	best := split{gain: 1e-12}
	found := false

	order := make([]int, len(idx))
	for tried, feature := range b.rng.Perm(width) {
		if tried >= b.mtry && found {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][feature] < b.x[order[c]][feature] })

		if s, ok := b.scan(order, feature); ok && s.gain > best.gain {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) scan(order []int, feature int) (split, bool) {
	if b.nClasses == 0 {
		return b.scanVariance(order, feature)
	}
	return b.scanGini(order, feature)
}

func (b *treeBuilder) scanVariance(order []int, feature int) (split, bool) {
	n := float64(len(order))
	var totalSum, totalSq float64
	for _, i := range order {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parent := totalSq - totalSum*totalSum/n

	best := split{feature: feature}
	found := false
	var leftSum, leftSq float64
	for pos := 0; pos < len(order)-1; pos++ {
		v := b.y[order[pos]]
		leftSum += v
		leftSq += v * v

		cur, next := b.x[order[pos]][feature], b.x[order[pos+1]][feature]
		if cur == next {
			continue
		}
		nl := float64(pos + 1)
		nr := n - nl
		rightSum := totalSum - leftSum
		sse := (leftSq - leftSum*leftSum/nl) + (totalSq - leftSq - rightSum*rightSum/nr)
		if gain := parent - sse; !found || gain > best.gain {
			best.gain = gain
			best.threshold = (cur + next) / 2
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) scanGini(order []int, feature int) (split, bool) {
	n := float64(len(order))
	total := make([]float64, b.nClasses)
	for _, i := range order {
		total[int(b.y[i])]++
	}
	parent := gini(total, n)

	best := split{feature: feature}
	found := false
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	for pos := 0; pos < len(order)-1; pos++ {
		left[int(b.y[order[pos]])]++

		cur, next := b.x[order[pos]][feature], b.x[order[pos+1]][feature]
		if cur == next {
			continue
		}
		nl := float64(pos + 1)
		nr := n - nl
		for c := range total {
			right[c] = total[c] - left[c]
		}
		weighted := (nl*gini(left, nl) + nr*gini(right, nr)) / n
		if gain := parent - weighted; !found || gain > best.gain {
			best.gain = gain
			best.threshold = (cur + next) / 2
			found = true
		}
	}
	return best, found
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / n
		impurity -= p * p
	}
	return impurity
}
