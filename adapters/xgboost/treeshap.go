package xgboost

import (
	"fmt"

	"riskscore/domain/credit"
	"riskscore/internal/errors"

	"gonum.org/v1/gonum/stat/combin"
)

// MaxTreeFeatures bounds the distinct features one tree may split on. Exact
// attribution enumerates every subset of them.
const MaxTreeFeatures = 16

// treeGame is the per-tree precomputation behind the explainer
type treeGame struct {
	tree     *tree
	used     []int // model feature indices the tree splits on
	slot     map[int]uint
	weights  []float64 // Shapley weight by coalition size
	fraction []float64 // cover share of each node relative to its parent
	expected float64
}

// TreeExplainer computes exact path-dependent tree SHAP values: for each
// tree, the Shapley values of the game whose value for a coalition S is the
// prediction with features outside S integrated out along the training cover.
type TreeExplainer struct {
	model         *Ensemble
	games         []treeGame
	expectedValue float64
}

// NewTreeExplainer precomputes coalition weights, cover fractions and the
// baseline. Build it once per model.
func NewTreeExplainer(model *Ensemble) (*TreeExplainer, error) {
	if model == nil {
		return nil, errors.ConfigInvalid("explainer needs a model")
	}
	ex := &TreeExplainer{model: model, games: make([]treeGame, len(model.trees))}

	weightCache := map[int][]float64{}
	expected := model.baseMargin
	for ti := range model.trees {
		g, err := newTreeGame(&model.trees[ti], weightCache)
		if err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid("model cannot be explained"), "tree %d: %v", ti, err)
		}
		ex.games[ti] = g
		expected += g.expected
	}
	ex.expectedValue = expected
	return ex, nil
}

func newTreeGame(t *tree, weightCache map[int][]float64) (treeGame, error) {
	g := treeGame{tree: t, slot: map[int]uint{}, fraction: make([]float64, len(t.nodes))}

	for _, n := range t.nodes {
		if n.isLeaf() {
			continue
		}
		if _, seen := g.slot[n.feature]; !seen {
			g.slot[n.feature] = uint(len(g.used))
			g.used = append(g.used, n.feature)
		}
	}
	if len(g.used) > MaxTreeFeatures {
		return g, fmt.Errorf("splits on %d features, at most %d supported", len(g.used), MaxTreeFeatures)
	}

	g.fraction[0] = 1
	for _, n := range t.nodes {
		if n.isLeaf() {
			continue
		}
		l, r := t.nodes[n.left].cover, t.nodes[n.right].cover
		if total := l + r; total > 0 {
			g.fraction[n.left], g.fraction[n.right] = l/total, r/total
		} else {
			g.fraction[n.left], g.fraction[n.right] = 0.5, 0.5
		}
	}

	k := len(g.used)
	w, ok := weightCache[k]
	if !ok {
		w = shapleyWeights(k)
		weightCache[k] = w
	}
	g.weights = w
	g.expected = g.value(0, 0, nil)
	return g, nil
}

// shapleyWeights returns |S|!(k-|S|-1)!/k! for every coalition size
func shapleyWeights(k int) []float64 {
	if k == 0 {
		return nil
	}
	w := make([]float64, k)
	for s := 0; s < k; s++ {
		w[s] = 1 / (float64(k) * float64(combin.Binomial(k-1, s)))
	}
	return w
}

// value is the expected tree output when only the features in coalition are
// known. Unknown splits average their children by cover.
func (g *treeGame) value(i int, coalition uint32, x []float64) float64 {
	n := g.tree.nodes[i]
	if n.isLeaf() {
		return n.condition
	}
	if coalition&(1<<g.slot[n.feature]) != 0 {
		return g.value(g.tree.next(n, x[n.feature]), coalition, x)
	}
	return g.fraction[n.left]*g.value(n.left, coalition, x) +
		g.fraction[n.right]*g.value(n.right, coalition, x)
}

// attribute adds this tree's Shapley values into phi
func (g *treeGame) attribute(x []float64, phi []float64) {
	k := len(g.used)
	if k == 0 {
		return
	}
	full := uint32(1) << uint(k)
	values := make([]float64, full)
	for s := uint32(0); s < full; s++ {
		values[s] = g.value(0, s, x)
	}
	for j := 0; j < k; j++ {
		bit := uint32(1) << uint(j)
		var sum float64
		for s := uint32(0); s < full; s++ {
			if s&bit != 0 {
				continue
			}
			sum += g.weights[popcount(s)] * (values[s|bit] - values[s])
		}
		phi[g.used[j]] += sum
	}
}

func popcount(v uint32) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

// ExpectedValue is the attribution baseline in log-odds
func (ex *TreeExplainer) ExpectedValue() float64 {
	return ex.expectedValue
}

// Explain returns one entry per model feature in record order. Positive
// contributions push the log-odds of default up.
func (ex *TreeExplainer) Explain(record credit.FeatureRecord) (credit.Attribution, error) {
	x, err := ex.model.vector(record)
	if err != nil {
		return credit.Attribution{}, errors.Computation("attribution", err)
	}

	phi := make([]float64, len(x))
	for i := range ex.games {
		ex.games[i].attribute(x, phi)
	}

	entries := make([]credit.AttributionEntry, len(x))
	for i, name := range ex.model.features {
		entries[i] = credit.AttributionEntry{Feature: name, Contribution: phi[i], Value: x[i]}
	}
	return credit.Attribution{ExpectedValue: ex.expectedValue, Entries: entries}, nil
}
