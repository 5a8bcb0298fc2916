package xgboost

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"riskscore/domain/credit"
	"riskscore/internal/errors"

	"github.com/tidwall/gjson"
)

// DefaultThreshold is the probability above which a record is classed high risk
const DefaultThreshold = 0.5

// Options control how an artifact is loaded
type Options struct {
	// FeatureNames is the column order the artifact must declare. When the
	// artifact carries no names only the count is checked.
	FeatureNames []string
	Threshold    float64
}

type node struct {
	left        int
	right       int
	feature     int
	condition   float64 // leaf value when left < 0
	split       float32 // condition at the precision the predictor compares in
	defaultLeft bool
	cover       float64
}

func (n node) isLeaf() bool {
	return n.left < 0
}

type tree struct {
	nodes []node
}

// next returns the child a present or missing value routes to
func (t *tree) next(n node, x float64) int {
	if math.IsNaN(x) {
		if n.defaultLeft {
			return n.left
		}
		return n.right
	}
	// features and thresholds are float32 in XGBoost's predictor
	if float32(x) < n.split {
		return n.left
	}
	return n.right
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.isLeaf() {
			return n.condition
		}
		i = t.next(n, x[n.feature])
	}
}

// Ensemble is a binary:logistic gradient-boosted tree model read from the
// XGBoost JSON serialization. It is immutable once loaded.
type Ensemble struct {
	features   []string
	trees      []tree
	baseMargin float64
	threshold  float64
}

// Load reads and parses a model artifact from disk
func Load(path string, opts Options) (*Ensemble, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ConfigInvalid("model artifact unavailable"), "read %s: %v", path, err)
	}
	m, err := Parse(raw, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}

// Parse builds an ensemble from the bytes of an XGBoost JSON model
func Parse(raw []byte, opts Options) (*Ensemble, error) {
	if !gjson.ValidBytes(raw) {
		return nil, corrupt("not valid JSON")
	}
	learner := gjson.GetBytes(raw, "learner")
	if !learner.Exists() {
		return nil, corrupt("missing learner")
	}

	if objective := learner.Get("objective.name").String(); objective != "binary:logistic" {
		return nil, corrupt(fmt.Sprintf("unsupported objective %q", objective))
	}

	features, err := parseFeatures(learner, opts.FeatureNames)
	if err != nil {
		return nil, err
	}

	base, err := parseBaseScore(learner.Get("learner_model_param.base_score").String())
	if err != nil {
		return nil, err
	}

	treesJSON := learner.Get("gradient_booster.model.trees")
	if !treesJSON.Exists() {
		// dart keeps its gbtree one level down
		treesJSON = learner.Get("gradient_booster.gbtree.model.trees")
	}
	if !treesJSON.IsArray() {
		return nil, corrupt("missing trees")
	}

	trees := make([]tree, 0, len(treesJSON.Array()))
	for i, tj := range treesJSON.Array() {
		t, err := parseTree(tj, len(features))
		if err != nil {
			return nil, corrupt(fmt.Sprintf("tree %d: %v", i, err))
		}
		trees = append(trees, t)
	}
	if len(trees) == 0 {
		return nil, corrupt("model has no trees")
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("threshold %v outside (0,1)", threshold))
	}

	return &Ensemble{
		features:   features,
		trees:      trees,
		baseMargin: logit(base),
		threshold:  threshold,
	}, nil
}

func corrupt(reason string) error {
	return errors.ConfigInvalid("corrupt model artifact: " + reason)
}

func parseFeatures(learner gjson.Result, expected []string) ([]string, error) {
	declared := learner.Get("feature_names").Array()
	numFeature := int(learner.Get("learner_model_param.num_feature").Int())

	if len(declared) == 0 {
		if len(expected) > 0 && numFeature != len(expected) {
			return nil, corrupt(fmt.Sprintf("model has %d features, want %d", numFeature, len(expected)))
		}
		if len(expected) > 0 {
			return append([]string(nil), expected...), nil
		}
		if numFeature <= 0 {
			return nil, corrupt("feature count unknown")
		}
		names := make([]string, numFeature)
		for i := range names {
			names[i] = "f" + strconv.Itoa(i)
		}
		return names, nil
	}

	names := make([]string, len(declared))
	for i, n := range declared {
		names[i] = n.String()
	}
	if len(expected) == 0 {
		return names, nil
	}
	if len(names) != len(expected) {
		return nil, corrupt(fmt.Sprintf("model has %d features, want %d", len(names), len(expected)))
	}
	for i := range names {
		if names[i] != expected[i] {
			return nil, corrupt(fmt.Sprintf("feature %d is %q, want %q", i, names[i], expected[i]))
		}
	}
	return names, nil
}

// parseBaseScore accepts "5E-1" as well as the bracketed "[5E-1]" newer
// releases write.
func parseBaseScore(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(s, "[]"))
	if s == "" {
		return 0.5, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, corrupt(fmt.Sprintf("base_score %q", s))
	}
	if v <= 0 || v >= 1 {
		return 0, corrupt(fmt.Sprintf("base_score %v outside (0,1)", v))
	}
	return v, nil
}

func parseTree(tj gjson.Result, numFeatures int) (tree, error) {
	left := tj.Get("left_children").Array()
	right := tj.Get("right_children").Array()
	splits := tj.Get("split_indices").Array()
	conds := tj.Get("split_conditions").Array()
	defaults := tj.Get("default_left").Array()
	covers := tj.Get("sum_hessian").Array()

	n := len(left)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	for name, arr := range map[string][]gjson.Result{
		"right_children": right, "split_indices": splits, "split_conditions": conds,
		"default_left": defaults, "sum_hessian": covers,
	} {
		if len(arr) != n {
			return tree{}, fmt.Errorf("%s has %d entries, want %d", name, len(arr), n)
		}
	}

	nodes := make([]node, n)
	for i := 0; i < n; i++ {
		nd := node{
			left:        int(left[i].Int()),
			right:       int(right[i].Int()),
			feature:     int(splits[i].Int()),
			condition:   conds[i].Float(),
			split:       float32(conds[i].Float()),
			defaultLeft: defaults[i].Bool(),
			cover:       covers[i].Float(),
		}
		if nd.isLeaf() {
			nodes[i] = nd
			continue
		}
		// children always come after their parent, which also rules out cycles
		if nd.left <= i || nd.left >= n || nd.right <= i || nd.right >= n {
			return tree{}, fmt.Errorf("node %d has invalid children %d/%d", i, nd.left, nd.right)
		}
		if nd.feature < 0 || nd.feature >= numFeatures {
			return tree{}, fmt.Errorf("node %d splits on unknown feature %d", i, nd.feature)
		}
		nodes[i] = nd
	}
	return tree{nodes: nodes}, nil
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}

// FeatureNames returns the column order of the model
func (e *Ensemble) FeatureNames() []string {
	return append([]string(nil), e.features...)
}

// NumTrees is the number of boosted trees
func (e *Ensemble) NumTrees() int {
	return len(e.trees)
}

// Threshold is the decision threshold used by PredictClass
func (e *Ensemble) Threshold() float64 {
	return e.threshold
}

// BaseMargin is the log-odds every prediction starts from
func (e *Ensemble) BaseMargin() float64 {
	return e.baseMargin
}

func (e *Ensemble) vector(record credit.FeatureRecord) ([]float64, error) {
	if len(e.features) != credit.NumFeatures {
		return nil, fmt.Errorf("model expects %d features, record has %d", len(e.features), credit.NumFeatures)
	}
	x := record.Vector()
	for i, v := range x {
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %s is not finite", e.features[i])
		}
	}
	return x, nil
}

// Margin returns the raw log-odds for a feature vector
func (e *Ensemble) Margin(x []float64) float64 {
	m := e.baseMargin
	for i := range e.trees {
		m += e.trees[i].predict(x)
	}
	return m
}

// PredictClass applies the decision threshold
func (e *Ensemble) PredictClass(probability float64) credit.RiskClass {
	if probability > e.threshold {
		return credit.HighRisk
	}
	return credit.LowRisk
}

// Score returns the probability of default and the predicted class
func (e *Ensemble) Score(record credit.FeatureRecord) (credit.ScoringResult, error) {
	x, err := e.vector(record)
	if err != nil {
		return credit.ScoringResult{}, errors.Computation("scoring", err)
	}
	p := sigmoid(e.Margin(x))
	return credit.ScoringResult{Probability: p, PredictedClass: e.PredictClass(p)}, nil
}
