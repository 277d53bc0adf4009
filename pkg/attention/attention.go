package attention

import (
	"errors"
	"math"
	"sort"
)

// Mechanism selects which weighting function Combine applies.
type Mechanism string

const (
	MechanismFlash      Mechanism = "flash"
	MechanismMultiHead  Mechanism = "multi_head"
	MechanismLinear     Mechanism = "linear"
	MechanismHyperbolic Mechanism = "hyperbolic"
	MechanismMoE        Mechanism = "moe"
	MechanismGraphRoPE  Mechanism = "graph_rope"
)

// ErrNoOutputs is returned by Combine when given an empty slice.
var ErrNoOutputs = errors.New("attention: no agent outputs given")

// AgentOutput is one agent's contribution to a round of attention
// combination.
type AgentOutput struct {
	AgentID    string
	Content    any
	Embedding  []float64
	Confidence float64
}

// Result is the combined output of one Combine call. Weights sums to 1 and
// is keyed by AgentID; ParticipatingAgents is always a subset of the input
// agent ids; PrimaryContributor's weight equals the maximum weight in
// Weights.
type Result struct {
	ConsensusOutput     any
	Weights             map[string]float64
	ParticipatingAgents []string
	PrimaryContributor  string
}

// Combine applies mechanism to outputs and returns the combined result.
func Combine(mechanism Mechanism, outputs []AgentOutput) (Result, error) {
	if len(outputs) == 0 {
		return Result{}, ErrNoOutputs
	}

	raw := rawScores(mechanism, outputs)
	weights, participating := normalize(outputs, raw)

	primary := participating[0]
	best := weights[primary]
	for _, id := range participating {
		if weights[id] > best {
			primary, best = id, weights[id]
		}
	}

	var consensus any
	for _, o := range outputs {
		if o.AgentID == primary {
			consensus = o.Content
			break
		}
	}

	return Result{
		ConsensusOutput:     consensus,
		Weights:             weights,
		ParticipatingAgents: participating,
		PrimaryContributor:  primary,
	}, nil
}

// rawScores computes an unnormalized non-negative score per output,
// indexed the same way as outputs, per the selected mechanism.
func rawScores(mechanism Mechanism, outputs []AgentOutput) []float64 {
	switch mechanism {
	case MechanismFlash:
		return softmaxScores(outputs)
	case MechanismMultiHead:
		return multiHeadScores(outputs)
	case MechanismHyperbolic:
		return hyperbolicScores(outputs)
	case MechanismMoE:
		return moeScores(outputs)
	case MechanismGraphRoPE:
		return graphRopeScores(outputs)
	default: // linear
		return linearScores(outputs)
	}
}

func confidenceOf(o AgentOutput) float64 {
	if o.Confidence <= 0 {
		return 0.5
	}
	return o.Confidence
}

// linearScores weights outputs directly by confidence, uniform when absent.
func linearScores(outputs []AgentOutput) []float64 {
	scores := make([]float64, len(outputs))
	for i, o := range outputs {
		scores[i] = confidenceOf(o)
	}
	return scores
}

// softmaxScores exponentiates confidence, sharpening the distribution
// toward the most confident output (flash attention's selling point is
// speed, not shape, so the shape is a plain softmax).
func softmaxScores(outputs []AgentOutput) []float64 {
	scores := make([]float64, len(outputs))
	for i, o := range outputs {
		scores[i] = math.Exp(confidenceOf(o))
	}
	return scores
}

// multiHeadScores averages two independent views of each output:
// confidence, and embedding magnitude (or 1 when no embedding is given).
func multiHeadScores(outputs []AgentOutput) []float64 {
	scores := make([]float64, len(outputs))
	for i, o := range outputs {
		head1 := confidenceOf(o)
		head2 := embeddingMagnitude(o.Embedding)
		scores[i] = (head1 + head2) / 2
	}
	return scores
}

func embeddingMagnitude(v []float64) float64 {
	if len(v) == 0 {
		return 1
	}
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// hyperbolicScores maps confidence through tanh, compressing outliers
// toward the [0,1) boundary instead of scaling linearly.
func hyperbolicScores(outputs []AgentOutput) []float64 {
	scores := make([]float64, len(outputs))
	for i, o := range outputs {
		scores[i] = math.Tanh(confidenceOf(o))
	}
	return scores
}

// moeScores routes all weight to the top-2 (or top-1 when only one output
// exists) most confident outputs, zeroing the rest, mirroring a
// mixture-of-experts hard gate.
func moeScores(outputs []AgentOutput) []float64 {
	k := 2
	if len(outputs) < k {
		k = len(outputs)
	}
	type idxConf struct {
		idx  int
		conf float64
	}
	ranked := make([]idxConf, len(outputs))
	for i, o := range outputs {
		ranked[i] = idxConf{i, confidenceOf(o)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].conf > ranked[j].conf })

	scores := make([]float64, len(outputs))
	for i := 0; i < k; i++ {
		scores[ranked[i].idx] = ranked[i].conf
	}
	return scores
}

// graphRopeScores applies a rotary-style positional decay over input order,
// combined with confidence: later inputs decay toward zero influence unless
// their confidence compensates.
func graphRopeScores(outputs []AgentOutput) []float64 {
	scores := make([]float64, len(outputs))
	for i, o := range outputs {
		decay := math.Cos(float64(i) * math.Pi / float64(2*len(outputs)))
		scores[i] = confidenceOf(o) * decay
	}
	return scores
}

// normalize turns raw non-negative scores into weights summing to 1, keyed
// by agent id, and reports which agents received nonzero weight.
func normalize(outputs []AgentOutput, raw []float64) (map[string]float64, []string) {
	total := 0.0
	for _, s := range raw {
		total += s
	}

	weights := make(map[string]float64, len(outputs))
	var participating []string
	if total <= 0 {
		// Degenerate case: every score collapsed to zero. Fall back to a
		// uniform split so Weights still sums to 1.
		uniform := 1.0 / float64(len(outputs))
		for _, o := range outputs {
			weights[o.AgentID] = uniform
			participating = append(participating, o.AgentID)
		}
		return weights, participating
	}

	for i, o := range outputs {
		w := raw[i] / total
		weights[o.AgentID] = w
		if w > 0 {
			participating = append(participating, o.AgentID)
		}
	}
	return weights, participating
}
