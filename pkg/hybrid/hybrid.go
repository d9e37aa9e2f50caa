// Package hybrid scores knowledge-graph nodes against a query by combining
// neural and symbolic signals.
//
// Four signals are computed per node:
//   - Semantic: cosine similarity of query and node embeddings
//   - Entity: typed entity matches, boosted per entity kind
//   - Keyword: fraction of query keywords found on the node
//   - Graph: relations to neighbors that themselves match the query
//
// In basic mode the signals are combined by a weighted sum. In enhanced
// mode every query variant yields one ranked list per signal (plus BM25),
// the lists are fused with RRF, and the variants are combined linearly by
// variant weight.
package hybrid

import (
	"time"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/decay"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

// Mode selects how signals are combined.
type Mode string

const (
	// ModeSemantic ranks by embedding similarity alone.
	ModeSemantic Mode = "semantic"
	// ModeBasic combines the four signals of the original query by weight.
	ModeBasic Mode = "basic"
	// ModeEnhanced fuses per-signal rankings of every query variant.
	ModeEnhanced Mode = "enhanced"
)

// Weights of the basic-mode weighted sum.
type Weights struct {
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Entity   float64 `yaml:"entity" json:"entity"`
	Keyword  float64 `yaml:"keyword" json:"keyword"`
	Graph    float64 `yaml:"graph" json:"graph"`
}

// DefaultWeights returns semantic 0.45, entity 0.30, keyword 0.15, graph 0.10.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.45, Entity: 0.30, Keyword: 0.15, Graph: 0.10}
}

// BalancedWeights returns semantic 0.5, entity 0.25, keyword 0.15, graph 0.10.
func BalancedWeights() Weights {
	return Weights{Semantic: 0.5, Entity: 0.25, Keyword: 0.15, Graph: 0.10}
}

// DefaultKindBoosts weights entity matches by kind. Money, contact and
// identifier kinds count the most.
var DefaultKindBoosts = map[entity.Kind]float64{
	entity.KindMoney:        2.0,
	entity.KindEmail:        2.0,
	entity.KindPhone:        2.0,
	entity.KindCard:         2.0,
	entity.KindAccount:      2.0,
	entity.KindURL:          1.8,
	entity.KindDate:         1.5,
	entity.KindDateTime:     1.5,
	entity.KindPercentage:   1.5,
	entity.KindPerson:       1.5,
	entity.KindOrganization: 1.5,
	entity.KindLocation:     1.3,
	entity.KindTime:         1.2,
	entity.KindDuration:     1.2,
	entity.KindNumber:       1.2,
	entity.KindOrdinal:      1.0,
	entity.KindKeyword:      1.0,
}

// Scoring constants.
const (
	DefaultMinScore = 0.3
	// EnhancedThresholdFactor lowers MinScore in enhanced mode, where RRF
	// rescales scores into [0.2, 1].
	EnhancedThresholdFactor = 0.7
	// ComparisonBoostFactor multiplies the money boost when a query
	// comparison ("over $400") is satisfied.
	ComparisonBoostFactor = 2.5
	// DensityBonusScale and densityEntityTarget shape the bonus granted to
	// entity-rich nodes for data-listing queries.
	DensityBonusScale   = 1.5
	densityEntityTarget = 10.0
	// NeighborFactor scales relation weights in the graph signal.
	NeighborFactor = 0.5
)

// Options configures scoring.
type Options struct {
	Mode       Mode
	Weights    Weights
	MinScore   float64
	KindBoosts map[entity.Kind]float64
	// RRFK is the reciprocal rank fusion constant.
	RRFK float64
	// Decay, when set, multiplies scores by temporal relevance.
	Decay *decay.Decay
	// Now is the reference time for decay.
	Now func() time.Time
}

// DefaultOptions returns basic mode with default weights and thresholds.
func DefaultOptions() Options {
	return Options{
		Mode:       ModeBasic,
		Weights:    DefaultWeights(),
		MinScore:   DefaultMinScore,
		KindBoosts: DefaultKindBoosts,
		RRFK:       search.DefaultRRFK,
		Now:        time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Mode == "" {
		o.Mode = def.Mode
	}
	if o.Weights == (Weights{}) {
		o.Weights = def.Weights
	}
	if o.KindBoosts == nil {
		o.KindBoosts = def.KindBoosts
	}
	if o.RRFK <= 0 {
		o.RRFK = def.RRFK
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}

// threshold is the minimum score a result needs in the configured mode.
func (o Options) threshold() float64 {
	if o.Mode == ModeEnhanced {
		return o.MinScore * EnhancedThresholdFactor
	}
	return o.MinScore
}

func (o Options) boost(k entity.Kind) float64 {
	if b, ok := o.KindBoosts[k]; ok {
		return b
	}
	return 1.0
}

// EntityMatch is one query entity found on a node.
type EntityMatch struct {
	Kind  entity.Kind `json:"type"`
	Value string      `json:"value"`
	Boost float64     `json:"boost"`
}

// GraphConnection is a relation that contributed to the graph signal.
type GraphConnection struct {
	NodeID string              `json:"nodeId"`
	Kind   kgraph.RelationKind `json:"type"`
	Weight float64             `json:"weight"`
}

// Explanation breaks a result's score down by signal. It is diagnostic
// only and always reflects the original query.
type Explanation struct {
	SemanticScore     float64           `json:"semanticScore"`
	EntityScore       float64           `json:"entityScore"`
	KeywordScore      float64           `json:"keywordScore"`
	GraphScore        float64           `json:"graphScore"`
	BM25Score         float64           `json:"bm25Score,omitempty"`
	DensityBonus      float64           `json:"densityBonus,omitempty"`
	EntityMatches     []EntityMatch     `json:"entityMatches,omitempty"`
	KeywordMatches    []string          `json:"keywordMatches,omitempty"`
	GraphConnections  []GraphConnection `json:"graphConnections,omitempty"`
	TemporalRelevance *float64          `json:"temporalRelevance,omitempty"`
	MatchedVariants   []string          `json:"matchedVariants,omitempty"`
}

// Result is one ranked node.
type Result struct {
	NodeID      string      `json:"nodeId"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Score       float64     `json:"score"`
	Explanation Explanation `json:"explanation"`
}
