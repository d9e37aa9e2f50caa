package kgraph

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/math/vector"
)

const (
	// SameEntityStep is the weight contributed by each shared entity.
	SameEntityStep = 0.3
	// TopicThreshold is the keyword Jaccard similarity a same_topic relation must exceed.
	TopicThreshold = 0.2
	// DefaultAllPairsLimit is the node count above which relation building
	// switches from the all-pairs scan to index-driven candidate generation.
	DefaultAllPairsLimit = 2000
)

// ErrDuplicateNode is returned when two records produce the same node id.
var ErrDuplicateNode = errors.New("duplicate node id")

// Builder turns records into a Graph.
type Builder struct {
	extractor     *entity.Extractor
	allPairsLimit int
	now           func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExtractor overrides the entity extractor.
func WithExtractor(x *entity.Extractor) BuilderOption {
	return func(b *Builder) { b.extractor = x }
}

// WithAllPairsLimit sets the node count up to which every node pair is
// compared. Above it only pairs sharing an entity key or keyword are.
// A negative limit always uses candidate generation.
func WithAllPairsLimit(n int) BuilderOption {
	return func(b *Builder) { b.allPairsLimit = n }
}

// WithClock overrides the build timestamp source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder with default settings.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		extractor:     entity.NewExtractor(),
		allPairsLimit: DefaultAllPairsLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds a graph with a default Builder.
func Build(records []Record) (*Graph, error) {
	return NewBuilder().Build(records)
}

// Build creates one node per chunk (or per record when it has no chunks),
// extracts entities and keywords for each, and links them.
//
// Relation construction compares node pairs; the all-pairs scan is
// O(n²) and fine up to low thousands of nodes. Larger graphs only compare
// nodes that co-occur in an entity or keyword bucket, which yields the same
// relations because both relation kinds require a shared key.
func (b *Builder) Build(records []Record) (*Graph, error) {
	g := &Graph{
		Nodes:        make(map[string]*Node),
		EntityIndex:  make(map[string]map[string]struct{}),
		KeywordIndex: make(map[string]map[string]struct{}),
	}

	for _, rec := range records {
		for _, n := range b.nodesFor(rec) {
			if _, exists := g.Nodes[n.ID]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
			}
			g.Nodes[n.ID] = n
			g.order = append(g.order, n.ID)
			for _, e := range n.Entities {
				addToIndex(g.EntityIndex, e.Key(), n.ID)
			}
			for _, kw := range n.Keywords {
				addToIndex(g.KeywordIndex, kw, n.ID)
			}
		}
	}

	g.Relations = b.relate(g)
	for _, r := range g.Relations {
		src, dst := g.Nodes[r.SourceID], g.Nodes[r.TargetID]
		src.Relations = append(src.Relations, r)
		dst.Relations = append(dst.Relations, r)
	}

	g.Fingerprint = Fingerprint(g.Ordered())
	g.BuiltAt = b.now()
	return g, nil
}

func (b *Builder) nodesFor(rec Record) []*Node {
	parent := strconv.Itoa(rec.ID)
	meta := Metadata{Source: rec.Source}
	if rec.CreatedAt > 0 {
		meta.CreatedAt = time.UnixMilli(rec.CreatedAt).UTC()
	}

	if len(rec.Chunks) == 0 {
		if strings.TrimSpace(rec.Content) == "" {
			return nil
		}
		return []*Node{b.newNode("doc-"+parent, parent, nil, rec.Title, rec.Content, meta)}
	}

	nodes := make([]*Node, 0, len(rec.Chunks))
	for _, c := range rec.Chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("doc-%s-chunk-%d", parent, c.Index)
		}
		idx := c.Index
		nodes = append(nodes, b.newNode(id, parent, &idx, rec.Title, c.Content, meta))
	}
	return nodes
}

func (b *Builder) newNode(id, parent string, chunkIndex *int, title, content string, meta Metadata) *Node {
	res := b.extractor.Extract(content)
	meta.CharCount = len([]rune(content))
	meta.EntityCount = len(res.Entities)

	kwSet := make(map[string]struct{}, len(res.Keywords))
	for _, kw := range res.Keywords {
		kwSet[kw] = struct{}{}
	}
	return &Node{
		ID:          id,
		ParentDocID: parent,
		ChunkIndex:  chunkIndex,
		Title:       title,
		Content:     content,
		ContentHash: ContentHash(content),
		Entities:    res.Entities,
		Keywords:    res.Keywords,
		Metadata:    meta,
		keywordSet:  kwSet,
	}
}

func addToIndex(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

type pair struct{ i, j int }

func (b *Builder) relate(g *Graph) []Relation {
	nodes := g.Ordered()
	keys := make([]map[string]struct{}, len(nodes))
	for i, n := range nodes {
		keys[i] = entityKeys(n)
	}

	var pairs []pair
	if b.allPairsLimit >= 0 && len(nodes) <= b.allPairsLimit {
		for i := range nodes {
			for j := i + 1; j < len(nodes); j++ {
				pairs = append(pairs, pair{i, j})
			}
		}
	} else {
		pairs = candidatePairs(g, nodes)
	}

	var rels []Relation
	for _, p := range pairs {
		rels = append(rels, relatePair(nodes[p.i], nodes[p.j], keys[p.i], keys[p.j])...)
	}
	return rels
}

// candidatePairs lists, in all-pairs order, the node pairs that share an
// entity key, a keyword or a parent document.
func candidatePairs(g *Graph, nodes []*Node) []pair {
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}

	seen := make(map[pair]struct{})
	addBucket := func(ids map[string]struct{}) {
		members := make([]int, 0, len(ids))
		for id := range ids {
			members = append(members, pos[id])
		}
		sort.Ints(members)
		for a := 0; a < len(members); a++ {
			for c := a + 1; c < len(members); c++ {
				seen[pair{members[a], members[c]}] = struct{}{}
			}
		}
	}
	for _, ids := range g.EntityIndex {
		addBucket(ids)
	}
	for _, ids := range g.KeywordIndex {
		addBucket(ids)
	}

	byParent := make(map[string]map[string]struct{})
	for _, n := range nodes {
		addToIndex(byParent, n.ParentDocID, n.ID)
	}
	for _, ids := range byParent {
		addBucket(ids)
	}

	pairs := make([]pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, c int) bool {
		if pairs[a].i != pairs[c].i {
			return pairs[a].i < pairs[c].i
		}
		return pairs[a].j < pairs[c].j
	})
	return pairs
}

func entityKeys(n *Node) map[string]struct{} {
	set := make(map[string]struct{}, len(n.Entities))
	for _, e := range n.Entities {
		set[e.Key()] = struct{}{}
	}
	return set
}

// relatePair derives the relations between two nodes. Chunks of the same
// document are only linked when adjacent.
func relatePair(a, b *Node, aKeys, bKeys map[string]struct{}) []Relation {
	if a.ParentDocID == b.ParentDocID {
		if a.ChunkIndex != nil && b.ChunkIndex != nil {
			if d := *a.ChunkIndex - *b.ChunkIndex; d == 1 || d == -1 {
				return []Relation{{
					SourceID: a.ID,
					TargetID: b.ID,
					Kind:     RelationFollows,
					Weight:   1.0,
				}}
			}
		}
		return nil
	}

	var rels []Relation
	var shared []string
	for k := range aKeys {
		if _, ok := bKeys[k]; ok {
			shared = append(shared, k)
		}
	}
	if len(shared) > 0 {
		sort.Strings(shared)
		rels = append(rels, Relation{
			SourceID: a.ID,
			TargetID: b.ID,
			Kind:     RelationSameEntity,
			Weight:   min(1.0, float64(len(shared))*SameEntityStep),
			Metadata: map[string]any{"sharedEntities": shared},
		})
	}

	if sim := vector.Jaccard(a.keywordSet, b.keywordSet); sim > TopicThreshold {
		rels = append(rels, Relation{
			SourceID: a.ID,
			TargetID: b.ID,
			Kind:     RelationSameTopic,
			Weight:   sim,
			Metadata: map[string]any{"jaccard": sim},
		})
	}
	return rels
}
