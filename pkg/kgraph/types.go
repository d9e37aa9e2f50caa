// Package kgraph builds the knowledge graph that backs symbolic retrieval.
//
// A graph is built once from the knowledge-base records and never mutated
// afterwards: every knowledge-base change produces a brand-new Graph. Each
// node is a whole document or one chunk of it; relations link chunks that
// are adjacent in the same document, or that come from different documents
// and share entities or keywords.
package kgraph

import (
	"sort"
	"time"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
)

// RelationKind classifies a relation between two nodes.
type RelationKind string

const (
	RelationFollows    RelationKind = "follows"
	RelationSameEntity RelationKind = "same_entity"
	RelationSameTopic  RelationKind = "same_topic"
	RelationReferences RelationKind = "references"
	RelationPartOf     RelationKind = "part_of"
)

// Chunk is a pre-split piece of a record.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// Record is one knowledge-base document as handed over by the ingestion
// pipeline. The builder never modifies records.
type Record struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Chunks    []Chunk `json:"chunks,omitempty"`
	Source    string  `json:"source,omitempty"`
	CreatedAt int64   `json:"createdAt,omitempty"` // epoch millis
}

// Metadata describes where a node came from.
type Metadata struct {
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CharCount   int       `json:"charCount"`
	EntityCount int       `json:"entityCount"`
}

// Relation is an undirected link between two nodes. It is stored once and
// read in both directions.
type Relation struct {
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	Kind     RelationKind   `json:"type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Other returns the endpoint opposite to id.
func (r Relation) Other(id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// Node is one indexable unit of text.
type Node struct {
	ID          string          `json:"id"`
	ParentDocID string          `json:"parentDocId"`
	ChunkIndex  *int            `json:"chunkIndex,omitempty"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	ContentHash string          `json:"contentHash"`
	Entities    []entity.Entity `json:"entities"`
	Keywords    []string        `json:"keywords"`
	Relations   []Relation      `json:"relations"`
	Metadata    Metadata        `json:"metadata"`

	keywordSet map[string]struct{}
}

// HasKeyword reports whether kw is one of the node's keywords.
func (n *Node) HasKeyword(kw string) bool {
	_, ok := n.keywordSet[kw]
	return ok
}

// KeywordSet exposes the node's keywords as a set. Callers must not modify it.
func (n *Node) KeywordSet() map[string]struct{} {
	return n.keywordSet
}

// Graph is an immutable snapshot of the knowledge base.
type Graph struct {
	Nodes        map[string]*Node
	Relations    []Relation
	EntityIndex  map[string]map[string]struct{}
	KeywordIndex map[string]map[string]struct{}
	Fingerprint  string
	BuiltAt      time.Time

	order []string
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeIDs returns node ids in build order. The slice must not be modified.
func (g *Graph) NodeIDs() []string {
	return g.order
}

// Ordered returns nodes in build order.
func (g *Graph) Ordered() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.Nodes[id]
	}
	return out
}

// NodesWithEntity returns the ids indexed under an entity key, sorted.
func (g *Graph) NodesWithEntity(key string) []string {
	return sortedKeys(g.EntityIndex[key])
}

// NodesWithKeyword returns the ids indexed under a keyword, sorted.
func (g *Graph) NodesWithKeyword(kw string) []string {
	return sortedKeys(g.KeywordIndex[kw])
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
