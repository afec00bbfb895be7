package rag

import (
	"context"
	"math"
	"sort"

	"toolsmith/internal/model"
)

const (
	DefaultSimilarityThreshold = 0.7
	DefaultTopK                = 3
)

// Match is one vector-search hit, identified by document and section position.
type Match struct {
	DocumentID uint
	Position   int
	Similarity float32
}

// EmbeddedSectionLister supplies the searchable sections for a document set.
// Sections still pending embedding must not be returned.
type EmbeddedSectionLister interface {
	ListEmbeddedByDocumentIDs(ctx context.Context, documentIDs []uint) ([]model.DocumentSection, error)
}

// SectionSearcher performs threshold-filtered nearest-neighbor search over a
// set of documents' embedded sections.
type SectionSearcher struct {
	sections EmbeddedSectionLister
}

func NewSectionSearcher(sections EmbeddedSectionLister) *SectionSearcher {
	return &SectionSearcher{sections: sections}
}

// Search returns matches with similarity >= threshold, ranked descending,
// capped at limit. An empty result is not an error.
func (s *SectionSearcher) Search(
	ctx context.Context,
	documentIDs []uint,
	queryVector []float32,
	threshold float32,
	limit int,
) ([]Match, error) {
	if len(documentIDs) == 0 || len(queryVector) == 0 {
		return nil, nil
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if limit <= 0 {
		limit = DefaultTopK
	}

	sections, err := s.sections.ListEmbeddedByDocumentIDs(ctx, documentIDs)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for i := range sections {
		similarity := cosineSimilarity(queryVector, sections[i].EmbeddingVector())
		if similarity >= threshold {
			matches = append(matches, Match{
				DocumentID: sections[i].DocumentID,
				Position:   sections[i].Position,
				Similarity: similarity,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}
