package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"toolsmith/internal/model"
)

const (
	DefaultWindowRadius = 2
	SingleWindowRadius  = 10
)

// SectionRangeLister fetches a document's sections within an inclusive
// position range, ordered ascending.
type SectionRangeLister interface {
	ListRange(ctx context.Context, documentID uint, startPosition, endPosition int) ([]model.DocumentSection, error)
}

// ExpandMatches widens each match to its surrounding sections and stitches the
// blocks into one context string. Matches are walked in position order and a
// running high-water mark suppresses overlap, so adjacent hits never repeat a
// section. Each block carries a retrieval-index marker; blocks are separated
// by blank lines.
func ExpandMatches(ctx context.Context, store SectionRangeLister, matches []Match, windowRadius int) (string, error) {
	if len(matches) == 0 {
		return "", nil
	}
	if windowRadius < 0 {
		windowRadius = DefaultWindowRadius
	}

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	var out strings.Builder
	lastFetchedPosition := -1
	for i, match := range sorted {
		start := match.Position - windowRadius
		if start < 0 {
			start = 0
		}
		if start <= lastFetchedPosition {
			start = lastFetchedPosition + 1
		}
		end := match.Position + windowRadius
		if start > end {
			// Fully covered by the previous window.
			continue
		}

		sections, err := store.ListRange(ctx, match.DocumentID, start, end)
		if err != nil {
			return "", fmt.Errorf("fetch context sections failed: %w", err)
		}
		lastFetchedPosition = end

		contents := make([]string, 0, len(sections))
		for _, sec := range sections {
			contents = append(contents, sec.Content)
		}
		out.WriteString(fmt.Sprintf("// Retrieved Section #%d\n", i+1))
		out.WriteString(strings.Join(contents, "\n"))
		out.WriteString("\n\n")
	}
	return strings.TrimSpace(out.String()), nil
}

// ExpandSingle returns one large excerpt around the single best match,
// expanded symmetrically with no overlap logic. Used by callers that want one
// big block rather than several small ones.
func ExpandSingle(ctx context.Context, store SectionRangeLister, match Match, windowRadius int) (string, error) {
	if windowRadius <= 0 {
		windowRadius = SingleWindowRadius
	}
	start := match.Position - windowRadius
	if start < 0 {
		start = 0
	}
	sections, err := store.ListRange(ctx, match.DocumentID, start, match.Position+windowRadius)
	if err != nil {
		return "", fmt.Errorf("fetch context sections failed: %w", err)
	}
	contents := make([]string, 0, len(sections))
	for _, sec := range sections {
		contents = append(contents, sec.Content)
	}
	return strings.Join(contents, "\n"), nil
}
