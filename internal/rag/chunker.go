package rag

import "strings"

const (
	DefaultMinChunkWords = 40
	DefaultMaxChunkWords = 200
)

// Section is one position-ordered chunk of document text ready for
// persistence and embedding.
type Section struct {
	Content  string
	Position int
}

// Chunk splits raw document text into position-ordered sections of bounded
// size. Paragraphs (runs of newlines) are the base unit; over-long paragraphs
// are recursively bisected at the word midpoint, and short fragments are
// merged forward into their right neighbor while the combined fragment stays
// within maxWords. Every emitted section has at most maxWords words, and all
// but possibly the last have at least minWords words unless capping stopped a
// merge. Positions are a dense 0-based sequence.
//
// minWords > maxWords is clamped to minWords = maxWords.
func Chunk(text string, minWords, maxWords int) []Section {
	if maxWords <= 0 {
		maxWords = DefaultMaxChunkWords
	}
	if minWords <= 0 {
		minWords = DefaultMinChunkWords
	}
	if minWords > maxWords {
		minWords = maxWords
	}

	var fragments []string
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		fragments = append(fragments, bisectLongParagraph(paragraph, maxWords)...)
	}

	fragments = mergeShortFragments(fragments, minWords, maxWords)

	sections := make([]Section, 0, len(fragments))
	for _, content := range fragments {
		if content == "" {
			continue
		}
		sections = append(sections, Section{Content: content, Position: len(sections)})
	}
	return sections
}

// bisectLongParagraph recursively splits a paragraph at its word-count
// midpoint until every fragment is within maxWords.
func bisectLongParagraph(paragraph string, maxWords int) []string {
	words := strings.Fields(paragraph)
	if len(words) <= maxWords {
		return []string{paragraph}
	}

	mid := len(words) / 2
	firstHalf := strings.Join(words[:mid], " ")
	secondHalf := strings.Join(words[mid:], " ")

	out := bisectLongParagraph(firstHalf, maxWords)
	return append(out, bisectLongParagraph(secondHalf, maxWords)...)
}

// mergeShortFragments walks left to right merging any fragment below minWords
// with its right neighbor, as long as the merge does not push the fragment
// past maxWords. The final fragment is allowed to stay short.
func mergeShortFragments(fragments []string, minWords, maxWords int) []string {
	i := 0
	for i < len(fragments) {
		wordCount := len(strings.Fields(fragments[i]))
		for wordCount < minWords && i < len(fragments)-1 {
			nextCount := len(strings.Fields(fragments[i+1]))
			if wordCount+nextCount > maxWords {
				break
			}
			fragments[i] += " " + fragments[i+1]
			fragments = append(fragments[:i+1], fragments[i+2:]...)
			wordCount = len(strings.Fields(fragments[i]))
		}
		i++
	}
	return fragments
}
