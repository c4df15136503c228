package retrieval

import "strings"

const (
	// DefaultChunkSize is the target chunk size in runes
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the rune overlap between adjacent chunks
	DefaultChunkOverlap = 50
)

// ChunkText splits document text into overlapping chunks of roughly
// chunkSize runes, preferring paragraph boundaries. Blank-only input yields
// no chunks.
func ChunkText(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}

	var chunks []string
	var current []rune
	fresh := false // current holds content beyond the carried overlap

	flush := func() {
		trimmed := strings.TrimSpace(string(current))
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		// Keep the tail as overlap for the next chunk
		if chunkOverlap > 0 && len(current) > chunkOverlap {
			current = append([]rune(nil), current[len(current)-chunkOverlap:]...)
		} else {
			current = nil
		}
		fresh = false
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		runes := []rune(paragraph)

		// Oversized paragraphs get hard-split
		for len(runes) > chunkSize {
			if fresh {
				flush()
			}
			current = append(current, runes[:chunkSize]...)
			fresh = true
			flush()
			runes = runes[chunkSize-chunkOverlap:]
		}

		if fresh && len(current)+len(runes)+1 > chunkSize {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, runes...)
		fresh = true
	}

	if fresh {
		trimmed := strings.TrimSpace(string(current))
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	return chunks
}
