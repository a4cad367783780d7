package ingestion

import "strings"

// ═══════════════════════════════════════════════════════════════════════════════
// CHUNKER
// ═══════════════════════════════════════════════════════════════════════════════

// ChunkWords splits text on whitespace into consecutive windows of size
// words joined by single spaces. The last window may be shorter. Text with
// no words yields nil.
func ChunkWords(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSizeWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
