package service

import "strings"

// DefaultMaxChunkSize bounds chunk length in characters.
const DefaultMaxChunkSize = 1000

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ChunkText splits text into sentence-respecting chunks of at most
// maxChunkSize characters. Sentences are split on '.', '!' and '?' and
// greedily packed, joined with ". "; when the next sentence would push the
// buffer past maxChunkSize the buffer is closed and the sentence starts a
// new one. Non-empty input never yields an empty result: when nothing
// survives splitting, the original text comes back as a single chunk.
// Fully deterministic; no I/O.
func ChunkText(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var sentences []string
	for _, fragment := range strings.FieldsFunc(text, isSentenceEnd) {
		if s := strings.TrimSpace(fragment); s != "" {
			sentences = append(sentences, s)
		}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(". ")+len(sentence) > maxChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(". ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
