// Package ingest prepares source documents for indexing: it splits text
// into embedding-sized chunks and computes the content hashes used to skip
// unchanged documents on re-ingest.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinChunkLen is the merge threshold in runes. Pieces shorter
	// than this are folded into a neighbour.
	DefaultMinChunkLen = 80
	// DefaultMaxChunkLen is the split threshold in runes. Pieces longer
	// than this are split at sentence boundaries.
	DefaultMaxChunkLen = 1000
)

// Version identifies the chunking algorithm. It is recorded in chunk
// metadata so stored chunks reveal which algorithm produced them.
const Version = "paragraph/v6"

// Chunk is one piece of a document, ready for embedding.
type Chunk struct {
	Ordinal int
	Content string
	Hash    string
}

// Chunker splits document text into chunks. Paragraphs (blank-line
// separated) are the primary unit; pieces shorter than MinLen merge with
// neighbours and pieces longer than MaxLen split at sentence boundaries.
type Chunker struct {
	MinLen int
	MaxLen int
}

// NewChunker returns a Chunker with the default length limits.
func NewChunker() *Chunker {
	return &Chunker{MinLen: DefaultMinChunkLen, MaxLen: DefaultMaxChunkLen}
}

// Chunk splits text into hashed chunks with sequential ordinals.
// Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	pieces := c.mergeShort(splitParagraphs(text))
	pieces = c.mergeRuns(pieces)
	pieces = c.splitLong(pieces)

	var chunks []Chunk
	for i, content := range pieces {
		sum := sha256.Sum256([]byte(content))
		chunks = append(chunks, Chunk{
			Ordinal: i,
			Content: content,
			Hash:    hex.EncodeToString(sum[:]),
		})
	}
	return chunks
}

// splitParagraphs normalizes line endings and splits on blank lines,
// dropping empty paragraphs.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
