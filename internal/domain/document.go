package domain

// Document is a source text handed to the ingest pipeline. SourceID
// identifies it across re-ingests so unchanged documents can be skipped.
type Document struct {
	SourceID   string
	Collection string
	Title      string
	Text       string
	Metadata   map[string]any
}

// ChunkRecord is a persistable chunk together with its embedding.
type ChunkRecord struct {
	ID         string
	Collection string
	Ordinal    int
	Content    string
	Embedding  []float32
	Metadata   map[string]any
}
