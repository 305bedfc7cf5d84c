package domain

import "context"

// ChunkStore defines the write side of a chunk backend. The read side
// (search and catalog listing) is consumed through the agent package
// interfaces, which the same backends implement.
type ChunkStore interface {
	// UpsertCollection creates the collection if missing and refreshes its
	// description otherwise. An empty description never overwrites an
	// existing one.
	UpsertCollection(ctx context.Context, name, description string) error

	// SourceHash returns the stored content hash for a source document.
	// Returns "" with a nil error when the source has never been ingested.
	SourceHash(ctx context.Context, sourceID string) (string, error)

	// ReplaceSourceChunks atomically swaps all chunks of a source document
	// for the given set and records the new source hash.
	ReplaceSourceChunks(ctx context.Context, sourceID, sourceHash string, chunks []ChunkRecord) error
}

// Pinger reports backend liveness for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}
