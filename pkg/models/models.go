package models

import (
	"time"

	"github.com/google/uuid"
)

// CommitRecord is one entry of a repository's history, as extracted from
// `git log` or a CSV export. Immutable once extracted.
type CommitRecord struct {
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Hash    string    `json:"hash"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
}

// CommitMeta is the typed metadata stored alongside every chunk. It is
// serialized into the jsonb column and denormalized back onto search results.
type CommitMeta struct {
	Commit  string    `json:"commit"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Subject string    `json:"subject,omitempty"`
}

// Chunk is a bounded slice of a commit record's concatenated text. Its ID is
// a deterministic function of the record timestamp, so re-ingesting the same
// history produces the same IDs.
type Chunk struct {
	ID      uuid.UUID  `json:"id"`
	Date    time.Time  `json:"date"`
	Meta    CommitMeta `json:"metadata"`
	Content string     `json:"content"`
}

// EmbeddedChunk is a Chunk plus its fixed-dimension embedding vector,
// one table row per value.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// SearchResult is one retrieved row, ordered by ascending vector distance.
type SearchResult struct {
	Date     time.Time `json:"date"`
	Author   string    `json:"author"`
	Commit   string    `json:"commit"`
	Subject  string    `json:"subject"`
	Content  string    `json:"content"`
	Distance float64   `json:"distance"`
}

// CatalogEntry maps an ingested repository URL to its vector table.
type CatalogEntry struct {
	RepoURL   string `json:"repo_url"`
	TableName string `json:"table_name"`
}
