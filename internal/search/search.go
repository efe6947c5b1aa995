package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/faults"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/seanblong/timemachine/pkg/models"
)

// Searcher is the store subset the service needs.
type Searcher interface {
	Search(ctx context.Context, table string, vec []float32, k int, f store.Filters) ([]models.SearchResult, error)
}

type Service struct {
	Client ai.Client
	Store  Searcher
}

// NewService creates a new search service with the provided AI client and store
func NewService(client ai.Client, store Searcher) *Service {
	return &Service{
		Client: client,
		Store:  store,
	}
}

// Query embeds q with the same model used at ingestion time and runs one
// ranked query against table. A dimensionality mismatch between the client
// and the table is a configuration error, not a retryable one.
func (s *Service) Query(ctx context.Context, table, q string, k int, f store.Filters) ([]models.SearchResult, error) {
	q = strings.TrimSpace(q)

	vec, err := s.Client.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != s.Client.Dim() {
		return nil, fmt.Errorf("%w: query embedding dimension %d, expected %d",
			faults.ErrConfiguration, len(vec), s.Client.Dim())
	}

	return s.Store.Search(ctx, table, vec, k, f)
}
