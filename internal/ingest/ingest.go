// Package ingest runs the offline pipeline: commit records are chunked,
// embedded in batches by a worker pool, and loaded into a fresh vector table.
package ingest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/chunk"
	"github.com/seanblong/timemachine/internal/faults"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/seanblong/timemachine/pkg/models"
)

// maxGroupSize bounds how many chunks go into one embedding batch call.
const maxGroupSize = 1000

// VectorStore is the subset of store methods the pipeline needs.
type VectorStore interface {
	EnsureCatalog(ctx context.Context) error
	UpsertCatalog(ctx context.Context, repoURL, table string) error
	ReplaceTable(ctx context.Context, table string, dim, partitionDays int) error
	InsertChunks(ctx context.Context, table string, dim int, chunks []models.EmbeddedChunk) error
	CreateIndexes(ctx context.Context, table string) error
}

// Ingestor handles ingestion of one repository's commit history.
type Ingestor struct {
	Store         VectorStore
	Client        ai.Client
	Splitter      *chunk.Splitter
	PartitionDays int
	Workers       int
}

func New(s VectorStore, client ai.Client, chunkSize, partitionDays int) *Ingestor {
	return &Ingestor{
		Store:         s,
		Client:        client,
		Splitter:      chunk.NewSplitter(chunkSize),
		PartitionDays: partitionDays,
	}
}

// Run replaces repoURL's vector table with the embedded history. The ANN
// index is built strictly after the last insert commits; any failure along
// the way aborts the whole load.
func (ing *Ingestor) Run(ctx context.Context, repoURL string, records []models.CommitRecord) error {
	var chunks []models.EmbeddedChunk
	for _, rec := range records {
		for _, c := range ing.Splitter.Split(rec) {
			chunks = append(chunks, models.EmbeddedChunk{Chunk: c})
		}
	}
	log.Info().Str("repo", repoURL).Int("commits", len(records)).Int("chunks", len(chunks)).Msg("chunked history")

	if err := ing.embedAll(ctx, chunks); err != nil {
		return err
	}

	dim := ing.Client.Dim()
	table := store.TableNameFor(repoURL)

	if err := ing.Store.EnsureCatalog(ctx); err != nil {
		return err
	}
	if err := ing.Store.ReplaceTable(ctx, table, dim, ing.PartitionDays); err != nil {
		return err
	}

	start := time.Now()
	if err := ing.Store.InsertChunks(ctx, table, dim, chunks); err != nil {
		return err
	}
	log.Info().Str("table", table).Int("rows", len(chunks)).Dur("dur", time.Since(start)).Msg("inserted rows")

	start = time.Now()
	if err := ing.Store.CreateIndexes(ctx, table); err != nil {
		return err
	}
	log.Info().Str("table", table).Dur("dur", time.Since(start)).Msg("built indexes")

	return ing.Store.UpsertCatalog(ctx, repoURL, table)
}

// embedAll fills in the Embedding field of every chunk. The slice is cut
// into contiguous groups; each group is one batch call, and a fixed worker
// pool drains the groups. Workers write back only into their own range, so
// no locking is needed.
func (ing *Ingestor) embedAll(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	dim := ing.Client.Dim()
	groups := partition(len(chunks), groupCount(len(chunks)))

	workers := ing.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers > 8 {
			workers = 8 // avoid hammering the embedding API
		}
	}
	log.Info().Int("groups", len(groups)).Int("workers", workers).Msg("embedding chunks")

	groupChan := make(chan span, len(groups))
	errorChan := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range groupChan {
				if err := ing.embedGroup(ctx, chunks[g.lo:g.hi], dim); err != nil {
					select {
					case errorChan <- err:
					default:
					}
					return
				}
			}
		}()
	}

	for _, g := range groups {
		groupChan <- g
	}
	close(groupChan)
	wg.Wait()

	select {
	case err := <-errorChan:
		return err
	default:
	}

	return nil
}

// embedGroup embeds one group's texts in a single batch call and writes the
// vectors back by index correspondence.
func (ing *Ingestor) embedGroup(ctx context.Context, group []models.EmbeddedChunk, dim int) error {
	texts := make([]string, len(group))
	for i, c := range group {
		texts[i] = c.Content
	}

	start := time.Now()
	vecs, err := ing.Client.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(group), err)
	}
	if len(vecs) != len(group) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", faults.ErrExternalService, len(vecs), len(group))
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: embedding dimension %d, expected %d", faults.ErrConfiguration, len(v), dim)
		}
		group[i].Embedding = v
	}
	log.Debug().Int("chunks", len(group)).Dur("dur", time.Since(start)).Msg("embedded group")
	return nil
}

type span struct{ lo, hi int }

// groupCount picks the number of batch groups: at least one per available
// processing unit, and enough that no group exceeds maxGroupSize chunks.
func groupCount(total int) int {
	n := runtime.GOMAXPROCS(0)
	if m := (total + maxGroupSize - 1) / maxGroupSize; m > n {
		n = m
	}
	if n > total {
		n = total
	}
	return n
}

// partition cuts [0,total) into n contiguous spans of near-equal length.
func partition(total, n int) []span {
	spans := make([]span, 0, n)
	base, rem := total/n, total%n
	lo := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		spans = append(spans, span{lo: lo, hi: lo + size})
		lo += size
	}
	return spans
}
