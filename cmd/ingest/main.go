package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/config"
	"github.com/seanblong/timemachine/internal/gitlog"
	"github.com/seanblong/timemachine/internal/ingest"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/seanblong/timemachine/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("timemachine-ingest", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	clientConfig, err := clientConfigFor(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if client.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}
	logger.Info().Str("provider", cfg.Provider).Int("embedding_dim", client.Dim()).Msg("starting ingestion")

	ing := ingest.New(st, client, cfg.ChunkSize, cfg.PartitionDays)

	for _, src := range sources(ctx, cfg) {
		records, err := src.read(ctx)
		if err != nil {
			log.Fatalf("read %s: %v", src.repoURL, err)
		}
		if cfg.CommitLimit > 0 && len(records) > cfg.CommitLimit {
			records = records[:cfg.CommitLimit]
		}
		if err := ing.Run(ctx, src.repoURL, records); err != nil {
			log.Fatalf("ingest %s: %v", src.repoURL, err)
		}
		logger.Info().Str("repo", src.repoURL).Int("commits", len(records)).Msg("ingested")
	}
}

// source is one history to ingest, keyed by the catalog URL it is stored under.
type source struct {
	repoURL string
	read    func(ctx context.Context) ([]models.CommitRecord, error)
}

func sources(ctx context.Context, cfg config.Specification) []source {
	switch {
	case cfg.CSVPath != "":
		url := cfg.RepoURL
		if url == "" {
			url = "csv:" + cfg.CSVPath
		}
		return []source{{
			repoURL: url,
			read: func(context.Context) ([]models.CommitRecord, error) {
				return gitlog.ReadCSV(cfg.CSVPath)
			},
		}}

	case cfg.ReposRoot != "":
		dirs, err := gitlog.DiscoverRepos(cfg.ReposRoot)
		if err != nil {
			log.Fatalf("scan %s: %v", cfg.ReposRoot, err)
		}
		if len(dirs) == 0 {
			log.Fatalf("no git repositories under %s", cfg.ReposRoot)
		}
		out := make([]source, 0, len(dirs))
		for _, dir := range dirs {
			dir := dir
			out = append(out, source{
				repoURL: "local:" + dir,
				read: func(ctx context.Context) ([]models.CommitRecord, error) {
					return gitlog.History(ctx, dir, cfg.CommitLimit)
				},
			})
		}
		return out

	case cfg.RepoURL != "":
		return []source{{
			repoURL: cfg.RepoURL,
			read: func(ctx context.Context) ([]models.CommitRecord, error) {
				dir, cleanup, err := gitlog.CloneTemp(ctx, cfg.RepoURL, cfg.Branch)
				if err != nil {
					return nil, err
				}
				defer cleanup()
				return gitlog.History(ctx, dir, cfg.CommitLimit)
			},
		}}

	default:
		log.Fatal("one of --git-repo, --csv-path or --repos-root is required")
		return nil
	}
}

func clientConfigFor(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
