package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/config"
	"github.com/seanblong/timemachine/internal/rag"
	"github.com/seanblong/timemachine/internal/search"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("timemachine-ask", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

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

	table, err := resolveTable(ctx, st, cfg.RepoURL)
	if err != nil {
		log.Fatal(err)
	}

	svc := search.NewService(client, st)
	responder := rag.NewResponder(client)
	in := bufio.NewReader(os.Stdin)

	for {
		question := prompt(in, "Enter your question")

		fmt.Println("Searching...")
		matches, err := svc.Query(ctx, table, question, cfg.TopK, store.Filters{})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Found %d matches.\n", len(matches))

		contexts := make([]string, 0, len(matches))
		for _, m := range matches {
			contexts = append(contexts, m.Content)
		}

		fmt.Println("Generating response...")
		answer, err := responder.Answer(ctx, question, contexts)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println()
		fmt.Println(answer)
		fmt.Println()

		if !confirm(in, "Do you want to continue?") {
			break
		}
	}
}

func resolveTable(ctx context.Context, st *store.Store, repoURL string) (string, error) {
	if repoURL != "" {
		return st.TableFor(ctx, repoURL)
	}

	entries, err := st.ListCatalog(ctx)
	if err != nil {
		return "", err
	}
	switch len(entries) {
	case 0:
		return "", fmt.Errorf("no repositories ingested yet, run timemachine-ingest first")
	case 1:
		return entries[0].TableName, nil
	default:
		fmt.Println("Ingested repositories:")
		for _, e := range entries {
			fmt.Println("  " + e.RepoURL)
		}
		return "", fmt.Errorf("multiple repositories ingested, pick one with --git-repo")
	}
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label + ": ")
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func confirm(in *bufio.Reader, label string) bool {
	answer := prompt(in, label+" [y/N]")
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
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
