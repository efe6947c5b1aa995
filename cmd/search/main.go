package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/config"
	"github.com/seanblong/timemachine/internal/search"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/seanblong/timemachine/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("timemachine-search", pflag.ExitOnError)

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
	in := bufio.NewReader(os.Stdin)

	for {
		question := prompt(in, "Enter your question")
		filters, err := promptFilters(in)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("Searching...")
		matches, err := svc.Query(ctx, table, question, cfg.TopK, filters)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Here are the %d most similar rows:\n", len(matches))
		printResults(matches)
		fmt.Println()

		if !confirm(in, "Do you want to continue?") {
			break
		}
	}
}

// resolveTable picks the vector table to query: the configured repo's, or
// the only catalog entry when just one repository has been ingested.
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

func promptFilters(in *bufio.Reader) (store.Filters, error) {
	var f store.Filters

	since := prompt(in, "Only find results more recent than (YYYY-MM-DD, empty for no limit)")
	if since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return f, fmt.Errorf("invalid date %q: %w", since, err)
		}
		f.Since = t
	}

	until := prompt(in, "Only find results older than (YYYY-MM-DD, empty for no limit)")
	if until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			return f, fmt.Errorf("invalid date %q: %w", until, err)
		}
		f.Until = t
	}

	f.Author = prompt(in, "Limit results to an author (empty for all)")
	return f, nil
}

func printResults(matches []models.SearchResult) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tAUTHOR\tCOMMIT\tSUBJECT")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			m.Date.Format("2006-01-02"), m.Author, short(m.Commit), m.Subject)
	}
	_ = w.Flush()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
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
