package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/timemachine/internal/ai"
	"github.com/seanblong/timemachine/internal/auth"
	"github.com/seanblong/timemachine/internal/config"
	"github.com/seanblong/timemachine/internal/rag"
	"github.com/seanblong/timemachine/internal/search"
	"github.com/seanblong/timemachine/internal/store"
	"github.com/spf13/pflag"
)

type askResponse struct {
	Answer  string `json:"answer"`
	Matches int    `json:"matches"`
}

func main() {
	fs := pflag.NewFlagSet("timemachine-api", pflag.ExitOnError)
	issueToken := fs.String("issue-token", "", "Print a bearer token for the given subject and exit")

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

	guard := auth.New(cfg.Auth.JwtSecret, cfg.Auth.Enabled)
	if cfg.Auth.Enabled && cfg.Auth.JwtSecret == "" {
		log.Fatal("auth enabled but TIMEMACHINE_AUTH_JWT_SECRET is unset")
	}

	if *issueToken != "" {
		if cfg.Auth.JwtSecret == "" {
			log.Fatal("TIMEMACHINE_AUTH_JWT_SECRET must be set to issue tokens")
		}
		token, err := guard.GenerateToken(*issueToken, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting timemachine api")

	clientConfig, err := clientConfigFor(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	logger.Info().Int("embedding_dim", client.Dim()).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	svc := search.NewService(client, st)
	responder := rag.NewResponder(client)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]bool{"enabled": guard.Enabled()}); err != nil {
			http.Error(w, "Failed to encode response", 500)
		}
	})

	mux.HandleFunc("/repos", guard.Middleware(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entries, err := st.ListCatalog(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if entries == nil {
			_, _ = w.Write([]byte("[]"))
			return
		}
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, "Failed to encode repositories", 500)
		}
	}))

	mux.HandleFunc("/search", guard.Middleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		table, k, filters, err := queryParams(ctx, st, r, cfg.TopK)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := svc.Query(ctx, table, q, k, filters)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res == nil {
			_, _ = w.Write([]byte("[]"))
		} else if err := json.NewEncoder(w).Encode(res); err != nil {
			log.Printf("failed to encode response: %v", err)
			_, _ = w.Write([]byte("[]"))
		}

		hlog.FromRequest(r).Info().Str("path", "/search").Str("q", q).Int("k", k).Dur("dur", time.Since(start)).Msg("served")
	}))

	mux.HandleFunc("/ask", guard.Middleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		table, k, filters, err := queryParams(ctx, st, r, cfg.TopK)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := svc.Query(ctx, table, q, k, filters)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		contexts := make([]string, 0, len(res))
		for _, m := range res {
			contexts = append(contexts, m.Content)
		}

		answer, err := responder.Answer(ctx, q, contexts)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(askResponse{Answer: answer, Matches: len(res)}); err != nil {
			http.Error(w, "Failed to encode response", 500)
		}

		hlog.FromRequest(r).Info().Str("path", "/ask").Str("q", q).Int("k", k).Dur("dur", time.Since(start)).Msg("served")
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// queryParams resolves the repo/table plus k, since, until and author
// parameters for the search and ask endpoints.
func queryParams(ctx context.Context, st *store.Store, r *http.Request, defaultK int) (string, int, store.Filters, error) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		return "", 0, store.Filters{}, fmt.Errorf("missing query parameter repo")
	}
	table, err := st.TableFor(ctx, repo)
	if err != nil {
		return "", 0, store.Filters{}, err
	}

	k := defaultK
	if v := r.URL.Query().Get("k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			k = n
		}
	}

	var filters store.Filters
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return "", 0, store.Filters{}, fmt.Errorf("invalid since date %q", v)
		}
		filters.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return "", 0, store.Filters{}, fmt.Errorf("invalid until date %q", v)
		}
		filters.Until = t
	}
	filters.Author = r.URL.Query().Get("author")

	return table, k, filters, nil
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
