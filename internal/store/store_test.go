package store

import (
	"strings"
	"testing"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

func TestTableNameFor(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "github https url",
			url:  "https://github.com/postgres/postgres",
			want: "tm_github_com_postgres_postgres",
		},
		{
			name: "trailing .git stripped",
			url:  "https://github.com/timescale/timescaledb.git",
			want: "tm_github_com_timescale_timescaledb",
		},
		{
			name: "local path",
			url:  "local:/home/user/src/my-repo",
			want: "tm_local_home_user_src_my_repo",
		},
		{
			name: "uppercase folded",
			url:  "https://github.com/TimeScale/TimescaleDB",
			want: "tm_github_com_timescale_timescaledb",
		},
		{
			name: "long url truncated to identifier limit",
			url:  "https://github.com/" + strings.Repeat("a", 100),
			want: "tm_github_com_" + strings.Repeat("a", 49),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TableNameFor(tt.url)
			if got != tt.want {
				t.Errorf("TableNameFor(%q) = %q, want %q", tt.url, got, tt.want)
			}
			if len(got) > 63 {
				t.Errorf("table name %q exceeds identifier limit", got)
			}
			if err := validateTable(got); err != nil {
				t.Errorf("derived name %q failed validation: %v", got, err)
			}
		})
	}
}

func TestTableNameStableAcrossRuns(t *testing.T) {
	a := TableNameFor("https://github.com/postgres/postgres")
	b := TableNameFor("https://github.com/postgres/postgres")
	if a != b {
		t.Errorf("table name not stable: %q vs %q", a, b)
	}
}

func TestValidateTable(t *testing.T) {
	valid := []string{"tm_github_com_postgres_postgres", "commit_history", "_x"}
	for _, v := range valid {
		if err := validateTable(v); err != nil {
			t.Errorf("validateTable(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{
		"",
		"1table",
		"Table",
		"commit-history",
		"commit history",
		"t;drop table users",
		strings.Repeat("a", 64),
	}
	for _, v := range invalid {
		if err := validateTable(v); err == nil {
			t.Errorf("validateTable(%q) expected error", v)
		}
	}
}

func TestSearchSQLNoFilters(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	q, args := searchSQL("commit_history", vec, 5, Filters{})

	if len(args) != 1 {
		t.Fatalf("expected 1 arg (the vector), got %d", len(args))
	}
	if _, ok := args[0].(pgvector.Vector); !ok {
		t.Errorf("first arg should be a pgvector.Vector, got %T", args[0])
	}

	for _, want := range []string{
		"FROM commit_history",
		"ORDER BY embedding <=> $1",
		"LIMIT 5",
		"metadata->>'author'",
		"metadata->>'commit'",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "date >=") || strings.Contains(q, "jsonb_build_object") {
		t.Errorf("unfiltered query must not contain predicates:\n%s", q)
	}
}

func TestSearchSQLWithAllFilters(t *testing.T) {
	since := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Filters{Since: since, Until: until, Author: "Mats Kindahl"}

	q, args := searchSQL("commit_history", []float32{1}, 10, f)

	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d: %v", len(args), args)
	}
	if got := args[1].(time.Time); !got.Equal(since) {
		t.Errorf("since arg = %v, want %v", got, since)
	}
	if got := args[2].(time.Time); !got.Equal(until) {
		t.Errorf("until arg = %v, want %v", got, until)
	}
	if got := args[3].(string); got != "Mats Kindahl" {
		t.Errorf("author arg = %q", got)
	}

	for _, want := range []string{
		"date >= $2",
		"date < $3",
		"metadata @> jsonb_build_object('author', $4::text)",
		"ORDER BY embedding <=> $1",
		"LIMIT 10",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestSearchSQLSinceOnly(t *testing.T) {
	f := Filters{Since: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)}
	q, args := searchSQL("commit_history", []float32{1}, 5, f)

	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if !strings.Contains(q, "date >= $2") {
		t.Errorf("missing since predicate:\n%s", q)
	}
	if strings.Contains(q, "date < ") {
		t.Errorf("unexpected until predicate:\n%s", q)
	}
}

func TestSearchSQLAuthorOnly(t *testing.T) {
	q, args := searchSQL("commit_history", []float32{1}, 5, Filters{Author: "Sven Klemm"})

	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if !strings.Contains(q, "jsonb_build_object('author', $2::text)") {
		t.Errorf("author predicate should use $2 when it is the only filter:\n%s", q)
	}
}
