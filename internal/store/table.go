package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/seanblong/timemachine/internal/faults"
)

var (
	schemePrefix  = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	nonIdentifier = regexp.MustCompile(`[^a-z0-9_]+`)
	identifier    = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// TableNameFor derives a stable table name from a repository URL, e.g.
// https://github.com/postgres/postgres -> tm_github_com_postgres_postgres.
func TableNameFor(repoURL string) string {
	name := strings.ToLower(strings.TrimSpace(repoURL))
	name = schemePrefix.ReplaceAllString(name, "")
	name = strings.TrimSuffix(name, ".git")
	name = nonIdentifier.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	name = "tm_" + name
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// validateTable rejects anything that is not a plain lowercase identifier.
// Table names are interpolated into DDL and queries, never parameterized.
func validateTable(table string) error {
	if !identifier.MatchString(table) {
		return fmt.Errorf("%w: invalid table name %q", faults.ErrConfiguration, table)
	}
	return nil
}
