// Package gitlog extracts normalized commit records from a git repository
// or from a CSV export of one.
package gitlog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/timemachine/pkg/models"
)

// Field and record separators for the custom `git log` pretty format.
// Unit/record separator control bytes cannot appear in commit messages
// that git will print.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// CloneTemp makes a shallow, blobless clone of repoURL into a temp directory
// and returns the directory plus a cleanup func.
func CloneTemp(ctx context.Context, repoURL, branch string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "timemachine-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to remove temp clone")
		}
	}

	url := repoURL
	if !strings.HasSuffix(url, ".git") {
		url += ".git"
	}

	cmd := exec.CommandContext(ctx, "git", "clone",
		"--filter=blob:none",
		"--no-checkout",
		"--single-branch",
		"--branch="+branch,
		url, dir)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("git clone: %w", err)
	}
	return dir, cleanup, nil
}

// History reads the commit log of the repository at dir, newest first.
// limit caps the number of commits; 0 means no limit.
func History(ctx context.Context, dir string, limit int) ([]models.CommitRecord, error) {
	args := []string{"log", "--date=iso-strict",
		"--pretty=format:%H" + fieldSep + "%an" + fieldSep + "%ad" + fieldSep + "%s" + fieldSep + "%b" + recordSep}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git log: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseLog(stdout.String())
}

func parseLog(out string) ([]models.CommitRecord, error) {
	var records []models.CommitRecord
	for _, raw := range strings.Split(out, recordSep) {
		raw = strings.TrimLeft(raw, "\n")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		fields := strings.SplitN(raw, fieldSep, 5)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed log record: %q", truncate(raw, 80))
		}
		date, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, fmt.Errorf("parse commit date %q: %w", fields[2], err)
		}
		records = append(records, models.CommitRecord{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    date,
			Subject: fields[3],
			Body:    strings.TrimRight(fields[4], "\n"),
		})
	}
	return records, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "…"
	}
	return s
}
