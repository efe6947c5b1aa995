package gitlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logRecord(fields ...string) string {
	return strings.Join(fields, fieldSep) + recordSep
}

func TestParseLog(t *testing.T) {
	out := logRecord(
		"09766343997aa903f9",
		"Sven Klemm",
		"2023-02-20T12:31:19+01:00",
		"Set name for COPY hash table",
		"Having the hash table named makes\ndebugging easier.\n",
	) + "\n" + logRecord(
		"6440bb3477eef18345",
		"Fabrízio de Royes",
		"2023-04-04T20:31:33Z",
		"Remove unused function",
		"",
	)

	records, err := parseLog(out)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "09766343997aa903f9", records[0].Hash)
	assert.Equal(t, "Sven Klemm", records[0].Author)
	assert.Equal(t, "Set name for COPY hash table", records[0].Subject)
	assert.Equal(t, "Having the hash table named makes\ndebugging easier.", records[0].Body)

	want := time.Date(2023, 2, 20, 12, 31, 19, 0, time.FixedZone("", 3600))
	assert.True(t, records[0].Date.Equal(want))

	assert.Equal(t, "Fabrízio de Royes", records[1].Author)
	assert.Empty(t, records[1].Body)
}

func TestParseLogEmpty(t *testing.T) {
	records, err := parseLog("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseLogMalformed(t *testing.T) {
	_, err := parseLog("not a log record" + recordSep)
	assert.Error(t, err)
}

func TestParseLogBadDate(t *testing.T) {
	out := logRecord("abc", "A", "yesterday", "subject", "body")
	_, err := parseLog(out)
	assert.ErrorContains(t, err, "parse commit date")
}

func TestParseCSV(t *testing.T) {
	csv := `145,Zoltan Haindrich,2023-05-12 06:30:41,ab2cccb6e2b10008c2,Post-release 2.11.0,"Adjust the upgrade/downgrade scripts, add the tests."
239,Fabrízio de Royes,2023-04-04 20:31:33,6440bb3477eef18345,Remove unused function,Remove unused function invalidation_threshold_htid_found.
`
	records, err := parseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Zoltan Haindrich", records[0].Author)
	assert.Equal(t, "ab2cccb6e2b10008c2", records[0].Hash)
	assert.Equal(t, "Post-release 2.11.0", records[0].Subject)
	assert.Equal(t, "Adjust the upgrade/downgrade scripts, add the tests.", records[0].Body)
	assert.True(t, records[0].Date.Equal(time.Date(2023, 5, 12, 6, 30, 41, 0, time.UTC)))
}

func TestParseCSVBadDate(t *testing.T) {
	_, err := parseCSV(strings.NewReader("1,A,later,h,s,b\n"))
	assert.ErrorContains(t, err, "unrecognized date")
}

func TestParseCSVWrongFieldCount(t *testing.T) {
	_, err := parseCSV(strings.NewReader("1,A,2023-01-01\n"))
	assert.Error(t, err)
}

func TestDiscoverRepos(t *testing.T) {
	root := t.TempDir()

	mk := func(parts ...string) string {
		p := filepath.Join(append([]string{root}, parts...)...)
		require.NoError(t, os.MkdirAll(p, 0o755))
		return p
	}

	repoA := mk("a")
	mk("a", ".git")
	repoB := mk("nested", "b")
	mk("nested", "b", ".git")
	mk("plain", "dir")
	// a repo inside a repo must not be reported twice
	mk("a", "vendor", "inner", ".git")

	repos, err := DiscoverRepos(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{repoA, repoB}, repos)
}
