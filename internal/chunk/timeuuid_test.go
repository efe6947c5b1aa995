package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeIDDeterministic(t *testing.T) {
	ts := time.Date(2023, 5, 12, 6, 30, 41, 0, time.UTC)

	a := TimeID(ts, "ab2cccb6e2b10008c2", 0)
	b := TimeID(ts, "ab2cccb6e2b10008c2", 0)

	assert.Equal(t, a, b)
}

func TestTimeIDEncodesTimestamp(t *testing.T) {
	ts := time.Date(2023, 5, 12, 6, 30, 41, 123456700, time.UTC)

	id := TimeID(ts, "ab2cccb6e2b10008c2", 0)

	require.Equal(t, 1, int(id.Version()), "expected a version-1 layout")
	sec, nsec := id.Time().UnixTime()
	got := time.Unix(sec, nsec).UTC()
	assert.True(t, got.Equal(ts), "recovered %s, want %s", got, ts)
}

func TestTimeIDVariesWithInputs(t *testing.T) {
	ts := time.Date(2023, 5, 12, 6, 30, 41, 0, time.UTC)

	base := TimeID(ts, "aaaa", 0)

	assert.NotEqual(t, base, TimeID(ts, "aaaa", 1), "ordinal must change the ID")
	assert.NotEqual(t, base, TimeID(ts, "bbbb", 0), "commit hash must change the ID")
	assert.NotEqual(t, base, TimeID(ts.Add(time.Second), "aaaa", 0), "timestamp must change the ID")
}
