package chunk

import (
	"crypto/sha1"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// 100ns intervals between the Gregorian epoch (1582-10-15) and the Unix epoch.
const gregorianToUnix = 122192928000000000

// TimeID builds a version-1-shaped UUID whose timestamp bits come from the
// commit date, so the ID sorts with time and the table's time partitioning
// can prune on it. The clock-sequence and node bits are derived from the
// commit hash and chunk ordinal instead of from hardware: the same commit
// always yields the same IDs, and sibling chunks of one commit stay distinct.
func TimeID(t time.Time, commit string, ordinal int) uuid.UUID {
	ts := uint64(t.UnixNano()/100 + gregorianToUnix)

	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(ts&0xffffffff))
	binary.BigEndian.PutUint16(u[4:6], uint16((ts>>32)&0xffff))
	binary.BigEndian.PutUint16(u[6:8], uint16((ts>>48)&0x0fff)|0x1000)

	h := sha1.Sum([]byte(commit + "#" + strconv.Itoa(ordinal)))
	u[8] = (h[0] & 0x3f) | 0x80 // RFC 4122 variant
	u[9] = h[1]
	copy(u[10:16], h[2:8])
	return u
}
