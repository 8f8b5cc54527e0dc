package idgen

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns a UUIDv7 identifier string.
// If UUIDv7 generation fails, it falls back to a random UUIDv4.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RunID returns a dashboard run id like "web-1730000000000-k3x9qa".
func RunID(now time.Time) string {
	return fmt.Sprintf("web-%d-%s", now.UnixMilli(), Suffix(6))
}

// EventID identifies one webhook event inside a run.
func EventID(runID string, timestamp int64) string {
	return runID + "-" + strconv.FormatInt(timestamp, 10) + "-" + Suffix(5)
}

func OrderID(now time.Time) string {
	return fmt.Sprintf("ord_%d_%s", now.UnixMilli(), Suffix(5))
}

var analyticsSeq atomic.Uint64

// AnalyticsEventID is a numeric string: unix millis followed by a six digit
// process-wide sequence, so ids stay unique within a millisecond.
func AnalyticsEventID(now time.Time) string {
	return fmt.Sprintf("%d%06d", now.UnixMilli(), analyticsSeq.Add(1)%1_000_000)
}

// Suffix returns n random lowercase base36 characters.
func Suffix(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = base36[rand.IntN(len(base36))]
	}
	return string(buf)
}
