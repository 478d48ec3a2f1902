package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

// keyBucket is the resolution at which scheduled times collapse into one
// logical publish intent. Two enqueues for the same content and platform
// inside the same bucket share a key; distinct scheduled times do not.
const keyBucket = time.Minute

// DeriveKey produces the deterministic dispatch key for one publish intent.
func DeriveKey(p platform.Platform, contentID string, runAt time.Time) string {
	bucket := runAt.UTC().Truncate(keyBucket).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", p, contentID, bucket)))
	return hex.EncodeToString(sum[:16])
}
