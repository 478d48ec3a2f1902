package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilot/dispatch/internal/platform"
)

func TestDeriveKeyCollapsesSameIntent(t *testing.T) {
	runAt := time.Date(2025, 6, 1, 9, 15, 10, 0, time.UTC)

	k1 := DeriveKey(platform.X, "c-42", runAt)
	k2 := DeriveKey(platform.X, "c-42", runAt.Add(30*time.Second))
	assert.Equal(t, k1, k2, "same minute bucket must share a key")
}

func TestDeriveKeyDistinguishesIntents(t *testing.T) {
	runAt := time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)

	base := DeriveKey(platform.X, "c-42", runAt)
	assert.NotEqual(t, base, DeriveKey(platform.X, "c-42", runAt.Add(time.Minute)), "distinct scheduled times")
	assert.NotEqual(t, base, DeriveKey(platform.Telegram, "c-42", runAt), "distinct platforms")
	assert.NotEqual(t, base, DeriveKey(platform.X, "c-43", runAt), "distinct content")
}

func TestDeriveKeyTimezoneIndependent(t *testing.T) {
	utc := time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("IST", 5*3600+1800))

	assert.Equal(t, DeriveKey(platform.X, "c", utc), DeriveKey(platform.X, "c", offset))
}
