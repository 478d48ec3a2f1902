package transport

import (
	"fmt"

	"github.com/postpilot/dispatch/internal/platform"
)

// Constraints are the per-platform content rules enforced before any network
// effect. Violations are reported, never silently truncated.
type Constraints struct {
	MaxChars      int
	MediaRequired bool
}

var platformConstraints = map[platform.Platform]Constraints{
	platform.X:         {MaxChars: 280},
	platform.Instagram: {MaxChars: 2200, MediaRequired: true},
	platform.LinkedIn:  {MaxChars: 3000},
	platform.TikTok:    {MaxChars: 2200, MediaRequired: true},
	platform.Facebook:  {MaxChars: 63206},
	platform.Telegram:  {MaxChars: 4096},
}

// ConstraintsFor returns the content rules for p.
func ConstraintsFor(p platform.Platform) Constraints {
	return platformConstraints[p]
}

// Check validates item against the constraints. A violation is a permanent,
// non-retryable condition.
func (c Constraints) Check(item PublishItem) error {
	if n := len([]rune(item.Body)); n > c.MaxChars {
		return fmt.Errorf("content length %d exceeds platform cap %d", n, c.MaxChars)
	}
	if c.MediaRequired && item.MediaURL == "" {
		return fmt.Errorf("platform requires media and none was attached")
	}
	return nil
}
