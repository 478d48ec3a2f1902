package platform

import "fmt"

// Platform identifies one of the supported social networks.
type Platform string

const (
	X         Platform = "x"
	Instagram Platform = "instagram"
	LinkedIn  Platform = "linkedin"
	TikTok    Platform = "tiktok"
	Facebook  Platform = "facebook"
	Telegram  Platform = "telegram"
)

// All lists every supported platform in a stable order.
func All() []Platform {
	return []Platform{X, Instagram, LinkedIn, TikTok, Facebook, Telegram}
}

// Parse converts a raw string into a Platform, rejecting unknown values.
func Parse(s string) (Platform, error) {
	switch Platform(s) {
	case X, Instagram, LinkedIn, TikTok, Facebook, Telegram:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

func (p Platform) String() string {
	return string(p)
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	_, err := Parse(string(p))
	return err == nil
}
