package transport

import (
	"fmt"
	"net/http"

	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/ratelimit"
	"github.com/postpilot/dispatch/internal/repository"
)

// Registry resolves the transport owning each platform. Unsupported
// platforms are rejected at resolution time.
type Registry struct {
	transports map[platform.Platform]*Transport
}

// RegistryConfig carries the shared collaborators for all transports.
type RegistryConfig struct {
	Limiters  *ratelimit.Registry
	Directory repository.AccountDirectory
	SecretKey []byte
	DryRun    bool
	// Client overrides the HTTP client, for tests. Defaults to
	// http.DefaultClient.
	Client Doer
}

// NewRegistry builds one transport per supported platform, each owning its
// platform's rate limiter.
func NewRegistry(cfg RegistryConfig) *Registry {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	creds := &credentials{directory: cfg.Directory, secretKey: cfg.SecretKey}

	apis := []api{
		&xAPI{client: client},
		&instagramAPI{client: client},
		&linkedinAPI{client: client},
		&tiktokAPI{client: client},
		&facebookAPI{client: client},
		&telegramAPI{client: client},
	}

	transports := make(map[platform.Platform]*Transport, len(apis))
	for _, a := range apis {
		transports[a.platform()] = newTransport(a, cfg.Limiters.For(a.platform()), creds, cfg.DryRun)
	}
	return &Registry{transports: transports}
}

// Resolve returns the transport for p.
func (r *Registry) Resolve(p platform.Platform) (*Transport, error) {
	t, ok := r.transports[p]
	if !ok {
		return nil, fmt.Errorf("transport: unsupported platform %q", p)
	}
	return t, nil
}
