package invoker

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
)

// FromConfig builds an Invoker with one backend per configured provider.
// Credentials must already be resolved.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Invoker, error) {
	backends := make(map[string]Backend, len(cfg.Providers))

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	httpClient := &http.Client{}
	for _, name := range names {
		pc := cfg.Providers[name]
		switch pc.Kind {
		case config.ProviderOpenAI:
			backends[name] = NewOpenAIBackend(name, pc.BaseURL, pc.APIKey, httpClient)
		case config.ProviderGenAI:
			b, err := NewGenAIBackend(ctx, name, pc.BaseURL, pc.APIKey)
			if err != nil {
				return nil, err
			}
			backends[name] = b
		case config.ProviderDiffusion:
			backends[name] = NewDiffusionBackend(name, pc.BaseURL, pc.ReleasePath, httpClient)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", name, pc.Kind)
		}
	}

	var cache *Cache
	if cfg.Cache.Enabled {
		c, err := OpenCache(CacheOptions{
			Dir:      cfg.Cache.Dir,
			InMemory: cfg.Cache.InMemory,
			TTL:      cfg.Cache.TTL,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		cache = c
	}

	return New(backends, NewValidator(cfg.Validation.MinChars, cfg.Validation.ErrorPhrases), cache, log), nil
}

// DiffusionWorkers returns the diffusion backends by provider name, for
// device probing.
func (inv *Invoker) DiffusionWorkers() map[string]*DiffusionBackend {
	out := make(map[string]*DiffusionBackend)
	for name, b := range inv.backends {
		if d, ok := b.(*DiffusionBackend); ok {
			out[name] = d
		}
	}
	return out
}
