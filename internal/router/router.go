// Package router resolves client-facing model aliases to ordered
// profile chains and walks each chain with fallback. A profile failure
// from credential exhaustion moves to the next profile silently; a
// request-content rejection stops the walk and surfaces immediately.
package router

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cognigate/cognigate/internal/cache"
	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/executor"
	"github.com/cognigate/cognigate/internal/provider"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
	"github.com/cognigate/cognigate/pkg/types"
)

// Router walks alias chains over the provider registry.
type Router struct {
	cfg      *config.Manager
	registry *provider.Registry
	exec     *executor.Executor
	cache    *cache.Manager
	logger   *slog.Logger
}

// New creates a router. The cache manager may be nil when caching is
// disabled at startup.
func New(cfg *config.Manager, registry *provider.Registry, exec *executor.Executor, cacheMgr *cache.Manager, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		registry: registry,
		exec:     exec,
		cache:    cacheMgr,
		logger:   logger,
	}
}

// resolve returns the profile chain for an alias. A bare profile ID is
// accepted as a single-element chain so direct profile calls work too.
func (r *Router) resolve(cfg *config.Config, alias string) ([]string, error) {
	if chain, ok := cfg.Chain(alias); ok {
		return chain, nil
	}
	if _, ok := cfg.Profile(alias); ok {
		return []string{alias}, nil
	}
	return nil, gwerrors.NewAliasNotFound(alias)
}

// walk iterates the chain, calling attempt once per profile. Exhaustion
// continues to the next profile; any other error stops and surfaces.
func (r *Router) walk(cfg *config.Config, alias string, attempt func(profile *config.ModelProfile, adapter provider.Adapter, call provider.Call) error) error {
	chain, err := r.resolve(cfg, alias)
	if err != nil {
		return err
	}

	for _, id := range chain {
		profile, ok := cfg.Profile(id)
		if !ok {
			continue
		}
		adapter, err := r.registry.Resolve(profile.Provider)
		if err != nil {
			r.logger.Warn("no adapter for profile, skipping",
				"profile", id, "provider", profile.Provider, "error", err)
			continue
		}

		call := provider.Call{
			Profile: profile.ModelName,
			Model:   profile.Params.Model,
			BaseURL: profile.Params.APIBase,
		}

		err = attempt(profile, adapter, call)
		if err == nil {
			return nil
		}
		if gwerrors.Is(err, gwerrors.KindProviderExhausted) {
			r.logger.Warn("profile exhausted, falling back",
				"alias", alias, "profile", id, "provider", profile.Provider)
			continue
		}
		return err
	}
	return gwerrors.NewNoProviderAvailable(alias)
}

// applyDefaults fills request parameters the profile pins down.
func applyDefaults(req *types.ChatRequest, params config.ModelParams) *types.ChatRequest {
	out := req.Clone()
	if out.Temperature == nil && params.Temperature != nil {
		out.Temperature = params.Temperature
	}
	if out.MaxTokens == 0 && params.MaxTokens > 0 {
		out.MaxTokens = params.MaxTokens
	}
	return out
}

// Complete serves a non-streaming chat completion with cache preflight.
// The first cacheable profile in the chain owns the fingerprint, so a
// fallback answer from a later profile is stored under the same key and
// future requests hit regardless of which profile served them.
func (r *Router) Complete(ctx context.Context, alias string, req *types.ChatRequest) (*types.ChatResponse, error) {
	cfg := r.cfg.Get()

	var cacheKey string
	var cacheTTL time.Duration

	var result *types.ChatResponse
	err := r.walk(cfg, alias, func(profile *config.ModelProfile, adapter provider.Adapter, call provider.Call) error {
		upstream := applyDefaults(req, profile.Params)

		if r.cache != nil && cacheKey == "" {
			cached, key, ruleTTL, hit := r.cache.Lookup(ctx, &cfg.Cache, profile.ModelName, upstream)
			if hit {
				r.logger.Info("cache hit", "alias", alias, "profile", profile.ModelName)
				result = cached
				return nil
			}
			cacheKey = key
			cacheTTL = ruleTTL
		}

		resp, err := executor.Do(ctx, r.exec, profile.Provider, profile.ModelName, func(secret string) (*types.ChatResponse, error) {
			c := call
			c.Secret = secret
			return adapter.Complete(ctx, c, upstream)
		})
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.cache != nil && cacheKey != "" && cacheTTL > 0 {
		// Stored off the request context so client disconnects after the
		// response do not abort the write.
		go r.cache.Store(context.Background(), cacheKey, cacheTTL, result)
	}
	return result, nil
}

// Stream serves a streaming chat completion. Streams bypass the cache.
func (r *Router) Stream(ctx context.Context, alias string, req *types.ChatRequest) (provider.StreamHandler, error) {
	cfg := r.cfg.Get()

	var result provider.StreamHandler
	err := r.walk(cfg, alias, func(profile *config.ModelProfile, adapter provider.Adapter, call provider.Call) error {
		upstream := applyDefaults(req, profile.Params)

		handler, err := executor.Do(ctx, r.exec, profile.Provider, profile.ModelName, func(secret string) (provider.StreamHandler, error) {
			c := call
			c.Secret = secret
			return adapter.Stream(ctx, c, upstream)
		})
		if err != nil {
			return err
		}
		result = handler
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Embed serves an embedding request through the same chain walk.
func (r *Router) Embed(ctx context.Context, alias string, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	cfg := r.cfg.Get()

	var result *types.EmbeddingResponse
	err := r.walk(cfg, alias, func(profile *config.ModelProfile, adapter provider.Adapter, call provider.Call) error {
		resp, err := executor.Do(ctx, r.exec, profile.Provider, profile.ModelName, func(secret string) (*types.EmbeddingResponse, error) {
			c := call
			c.Secret = secret
			return adapter.Embed(ctx, c, req)
		})
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// speechResult pairs the audio body with its content type.
type speechResult struct {
	body        io.ReadCloser
	contentType string
}

// Speech serves a text-to-speech request.
func (r *Router) Speech(ctx context.Context, alias string, req *types.SpeechRequest) (io.ReadCloser, string, error) {
	cfg := r.cfg.Get()

	var result speechResult
	err := r.walk(cfg, alias, func(profile *config.ModelProfile, adapter provider.Adapter, call provider.Call) error {
		res, err := executor.Do(ctx, r.exec, profile.Provider, profile.ModelName, func(secret string) (speechResult, error) {
			c := call
			c.Secret = secret
			body, contentType, err := adapter.Speech(ctx, c, req)
			return speechResult{body: body, contentType: contentType}, err
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return result.body, result.contentType, nil
}
