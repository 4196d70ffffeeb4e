package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ServiceOptions struct {
	Primary   string
	Fallbacks []string
	// OnFallback fires for every provider failure in the chain.
	OnFallback func(provider, reason string, err error)
	// OnSkip reports chain entries that have no registered provider.
	OnSkip func(provider string)
	// OnComplete fires with the provider that served a request.
	OnComplete func(provider string)
}

// Service completes requests against an ordered provider chain.
type Service struct {
	chain      []Provider
	onFallback func(provider, reason string, err error)
	onComplete func(provider string)
}

// NewService builds the chain [primary, fallbacks...] from registry. Names
// without a registered provider are skipped; if the primary is missing the
// first available fallback leads.
func NewService(registry *Registry, opts ServiceOptions) (*Service, error) {
	seen := map[string]bool{}
	var chain []Provider
	for _, name := range append([]string{opts.Primary}, opts.Fallbacks...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		p, ok := registry.Get(name)
		if !ok {
			if opts.OnSkip != nil {
				opts.OnSkip(name)
			}
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}
	return &Service{chain: chain, onFallback: opts.OnFallback, onComplete: opts.OnComplete}, nil
}

// Chain returns the provider names in the order they are tried.
func (s *Service) Chain() []string {
	names := make([]string, len(s.chain))
	for i, p := range s.chain {
		names[i] = p.Name()
	}
	return names
}

// Complete tries each provider in order and returns the first success. The
// response lists the failures that preceded it. A done context stops the chain.
func (s *Service) Complete(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	var (
		errs    []error
		reasons []FallbackReason
	)
	for _, p := range s.chain {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return nil, errors.Join(errs...)
		}
		resp, err := p.Complete(ctx, req)
		if err == nil {
			if resp.Provider == "" {
				resp.Provider = p.Name()
			}
			resp.FallbackReasons = reasons
			if s.onComplete != nil {
				s.onComplete(resp.Provider)
			}
			return resp, nil
		}
		reason := reasonOf(err)
		if s.onFallback != nil {
			s.onFallback(p.Name(), reason, err)
		}
		reasons = append(reasons, FallbackReason{Provider: p.Name(), Reason: reason})
		errs = append(errs, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(append(errs, ctxErr)...)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}
