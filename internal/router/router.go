// Package router selects the ordered adapter chain for a synthesis
// request: explicit backend pin, then preference, then sole claimant,
// then default backend, with every other claimant appended in a
// stable order and down backends demoted to the tail.
package router

import (
	"sort"

	"github.com/agentplexus/unified-tts-gateway/internal/health"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

// Adapter is the subset of the synthesis adapter contract the router
// needs to know about: its backend kind and whether it claims to
// support a given voice.
type Adapter interface {
	Kind() string
	SupportsVoice(name string) bool
}

// Router holds the process-wide dependencies needed to build an
// adapter chain: the merged voice catalog, preferences, and the
// constructed adapter set.
type Router struct {
	registry *voice.Registry
	health   *health.Tracker
	adapters map[string]Adapter // kind -> adapter

	// prefs looks up a voice's preferred backend kind, or ok=false.
	prefs func(voiceName string) (string, bool)
}

// New builds a Router over the given adapter set.
func New(registry *voice.Registry, tracker *health.Tracker, adapters []Adapter, prefs func(string) (string, bool)) *Router {
	byKind := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Router{registry: registry, health: tracker, adapters: byKind, prefs: prefs}
}

// Resolve returns the ordered chain of adapters to try for voiceName.
// explicitBackend is the caller-specified backend override, if any;
// it is empty when the request didn't name one, and when set it pins
// the chain to that single adapter with no fallback.
func (r *Router) Resolve(voiceName, explicitBackend, defaultBackend string) ([]Adapter, error) {
	if explicitBackend != "" {
		a, ok := r.adapters[explicitBackend]
		if !ok || !a.SupportsVoice(voiceName) {
			return nil, ttserr.New(ttserr.KindVoiceUnknown,
				"backend %q does not support voice %q", explicitBackend, voiceName)
		}
		return []Adapter{a}, nil
	}

	claimants := r.claimants(voiceName)
	if len(claimants) == 0 {
		return nil, ttserr.New(ttserr.KindVoiceUnknown, "no backend claims voice %q", voiceName)
	}

	head := r.pickHead(voiceName, defaultBackend, claimants)

	chain := []Adapter{head}
	seen := map[string]bool{head.Kind(): true}
	for _, a := range r.stableOrder(claimants) {
		if seen[a.Kind()] {
			continue
		}
		chain = append(chain, a)
		seen[a.Kind()] = true
	}

	r.demoteUnhealthy(chain)
	return chain, nil
}

// claimants returns every constructed adapter that supports voiceName.
func (r *Router) claimants(voiceName string) []Adapter {
	var out []Adapter
	for _, a := range r.adapters {
		if a.SupportsVoice(voiceName) {
			out = append(out, a)
		}
	}
	return out
}

// pickHead picks the first adapter to try: preference, then sole
// claimant, then default backend.
func (r *Router) pickHead(voiceName, defaultBackend string, claimants []Adapter) Adapter {
	if r.prefs != nil {
		if kind, ok := r.prefs(voiceName); ok {
			if a, ok := r.adapters[kind]; ok && a.SupportsVoice(voiceName) {
				return a
			}
			// Preference names an unconfigured or non-claiming backend:
			// treated as absent, not an error.
		}
	}

	if len(claimants) == 1 {
		return claimants[0]
	}

	if a, ok := r.adapters[defaultBackend]; ok {
		for _, c := range claimants {
			if c.Kind() == a.Kind() {
				return a
			}
		}
	}

	return r.stableOrder(claimants)[0]
}

// stableOrder returns claimants sorted by kind name, for deterministic
// fallback ordering.
func (r *Router) stableOrder(claimants []Adapter) []Adapter {
	out := make([]Adapter, len(claimants))
	copy(out, claimants)
	sort.Slice(out, func(i, j int) bool { return out[i].Kind() < out[j].Kind() })
	return out
}

// demoteUnhealthy moves any adapter whose tracked health is Down to
// the tail of chain, preserving relative order otherwise. A down
// adapter may be the only option left, so it is never removed.
func (r *Router) demoteUnhealthy(chain []Adapter) {
	if r.health == nil {
		return
	}
	var healthy, down []Adapter
	for _, a := range chain {
		if r.health.Get(a.Kind()).Available == health.Down {
			down = append(down, a)
		} else {
			healthy = append(healthy, a)
		}
	}
	copy(chain, append(healthy, down...))
}
