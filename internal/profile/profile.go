// Package profile holds the static, immutable per-backend capability
// table: generation ceilings, chunking targets, crossfade widths,
// and native sample rates for every backend kind this build knows.
package profile

import "fmt"

// Profile is the immutable capability record for one backend kind.
type Profile struct {
	Kind string

	MaxWords     int // hard ceiling; violations are an error
	MaxChars     int // hard ceiling
	OptimalWords int // chunker soft target

	NeedsChunking bool

	CrossfadeMs      int // 10-80 typical
	NativeSampleRate int // Hz

	// MaxConcurrency bounds in-flight requests this adapter tolerates.
	MaxConcurrency int

	// HonorsSpeed records whether this backend kind applies the speed
	// parameter or silently drops it.
	HonorsSpeed bool
}

// Registry is the built-in set of backend profiles. New backend kinds
// are compile-time additions.
var Registry = []Profile{
	{
		Kind:             "neural",
		MaxWords:         220,
		MaxChars:         1400,
		OptimalWords:     150,
		NeedsChunking:    true,
		CrossfadeMs:      30,
		NativeSampleRate: 24000,
		MaxConcurrency:   6,
		HonorsSpeed:      true,
	},
	{
		Kind:             "voxcpm",
		MaxWords:         120,
		MaxChars:         800,
		OptimalWords:     90,
		NeedsChunking:    true,
		CrossfadeMs:      25,
		NativeSampleRate: 16000,
		MaxConcurrency:   2,
		HonorsSpeed:      false,
	},
	{
		Kind:             "openaudio",
		MaxWords:         200,
		MaxChars:         1300,
		OptimalWords:     160,
		NeedsChunking:    true,
		CrossfadeMs:      20,
		NativeSampleRate: 44100,
		MaxConcurrency:   4,
		HonorsSpeed:      true,
	},
	{
		Kind:             "clone",
		MaxWords:         80,
		MaxChars:         500,
		OptimalWords:     60,
		NeedsChunking:    true,
		CrossfadeMs:      40,
		NativeSampleRate: 22050,
		MaxConcurrency:   1,
		HonorsSpeed:      false,
	},
	{
		Kind:             "emotion",
		MaxWords:         100,
		MaxChars:         650,
		OptimalWords:     70,
		NeedsChunking:    true,
		CrossfadeMs:      35,
		NativeSampleRate: 24000,
		MaxConcurrency:   3,
		HonorsSpeed:      false,
	},
	{
		Kind:             "cloud",
		MaxWords:         600,
		MaxChars:         4000,
		OptimalWords:     450,
		NeedsChunking:    true,
		CrossfadeMs:      15,
		NativeSampleRate: 44100,
		MaxConcurrency:   8,
		HonorsSpeed:      true,
	},
	{
		Kind:             "local",
		MaxWords:         150,
		MaxChars:         1000,
		OptimalWords:     110,
		NeedsChunking:    true,
		CrossfadeMs:      20,
		NativeSampleRate: 22050,
		MaxConcurrency:   1,
		HonorsSpeed:      true,
	},
}

// ByKind looks up the profile for a backend kind.
func ByKind(kind string) (Profile, error) {
	for _, p := range Registry {
		if p.Kind == kind {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("profile: unknown backend kind %q", kind)
}

// Validate checks the invariants a profile must satisfy:
// optimal_words <= max_words, and a crossfade short enough that two
// crossfade windows fit inside the smallest plausible chunk.
func (p Profile) Validate() error {
	if p.OptimalWords > p.MaxWords {
		return fmt.Errorf("profile %s: optimal_words (%d) > max_words (%d)", p.Kind, p.OptimalWords, p.MaxWords)
	}
	if p.MaxChars <= 0 || p.MaxWords <= 0 {
		return fmt.Errorf("profile %s: ceilings must be positive", p.Kind)
	}
	// A chunk at optimal_words, spoken at a conservative 2 words/sec,
	// must be long enough to contain two crossfade windows.
	minChunkMs := (p.OptimalWords / 2) * 1000
	if p.CrossfadeMs*2 >= minChunkMs && minChunkMs > 0 {
		return fmt.Errorf("profile %s: crossfade_ms*2 (%d) >= estimated minimum chunk duration (%dms)", p.Kind, p.CrossfadeMs*2, minChunkMs)
	}
	return nil
}
