package router

import (
	"testing"

	"github.com/agentplexus/unified-tts-gateway/internal/health"
)

type fakeAdapter struct {
	kind   string
	voices map[string]bool
}

func (f fakeAdapter) Kind() string { return f.kind }
func (f fakeAdapter) SupportsVoice(name string) bool {
	if f.voices == nil {
		return true // wildcard adapter
	}
	return f.voices[name]
}

func buildAdapters() []Adapter {
	return []Adapter{
		fakeAdapter{kind: "neural", voices: map[string]bool{"bf_emma": true}},
		fakeAdapter{kind: "voxcpm", voices: map[string]bool{"morgan": true}},
		fakeAdapter{kind: "openaudio", voices: map[string]bool{"morgan": true, "bf_emma": true}},
	}
}

func TestResolveExplicitBackendNoFallback(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	chain, err := r.Resolve("bf_emma", "neural", "openaudio")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(chain) != 1 || chain[0].Kind() != "neural" {
		t.Fatalf("explicit backend should yield a single-adapter chain, got %+v", chain)
	}
}

func TestResolveExplicitBackendUnsupportedVoiceErrors(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	_, err := r.Resolve("morgan", "neural", "openaudio")
	if err == nil {
		t.Fatalf("expected error when explicit backend doesn't support the voice")
	}
}

func TestResolvePreferenceWins(t *testing.T) {
	prefs := func(v string) (string, bool) {
		if v == "morgan" {
			return "openaudio", true
		}
		return "", false
	}
	r := New(nil, nil, buildAdapters(), prefs)
	chain, err := r.Resolve("morgan", "", "voxcpm")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if chain[0].Kind() != "openaudio" {
		t.Fatalf("preference should place openaudio first, got %s", chain[0].Kind())
	}
}

func TestResolveSoleClaimant(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	chain, err := r.Resolve("bf_emma", "", "voxcpm")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if chain[0].Kind() != "neural" {
		t.Fatalf("sole claimant neural should be chosen, got %s", chain[0].Kind())
	}
}

func TestResolveDefaultBackendFallback(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	chain, err := r.Resolve("morgan", "", "openaudio")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if chain[0].Kind() != "openaudio" {
		t.Fatalf("default backend should win among multiple claimants, got %s", chain[0].Kind())
	}
	if len(chain) != 2 {
		t.Fatalf("expected both claimants in the fallback chain, got %d", len(chain))
	}
}

func TestResolveUnknownVoice(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	_, err := r.Resolve("nonexistent", "", "neural")
	if err == nil {
		t.Fatalf("expected VoiceUnknown error")
	}
}

func TestResolveDemotesDownAdapters(t *testing.T) {
	tracker := health.NewTracker([]string{"neural", "voxcpm", "openaudio"})
	for i := 0; i < 3; i++ {
		tracker.RecordFailure("openaudio")
	}
	r := New(nil, tracker, buildAdapters(), nil)
	chain, err := r.Resolve("morgan", "", "openaudio")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if chain[0].Kind() != "voxcpm" {
		t.Fatalf("down adapter should be demoted to the tail, got order %v", kinds(chain))
	}
	if chain[len(chain)-1].Kind() != "openaudio" {
		t.Fatalf("down adapter should still appear in the chain, got %v", kinds(chain))
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := New(nil, nil, buildAdapters(), nil)
	a, _ := r.Resolve("morgan", "", "neural")
	b, _ := r.Resolve("morgan", "", "neural")
	if kinds(a)[0] != kinds(b)[0] || len(a) != len(b) {
		t.Fatalf("repeated Resolve calls should be deterministic: %v vs %v", kinds(a), kinds(b))
	}
}

func kinds(chain []Adapter) []string {
	out := make([]string, len(chain))
	for i, a := range chain {
		out[i] = a.Kind()
	}
	return out
}
