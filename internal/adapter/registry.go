package adapter

import (
	"log"
	"os"

	"github.com/agentplexus/unified-tts-gateway/internal/config"
	"github.com/agentplexus/unified-tts-gateway/internal/profile"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

// Closer is the error-returning shutdown contract SessionAdapter
// satisfies. LocalAdapter's Close returns nothing and does not;
// BuildAll hands every shutdown hook back as a plain func instead.
type Closer interface {
	Close() error
}

// BuildAll constructs one adapter per configured backend kind. A
// backend whose construction fails is logged and left out so the
// server still starts; kinds with no matching environment variable
// are skipped entirely, not marked down.
func BuildAll(cfg *config.Config) (synths []Synthesizer, closers []func(), listers []voice.BackendVoiceLister) {
	for kind, endpoint := range cfg.Backends {
		prof, err := profile.ByKind(kind)
		if err != nil {
			log.Printf("adapter registry: skipping unknown backend kind %q", kind)
			continue
		}

		s, closer, err := buildOne(kind, endpoint, prof, cfg)
		if err != nil {
			log.Printf("adapter registry: %s: construction failed, backend left out: %v", kind, err)
			continue
		}
		synths = append(synths, s)
		if closer != nil {
			closers = append(closers, closer)
		}
		if lister, ok := s.(voice.BackendVoiceLister); ok {
			listers = append(listers, lister)
		}
	}
	return synths, closers, listers
}

func buildOne(kind string, endpoint config.BackendEndpoint, prof profile.Profile, cfg *config.Config) (Synthesizer, func(), error) {
	switch kind {
	case "neural", "openaudio":
		a := NewRESTAdapter(kind, endpoint.URL, prof.MaxConcurrency, cfg.AdapterTimeout, prof.HonorsSpeed, prof.NativeSampleRate, nil)
		return a, nil, nil

	case "voxcpm":
		a, err := NewSessionAdapter(kind, endpoint.URL, prof.MaxConcurrency, cfg.AdapterTimeout, nil)
		if err != nil {
			return nil, nil, err
		}
		return a, func() { a.Close() }, nil

	case "clone":
		a := NewMultipartAdapter(kind, endpoint.URL, prof.MaxConcurrency, cfg.AdapterTimeout, prof.NativeSampleRate, false)
		return a, nil, nil

	case "emotion":
		a := NewWebSocketAdapter(kind, endpoint.URL, prof.MaxConcurrency, cfg.AdapterTimeout, nil)
		return a, nil, nil

	case "cloud":
		a := NewCloudAdapter(kind, endpoint.URL, endpoint.APIKey, prof.MaxConcurrency, cfg.AdapterTimeout, prof.NativeSampleRate, nil)
		return a, nil, nil

	case "local":
		localCfg := LocalConfig{
			ModelPath:   os.Getenv("LOCAL_MODEL_PATH"),
			LexiconPath: os.Getenv("LOCAL_LEXICON_PATH"),
			TokensPath:  os.Getenv("LOCAL_TOKENS_PATH"),
			DataDirPath: os.Getenv("LOCAL_DATA_DIR"),
			NumThreads:  2,
		}
		a, err := NewLocalAdapter(localCfg, prof.MaxConcurrency)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil

	default:
		return nil, nil, errUnhandledKind(kind)
	}
}

type unhandledKindError string

func (e unhandledKindError) Error() string { return "adapter registry: unhandled backend kind " + string(e) }

func errUnhandledKind(kind string) error { return unhandledKindError(kind) }
