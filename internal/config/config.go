// Package config reads the gateway's configuration from the
// environment: a single exported Load() that fills a plain struct
// with defaults, then per-backend overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BackendEndpoint describes how to reach one configured upstream.
type BackendEndpoint struct {
	Kind   string // backend kind tag, e.g. "neural", "voxcpm", "openaudio"
	URL    string // <BACKEND>_URL
	APIKey string // <CLOUD>_API_KEY, empty for non-cloud kinds
}

// Config is the process-wide, read-only configuration snapshot
// assembled once at startup.
type Config struct {
	Host string
	Port string

	VoiceDir string

	// defaultBackend is the only Config field mutable after startup
	// (POST /v1/backends/switch); access goes through the accessors.
	mu             sync.RWMutex
	defaultBackend string

	// Backends maps backend kind -> endpoint, populated from any
	// environment variable matching "<KIND>_URL" or "<KIND>_API_KEY"
	// for the kinds this build knows about (see KnownBackendKinds).
	Backends map[string]BackendEndpoint

	// PreferencesPath is where VoicePreferences are persisted.
	PreferencesPath string

	// AdapterTimeout is the default per-adapter call timeout.
	AdapterTimeout time.Duration

	TraceLog string
}

// KnownBackendKinds lists the backend kinds this build can construct
// adapters for. New adapters are compile-time additions.
var KnownBackendKinds = []string{"neural", "voxcpm", "openaudio", "clone", "emotion", "cloud", "local"}

// Load builds a Config from the environment, applying defaults where
// variables are unset.
func Load() *Config {
	home, _ := os.UserHomeDir()

	cfg := &Config{
		Host:           getenv("UNIFIED_TTS_HOST", ""),
		Port:           getenv("UNIFIED_TTS_PORT", "8765"),
		VoiceDir:       getenv("UNIFIED_TTS_VOICE_DIR", filepath.Join(home, ".unified-tts", "voices")),
		defaultBackend: getenv("UNIFIED_TTS_DEFAULT_BACKEND", "neural"),
		Backends:       make(map[string]BackendEndpoint),
		AdapterTimeout: getenvDuration("UNIFIED_TTS_ADAPTER_TIMEOUT", 60*time.Second),
		TraceLog:       getenv("UNIFIED_TTS_TRACE_LOG", ""),
	}

	cfg.PreferencesPath = getenv("UNIFIED_TTS_PREFS_PATH", filepath.Join(home, ".unified-tts", "voice_prefs.json"))

	for _, kind := range KnownBackendKinds {
		envName := strings.ToUpper(kind)
		url := os.Getenv(envName + "_URL")
		key := os.Getenv(envName + "_API_KEY")
		if url == "" && key == "" {
			// The "local" kind has no upstream URL; its presence is
			// signaled by a model path instead (see internal/adapter's
			// LocalConfig).
			if kind == "local" && os.Getenv("LOCAL_MODEL_PATH") == "" {
				continue
			} else if kind != "local" {
				continue
			}
		}
		cfg.Backends[kind] = BackendEndpoint{Kind: kind, URL: url, APIKey: key}
	}

	return cfg
}

// DefaultBackend returns the current default backend kind.
func (c *Config) DefaultBackend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultBackend
}

// SetDefaultBackend changes the default backend kind at runtime
// (POST /v1/backends/switch).
func (c *Config) SetDefaultBackend(kind string) {
	c.mu.Lock()
	c.defaultBackend = kind
	c.mu.Unlock()
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
