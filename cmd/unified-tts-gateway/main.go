// Command unified-tts-gateway wires configuration, managers,
// services, and the HTTP server together in startup order.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/config"
	"github.com/agentplexus/unified-tts-gateway/internal/health"
	"github.com/agentplexus/unified-tts-gateway/internal/httpapi"
	"github.com/agentplexus/unified-tts-gateway/internal/logging"
	"github.com/agentplexus/unified-tts-gateway/internal/pipeline"
	"github.com/agentplexus/unified-tts-gateway/internal/prefs"
	"github.com/agentplexus/unified-tts-gateway/internal/router"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()

	logFile := logging.Setup(cfg.TraceLog)
	if logFile != nil {
		defer logFile.Close()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC: %v", r)
			panic(r)
		}
	}()

	if err := os.MkdirAll(cfg.VoiceDir, 0755); err != nil {
		log.Fatal("failed to create voice directory:", err)
	}

	// 2. Initialize managers: preferences, adapters, health, voice registry
	prefStore, err := prefs.Load(cfg.PreferencesPath)
	if err != nil {
		log.Fatal("failed to load voice preferences:", err)
	}

	synths, closers, listers := adapter.BuildAll(cfg)
	defer func() {
		for _, closer := range closers {
			closer()
		}
	}()

	kinds := make([]string, len(synths))
	routerAdapters := make([]router.Adapter, len(synths))
	for i, s := range synths {
		kinds[i] = s.Kind()
		routerAdapters[i] = s
	}
	tracker := health.NewTracker(kinds)
	go probeDownBackends(tracker, cfg)

	registry := voice.New(cfg.VoiceDir, listers)
	registry.ApplyPreferences(prefStore.All())

	// 3. Initialize services: router, pipeline
	rtr := router.New(registry, tracker, routerAdapters, prefStore.Get)
	pl := pipeline.New(registry, rtr, tracker, synths, cfg.DefaultBackend)

	// 4. Initialize HTTP server
	server := httpapi.New(cfg, pl, registry, tracker, prefStore, listers)

	// 5. Start serving
	addr := cfg.Host + ":" + cfg.Port
	log.Printf("unified-tts-gateway listening on %s (default backend %q, %d adapters configured)", addr, cfg.DefaultBackend(), len(synths))
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

// probeDownBackends periodically re-checks backends the tracker has
// marked down, restoring them to up on a successful HEAD without
// waiting for the next synthesis attempt to find out.
func probeDownBackends(tracker *health.Tracker, cfg *config.Config) {
	client := &http.Client{Timeout: 5 * time.Second}
	for range time.Tick(30 * time.Second) {
		for kind, endpoint := range cfg.Backends {
			if endpoint.URL == "" || tracker.Get(kind).Available != health.Down {
				continue
			}
			resp, err := client.Head(endpoint.URL + "/health")
			up := err == nil && resp.StatusCode < http.StatusInternalServerError
			if resp != nil {
				resp.Body.Close()
			}
			tracker.RecordProbe(kind, up)
			if up {
				log.Printf("health probe: backend %s is back up", kind)
			}
		}
	}
}
