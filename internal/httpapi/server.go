// Package httpapi exposes the gateway's OpenAI-compatible HTTP
// surface: a Server struct holding every process dependency, routes
// registered with HandleFunc on its own http.ServeMux, and hand-parsed path
// suffixes for the voice-prefs resource.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/config"
	"github.com/agentplexus/unified-tts-gateway/internal/health"
	"github.com/agentplexus/unified-tts-gateway/internal/logging"
	"github.com/agentplexus/unified-tts-gateway/internal/pipeline"
	"github.com/agentplexus/unified-tts-gateway/internal/prefs"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

// Server holds every dependency a request handler needs.
type Server struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Registry *voice.Registry
	Health   *health.Tracker
	Prefs    *prefs.Store
	Listers  []voice.BackendVoiceLister

	mux *http.ServeMux
}

// New builds a Server and registers its routes.
func New(cfg *config.Config, pl *pipeline.Pipeline, reg *voice.Registry, tracker *health.Tracker, prefStore *prefs.Store, listers []voice.BackendVoiceLister) *Server {
	s := &Server{Config: cfg, Pipeline: pl, Registry: reg, Health: tracker, Prefs: prefStore, Listers: listers}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// ServeHTTP lets Server itself be passed to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/v1/audio/speech", s.handleSpeech)
	s.mux.HandleFunc("/v1/voices", s.handleVoices)
	s.mux.HandleFunc("/v1/voices/reload", s.handleVoicesReload)
	s.mux.HandleFunc("/v1/models", s.handleModels)
	s.mux.HandleFunc("/v1/backends", s.handleBackends)
	s.mux.HandleFunc("/v1/backends/switch", s.handleBackendSwitch)
	s.mux.HandleFunc("/v1/voice-prefs", s.handleVoicePrefsList)
	s.mux.HandleFunc("/v1/voice-prefs/", s.handleVoicePrefsSet)
	s.mux.HandleFunc("/health", s.handleHealth)
}

type speechRequest struct {
	Model   string  `json:"model"`
	Input   string  `json:"input"`
	Voice   string  `json:"voice"`
	Format  string  `json:"response_format"`
	Speed   float64 `json:"speed"`
	Backend string  `json:"backend"`
}

// handleSpeech serves POST /v1/audio/speech, the OpenAI-compatible
// synthesis endpoint. It never logs req.Input directly, only its
// internal/logging.TextSummary.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}

	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ttserr.Wrap(ttserr.KindInvalidRequest, "", err))
		return
	}

	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	if speed < 0.25 || speed > 4.0 {
		writeError(w, http.StatusBadRequest, ttserr.New(ttserr.KindInvalidRequest, "speed %.2f out of range [0.25, 4.0]", speed))
		return
	}

	format := adapter.FormatHint(req.Format)
	if format == "" {
		format = adapter.FormatMP3
	}
	switch format {
	case adapter.FormatMP3, adapter.FormatWAV, adapter.FormatFLAC, adapter.FormatOpus:
	default:
		writeError(w, http.StatusBadRequest, ttserr.New(ttserr.KindInvalidRequest, "unknown response_format %q", req.Format))
		return
	}

	log.Printf("speech request: voice=%s backend=%q format=%q speed=%.2f %s",
		req.Voice, req.Backend, format, speed, logging.TextSummary(req.Input))

	result, err := s.Pipeline.Synthesize(r.Context(), pipeline.Request{
		Text:    req.Input,
		Voice:   req.Voice,
		Backend: req.Backend,
		Format:  format,
		Speed:   speed,
	})
	if err != nil {
		writeError(w, statusForKind(ttserr.KindOf(err)), err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(result.Format))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// handleVoices serves GET /v1/voices, the merged voice catalog.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": s.Registry.All()})
}

// handleVoicesReload serves POST /v1/voices/reload, letting an
// operator re-scan the clone directory and re-query backend voice
// lists without a restart.
func (s *Server) handleVoicesReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	s.Registry.Reload(s.Listers)
	writeJSON(w, http.StatusOK, map[string]any{"voices": s.Registry.All()})
}

// handleModels serves GET /v1/models. Clients send "tts-1"; the model
// field carries no meaning here, so the list is static OpenAI-compat
// boilerplate.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	data := []map[string]string{
		{"id": "tts-1", "object": "model", "owned_by": "unified-tts"},
		{"id": "tts-1-hd", "object": "model", "owned_by": "unified-tts"},
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

// handleBackends serves GET /v1/backends: per-backend availability
// plus consecutive_failures/last_probe_time so operators can see why
// a backend was demoted.
func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	snapshot := s.Health.Snapshot()
	out := make(map[string]map[string]any, len(snapshot))
	for kind, state := range snapshot {
		out[kind] = map[string]any{
			"availability":         state.Available,
			"consecutive_failures": state.ConsecutiveFailures,
			"last_probe_time":      state.LastProbeTime,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backends": out, "default": s.Config.DefaultBackend()})
}

type backendSwitchRequest struct {
	Backend string `json:"backend"`
}

// handleBackendSwitch serves POST /v1/backends/switch, changing the
// process-wide default backend at runtime.
func (s *Server) handleBackendSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	var req backendSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ttserr.Wrap(ttserr.KindInvalidRequest, "", err))
		return
	}
	if _, ok := s.Config.Backends[req.Backend]; !ok {
		writeError(w, http.StatusBadRequest, ttserr.New(ttserr.KindInvalidRequest, "backend %q is not configured", req.Backend))
		return
	}
	s.Config.SetDefaultBackend(req.Backend)
	log.Printf("default backend switched to %q", req.Backend)
	writeJSON(w, http.StatusOK, map[string]any{"default": req.Backend})
}

// handleVoicePrefsList serves GET /v1/voice-prefs.
func (s *Server) handleVoicePrefsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": s.Prefs.All()})
}

type voicePrefRequest struct {
	Backend string `json:"backend"`
}

// handleVoicePrefsSet serves POST /v1/voice-prefs/{voice}, with the
// voice name hand-parsed from the path suffix.
func (s *Server) handleVoicePrefsSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ttserr.New(ttserr.KindInvalidRequest, "method not allowed"))
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/voice-prefs/")
	if name == "" {
		writeError(w, http.StatusBadRequest, ttserr.New(ttserr.KindInvalidRequest, "voice name is required"))
		return
	}
	var req voicePrefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ttserr.Wrap(ttserr.KindInvalidRequest, "", err))
		return
	}
	if err := s.Prefs.Set(name, req.Backend); err != nil {
		writeError(w, http.StatusInternalServerError, ttserr.Wrap(ttserr.KindInvalidRequest, "", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voice": name, "backend": req.Backend})
}

// handleHealth serves GET /health, a liveness check independent of
// any individual backend's health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "backend": s.Config.DefaultBackend()})
}

func contentTypeFor(format adapter.FormatHint) string {
	switch format {
	case adapter.FormatMP3:
		return "audio/mpeg"
	case adapter.FormatFLAC:
		return "audio/flac"
	case adapter.FormatOpus:
		return "audio/opus"
	default:
		return "audio/wav"
	}
}

func statusForKind(kind ttserr.Kind) int {
	switch kind {
	case ttserr.KindInvalidRequest:
		return http.StatusBadRequest
	case ttserr.KindChunkTooLarge:
		return http.StatusRequestEntityTooLarge
	case ttserr.KindVoiceUnknown:
		return http.StatusNotFound
	case ttserr.KindStitchFailure, ttserr.KindEncodeFailure:
		return http.StatusInternalServerError
	case ttserr.KindCancelled:
		return 499
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error struct {
		Kind    ttserr.Kind `json:"kind"`
		Message string      `json:"message"`
	} `json:"error"`
}

// writeError renders err as a {"error": {"kind", "message"}} body.
// The error's Message never carries request input.
func writeError(w http.ResponseWriter, status int, err error) {
	var body errorBody
	body.Error.Kind = ttserr.KindOf(err)
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}
