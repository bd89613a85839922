package adapter

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// wsConfigFrame opens an emotion-synthesis session.
type wsConfigFrame struct {
	Event  string  `msgpack:"event"`
	Voice  string  `msgpack:"voice"`
	Format string  `msgpack:"format"`
	Speed  float64 `msgpack:"speed,omitempty"`
}

type wsTextFrame struct {
	Event string `msgpack:"event"`
	Text  string `msgpack:"text,omitempty"`
}

type wsResponseFrame struct {
	Event      string `msgpack:"event"` // "audio" | "finish"
	Audio      []byte `msgpack:"audio,omitempty"`
	SampleRate int    `msgpack:"sample_rate,omitempty"`
	Reason     string `msgpack:"reason,omitempty"`
}

// WebSocketAdapter speaks the WebSocket-framed upstream pattern:
// connect, send a msgpack config frame, send the text frame, then
// read audio frames until a "finish" event. Used for the "emotion"
// backend kind.
type WebSocketAdapter struct {
	kind    string
	url     string
	dialer  websocket.Dialer
	sem     semaphore
	timeout time.Duration
	voices  voiceSet
}

func NewWebSocketAdapter(kind, url string, maxConcurrency int, timeout time.Duration, voices map[string]bool) *WebSocketAdapter {
	return &WebSocketAdapter{
		kind:    kind,
		url:     url,
		dialer:  websocket.Dialer{HandshakeTimeout: timeout},
		sem:     newSemaphore(maxConcurrency),
		timeout: timeout,
		voices:  voices,
	}
}

func (a *WebSocketAdapter) Kind() string                   { return a.kind }
func (a *WebSocketAdapter) SupportsVoice(name string) bool { return a.voices.supports(name) }

func (a *WebSocketAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	conn, _, err := a.dialer.DialContext(callCtx, a.url, http.Header{})
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}
	defer conn.Close()

	go func() {
		<-callCtx.Done()
		conn.Close()
	}()

	cfg := wsConfigFrame{Event: "start", Voice: voice.Name, Format: string(formatHint), Speed: speed}
	if data, err := msgpack.Marshal(cfg); err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	} else if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	txt := wsTextFrame{Event: "text", Text: text}
	data, err := msgpack.Marshal(txt)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	stop := wsTextFrame{Event: "stop"}
	if data, err := msgpack.Marshal(stop); err == nil {
		_ = conn.WriteMessage(websocket.BinaryMessage, data)
	}

	var audio []byte
	sampleRate := 0

readLoop:
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				break readLoop
			}
			if callCtx.Err() != nil {
				return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
			}
			return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
		}

		var frame wsResponseFrame
		if err := msgpack.Unmarshal(msg, &frame); err != nil {
			return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
		}

		switch frame.Event {
		case "audio":
			audio = append(audio, frame.Audio...)
			if frame.SampleRate != 0 {
				sampleRate = frame.SampleRate
			}
		case "finish":
			if frame.Reason == "error" {
				return nil, ttserr.New(ttserr.KindBackendDefinitive, "%s: emotion backend reported error", a.kind)
			}
			break readLoop
		}
	}

	if len(audio) == 0 {
		return nil, ttserr.New(ttserr.KindBackendTransient, "%s: no audio frames received", a.kind)
	}

	return &Output{Format: FormatWAV, Audio: audio, SampleRate: sampleRate}, nil
}
