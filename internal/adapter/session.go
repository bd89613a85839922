package adapter

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// sessionJSONCodec lets a plain request/response struct ride a gRPC
// stream without a generated .proto.
type sessionJSONCodec struct{}

func (sessionJSONCodec) Name() string { return "unified-tts-json" }
func (sessionJSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
func (sessionJSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(sessionJSONCodec{})
}

var sessionStreamDesc = &grpc.StreamDesc{
	StreamName:    "Synthesize",
	ServerStreams: true,
	ClientStreams: true,
}

type sessionRequest struct {
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Format    string  `json:"format"`
	Speed     float64 `json:"speed,omitempty"`
}

type sessionResponse struct {
	Event      string `json:"event"` // "audio" | "done" | "error"
	Audio      []byte `json:"audio,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SessionAdapter speaks the "session/channel call" upstream pattern:
// it opens a session, posts synthesis params, then reads back the
// result as a stream of frames. Used for the "voxcpm" backend kind.
type SessionAdapter struct {
	kind    string
	conn    *grpc.ClientConn
	sem     semaphore
	timeout time.Duration
	voices  voiceSet
}

// NewSessionAdapter dials addr once at construction. The connection
// is long-lived and lazy, so a dead upstream surfaces on the first
// call rather than here.
func NewSessionAdapter(kind, addr string, maxConcurrency int, timeout time.Duration, voices map[string]bool) (*SessionAdapter, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(sessionJSONCodec{}.Name())),
	)
	if err != nil {
		return nil, err
	}
	return &SessionAdapter{
		kind:    kind,
		conn:    conn,
		sem:     newSemaphore(maxConcurrency),
		timeout: timeout,
		voices:  voices,
	}, nil
}

func (a *SessionAdapter) Kind() string                   { return a.kind }
func (a *SessionAdapter) SupportsVoice(name string) bool { return a.voices.supports(name) }
func (a *SessionAdapter) Close() error                   { return a.conn.Close() }

func (a *SessionAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stream, err := a.conn.NewStream(callCtx, sessionStreamDesc, "/unifiedtts.Session/Synthesize")
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	req := &sessionRequest{
		SessionID: uuid.NewString(),
		Text:      text,
		Voice:     voice.Name,
		Format:    string(formatHint),
		Speed:     speed,
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	var audio []byte
	sampleRate := 0
	for {
		var resp sessionResponse
		err := stream.RecvMsg(&resp)
		if err == io.EOF {
			break
		}
		if err != nil {
			if callCtx.Err() != nil {
				return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
			}
			return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
		}

		switch resp.Event {
		case "audio":
			audio = append(audio, resp.Audio...)
			if resp.SampleRate != 0 {
				sampleRate = resp.SampleRate
			}
		case "error":
			return nil, ttserr.New(ttserr.KindBackendDefinitive, "%s: session reported error: %s", a.kind, resp.Message)
		case "done":
			if resp.SampleRate != 0 {
				sampleRate = resp.SampleRate
			}
		}
	}

	if len(audio) == 0 {
		return nil, ttserr.New(ttserr.KindBackendTransient, "%s: session produced no audio", a.kind)
	}

	return &Output{Format: FormatWAV, Audio: audio, SampleRate: sampleRate}, nil
}
