package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/recognition"
	"github.com/harunnryd/livesub/pkg/redact"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const chunkSize = 3200

type Config struct {
	APIKey         string
	Model          string
	Encoding       string
	SampleRate     int
	Interim        bool
	UtteranceEndMS int
	// Audio is raw PCM in Encoding at SampleRate. It is shared across
	// sessions and read by a single pump goroutine.
	Audio io.Reader
}

// Engine streams audio to Deepgram and reports transcripts as recognition
// events.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	pump   sync.Once
	chunks chan []byte

	mu      sync.Mutex
	session *session
}

type session struct {
	dg         *client.WSCallback
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	done       chan struct{}
}

func New(cfg Config) *Engine {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_recognition"),
		chunks: make(chan []byte, 64),
	}
}

func (e *Engine) Name() string { return "deepgram_streaming" }

func (e *Engine) Start(ctx context.Context, opts recognition.Options, emit func(recognition.Event)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.cfg.APIKey == "" || e.cfg.Audio == nil {
		return recognition.ErrEngineUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return fmt.Errorf("deepgram session already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	pipeReader, pipeWriter := io.Pipe()

	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          e.cfg.Model,
		Language:       opts.Language,
		Encoding:       e.cfg.Encoding,
		SampleRate:     e.cfg.SampleRate,
		InterimResults: e.cfg.Interim,
		SmartFormat:    true,
	}
	if e.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", e.cfg.UtteranceEndMS)
	}

	e.logger.Info("initializing deepgram connection",
		slog.String("model", e.cfg.Model),
		slog.String("language", opts.Language),
		slog.Int("sample_rate", e.cfg.SampleRate))

	cb := &callback{emit: emit, logger: e.logger}
	dg, err := client.NewWSUsingCallback(runCtx, e.cfg.APIKey, &interfaces.ClientOptions{EnableKeepAlive: true}, transcriptOptions, cb)
	if err != nil {
		cancel()
		e.logger.Error("deepgram_client_create_error", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonRecognitionUnavailable)
	}
	if connected := dg.Connect(); !connected {
		cancel()
		e.logger.Error("deepgram_connect_failed")
		return errorsx.Newf(errorsx.ReasonRecognitionUnavailable, "deepgram connection failed")
	}

	s := &session{dg: dg, cancel: cancel, pipeReader: pipeReader, pipeWriter: pipeWriter, done: make(chan struct{})}
	e.session = s
	e.pump.Do(func() { go e.readAudio() })

	go func() {
		if err := dg.Stream(pipeReader); err != nil && runCtx.Err() == nil {
			e.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
			emit(recognition.Event{Type: recognition.EventError, Code: recognition.CodeNetwork})
		}
	}()
	go e.feed(runCtx, s)

	e.logger.Info("deepgram_connected", slog.String("model", e.cfg.Model))
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()
	if s == nil {
		return nil
	}
	e.logger.Info("closing deepgram connection")
	s.cancel()
	_ = s.pipeReader.Close()
	<-s.done
	_ = s.pipeWriter.Close()
	s.dg.Stop()
	return nil
}

// readAudio pumps the shared audio source into chunks for the active session.
func (e *Engine) readAudio() {
	defer close(e.chunks)
	for {
		buf := make([]byte, chunkSize)
		n, err := e.cfg.Audio.Read(buf)
		if n > 0 {
			e.chunks <- buf[:n]
		}
		if err != nil {
			if err != io.EOF {
				e.logger.Warn("deepgram_audio_read_error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (e *Engine) feed(ctx context.Context, s *session) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-e.chunks:
			if !ok {
				_ = s.pipeWriter.Close()
				return
			}
			if _, err := s.pipeWriter.Write(chunk); err != nil {
				return
			}
		}
	}
}

type callback struct {
	emit       func(recognition.Event)
	logger     *slog.Logger
	metaLogged bool
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.logger.Info("deepgram_connection_opened")
	c.emit(recognition.Event{Type: recognition.EventStart})
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	text := mr.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal
	c.logger.Debug("transcript_received",
		redact.Attr("transcript", text),
		slog.Bool("is_final", isFinal))
	c.emit(recognition.Event{
		Type:    recognition.EventResult,
		Results: []recognition.Hypothesis{{Transcript: text, IsFinal: isFinal}},
	})
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.metaLogged {
		c.metaLogged = true
		c.logger.Info("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.logger.Debug("utterance_end_event")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.logger.Info("deepgram_connection_closed")
	c.emit(recognition.Event{Type: recognition.EventEnd})
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	c.emit(recognition.Event{Type: recognition.EventError, Code: recognition.CodeNetwork})
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.logger.Debug("deepgram_unhandled_event", slog.Int("bytes", len(byData)))
	return nil
}

var _ recognition.Engine = (*Engine)(nil)
var _ msginterfaces.LiveMessageCallback = (*callback)(nil)
