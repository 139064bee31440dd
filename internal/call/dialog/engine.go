package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/call"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/stt"
)

// Nudges sent when the candidate stays silent past a turn deadline.
const (
	readyNudge  = "I'm here when you're ready. Take your time."
	answerNudge = "I'm still listening. Feel free to answer when you're ready."
)

// noResponseMarker is recorded in the transcript when the candidate never
// answered a question.
const noResponseMarker = "[no response]"

// Conn is the transport the engine speaks over. The websocket handler adapts
// a real connection; tests supply scripted fakes.
type Conn interface {
	// ReadText returns the next text frame. It honors ctx cancellation and
	// deadline; a deadline hit must surface as context.DeadlineExceeded.
	ReadText(ctx context.Context) (string, error)

	// WriteText sends one text frame.
	WriteText(ctx context.Context, data []byte) error
}

// Config tunes the engine's turn-taking deadlines.
type Config struct {
	// ReadyTimeoutBase is how long the candidate has to react to the
	// greeting before a nudge. Default 5s.
	ReadyTimeoutBase time.Duration

	// ReadyTimeoutMax caps the greeting turn once an audio upload started.
	// Default 20s.
	ReadyTimeoutMax time.Duration

	// AnswerTimeout is how long the candidate has to answer a question.
	// Default 45s.
	AnswerTimeout time.Duration

	// SilenceRetries is the number of nudges per turn before giving up.
	// Default 2; negative means no nudges.
	SilenceRetries int

	// ContinuationWindow is how long the engine waits for another text
	// fragment of the same utterance before accepting it. Default 2.2s.
	ContinuationWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadyTimeoutBase <= 0 {
		c.ReadyTimeoutBase = 5 * time.Second
	}
	if c.ReadyTimeoutMax <= 0 {
		c.ReadyTimeoutMax = 20 * time.Second
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = 45 * time.Second
	}
	if c.SilenceRetries == 0 {
		c.SilenceRetries = 2
	} else if c.SilenceRetries < 0 {
		c.SilenceRetries = 0
	}
	if c.ContinuationWindow <= 0 {
		c.ContinuationWindow = 2200 * time.Millisecond
	}
	return c
}

// Engine drives one screening interview over a connection: greeting, the
// prepared questions with silence handling and echo suppression, role
// question answers, and the goodbye. One engine serves one call; not safe
// for concurrent use.
type Engine struct {
	conn        Conn
	emma        *call.Emma
	prompt      call.Prompt
	transcriber stt.Provider
	cfg         Config

	start      time.Time
	transcript []domain.TranscriptSegment
}

// NewEngine builds an engine for one call. transcriber may be nil, in which
// case audio input yields no text and only typed input is understood.
func NewEngine(conn Conn, emma *call.Emma, prompt call.Prompt, transcriber stt.Provider, cfg Config) *Engine {
	return &Engine{
		conn:        conn,
		emma:        emma,
		prompt:      prompt,
		transcriber: transcriber,
		cfg:         cfg.withDefaults(),
		transcript:  []domain.TranscriptSegment{},
	}
}

// Run conducts the interview to completion and returns the transcript. The
// transcript is valid even when err is non-nil: a dropped connection ends
// the call with whatever was said up to that point.
func (e *Engine) Run(ctx context.Context) ([]domain.TranscriptSegment, error) {
	e.start = time.Now()
	err := e.run(ctx)
	return e.transcript, err
}

func (e *Engine) run(ctx context.Context) error {
	greeting := e.emma.Greeting()
	e.addSegment(domain.SpeakerEmma, greeting)
	if err := e.sendEmmaTurn(ctx, greeting, true); err != nil {
		return err
	}

	initial, err := e.receiveCandidateText(ctx, receiveParams{
		timeout:      e.cfg.ReadyTimeoutBase,
		adaptiveMax:  e.cfg.ReadyTimeoutMax,
		nudge:        readyNudge,
		lastEmmaText: greeting,
	})
	if err != nil {
		return err
	}
	if initial != "" {
		e.addSegment(domain.SpeakerCandidate, initial)
		if err := e.sendText(ctx, initial, string(domain.SpeakerCandidate)); err != nil {
			return err
		}
	}

	for index := 0; ; index++ {
		question, ok := e.emma.NextQuestion(index, e.prompt.Questions)
		if !ok {
			break
		}
		e.addSegment(domain.SpeakerEmma, question)
		if err := e.sendEmmaTurn(ctx, question, true); err != nil {
			return err
		}

		answer, err := e.receiveCandidateText(ctx, receiveParams{
			timeout:      e.cfg.AnswerTimeout,
			nudge:        answerNudge,
			lastEmmaText: question,
		})
		if err != nil {
			return err
		}
		if answer == "" {
			// Stop advancing so the remaining questions are not spilled at
			// an absent candidate.
			e.addSegment(domain.SpeakerCandidate, noResponseMarker)
			break
		}
		e.addSegment(domain.SpeakerCandidate, answer)
		if err := e.sendText(ctx, answer, string(domain.SpeakerCandidate)); err != nil {
			return err
		}

		if IsRoleQuestion(answer) {
			roleAnswer := e.emma.AnswerRoleQuestion(ctx, answer, e.prompt.RoleContext)
			e.addSegment(domain.SpeakerEmma, roleAnswer)
			if err := e.sendEmmaTurn(ctx, roleAnswer, true); err != nil {
				return err
			}
		}
	}

	goodbye := e.emma.Goodbye()
	e.addSegment(domain.SpeakerEmma, goodbye)
	if err := e.sendEmmaTurn(ctx, goodbye, false); err != nil {
		return err
	}
	return e.sendControl(ctx, ControlCallEnded)
}

// addSegment appends one sanitized utterance with a monotonic timestamp.
// Empty text after sanitization is dropped.
func (e *Engine) addSegment(speaker domain.Speaker, text string) {
	cleaned := Sanitize(text)
	if cleaned == "" {
		return
	}
	e.transcript = append(e.transcript, domain.TranscriptSegment{
		Speaker:   speaker,
		Text:      cleaned,
		Timestamp: time.Since(e.start).Seconds(),
	})
}

// audioSession accumulates one in-flight audio upload.
type audioSession struct {
	codec        string
	sampleRateHz int
	chunks       [][]byte
}

func newAudioSession(codec string, sampleRateHz int) *audioSession {
	if codec == "" {
		codec = defaultCodec
	}
	if sampleRateHz <= 0 {
		sampleRateHz = defaultSampleRateHz
	}
	return &audioSession{codec: codec, sampleRateHz: sampleRateHz}
}

type receiveParams struct {
	timeout      time.Duration
	adaptiveMax  time.Duration // zero means same as timeout
	nudge        string
	lastEmmaText string
}

// receiveCandidateText waits for one complete candidate utterance: typed
// text (merged across the continuation window), or a finished audio upload
// run through the transcriber. Returns "" when the candidate stayed silent
// through all nudges. A non-nil error means the connection is unusable.
func (e *Engine) receiveCandidateText(ctx context.Context, p receiveParams) (string, error) {
	lastEmmaText := p.lastEmmaText
	adaptiveMax := p.adaptiveMax
	if adaptiveMax < p.timeout {
		adaptiveMax = p.timeout
	}

	for attempt := 0; attempt <= e.cfg.SilenceRetries; attempt++ {
		attemptStart := time.Now()
		maxDeadline := attemptStart.Add(adaptiveMax)
		deadline := attemptStart.Add(p.timeout)

		var session *audioSession
		pendingText := ""
		var pendingDeadline time.Time

		for {
			active := deadline
			if !pendingDeadline.IsZero() {
				active = pendingDeadline
			}
			remaining := time.Until(active)
			if remaining <= 0 {
				if pendingText != "" {
					return pendingText, nil
				}
				break
			}

			raw, err := e.readWithTimeout(ctx, remaining)
			if err != nil {
				if errors.Is(err, errReadTimeout) {
					if pendingText != "" {
						return pendingText, nil
					}
					break
				}
				return "", err
			}

			msg, isObject := parseClientMessage(raw)
			if !isObject {
				// Bare text frames are treated as typed utterances.
				msg = clientMessage{Type: "text", Text: raw}
			}

			switch msg.Type {
			case "text":
				text := Sanitize(msg.Text)
				if text == "" {
					continue
				}
				if IsEcho(text, lastEmmaText) {
					slog.Info("ignoring likely echo of interviewer speech")
					continue
				}
				pendingText = MergeFragments(pendingText, text)
				pendingDeadline = time.Now().Add(e.cfg.ContinuationWindow)

			case "audio_start":
				session = newAudioSession(msg.Codec, msg.SampleRateHz)
				deadline = maxDeadline

			case "audio_chunk":
				if session == nil {
					session = newAudioSession("", 0)
				}
				if chunk := decodeAudioChunk(msg.DataB64); len(chunk) > 0 {
					session.chunks = append(session.chunks, chunk)
				}
				deadline = maxDeadline
				if msg.IsFinal {
					text := e.finalizeAudio(ctx, session)
					session = nil
					if text != "" && !IsEcho(text, lastEmmaText) {
						return text, nil
					}
				}

			case "audio_end":
				if session == nil {
					continue
				}
				text := e.finalizeAudio(ctx, session)
				session = nil
				if text != "" && !IsEcho(text, lastEmmaText) {
					return text, nil
				}
			}
		}

		if attempt >= e.cfg.SilenceRetries {
			return "", nil
		}

		e.addSegment(domain.SpeakerEmma, p.nudge)
		if err := e.sendEmmaTurn(ctx, p.nudge, true); err != nil {
			return "", err
		}
		lastEmmaText = p.nudge
	}
	return "", nil
}

// errReadTimeout marks a read that hit the turn deadline rather than a
// broken connection.
var errReadTimeout = errors.New("dialog: read deadline reached")

func (e *Engine) readWithTimeout(ctx context.Context, timeout time.Duration) (string, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := e.conn.ReadText(readCtx)
	if err != nil {
		if ctx.Err() == nil && readCtx.Err() != nil {
			return "", errReadTimeout
		}
		return "", fmt.Errorf("dialog: read: %w", err)
	}
	return raw, nil
}

// finalizeAudio transcribes an accumulated audio session. Transcriber
// failures and non-speech results degrade to "" so the turn keeps waiting.
func (e *Engine) finalizeAudio(ctx context.Context, s *audioSession) string {
	if e.transcriber == nil || len(s.chunks) == 0 {
		return ""
	}
	out, err := e.transcriber.Transcribe(ctx, s.chunks, s.codec, s.sampleRateHz)
	if err != nil {
		slog.Warn("audio transcription failed", "error", err)
		return ""
	}
	cleaned := Sanitize(out)
	if !LooksLikeHumanText(cleaned) {
		return ""
	}
	return cleaned
}

// ── outbound frames ──────────────────────────────────────────────────────────

func (e *Engine) sendControl(ctx context.Context, event string) error {
	return e.writeJSON(ctx, controlMessage{Type: "control", Event: event})
}

func (e *Engine) sendText(ctx context.Context, text, speaker string) error {
	return e.writeJSON(ctx, textMessage{Type: "text", Text: text, Speaker: speaker})
}

// sendEmmaTurn frames one interviewer utterance: an emma_speaking control,
// the text, and a trailing listening control unless the call is ending.
func (e *Engine) sendEmmaTurn(ctx context.Context, text string, endWithListening bool) error {
	if err := e.sendControl(ctx, ControlEmmaSpeaking); err != nil {
		return err
	}
	if err := e.sendText(ctx, text, string(domain.SpeakerEmma)); err != nil {
		return err
	}
	if !endWithListening {
		return nil
	}
	return e.sendControl(ctx, ControlListening)
}

func (e *Engine) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dialog: marshal frame: %w", err)
	}
	if err := e.conn.WriteText(ctx, data); err != nil {
		return fmt.Errorf("dialog: write: %w", err)
	}
	return nil
}
