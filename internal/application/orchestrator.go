package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
)

type Options struct {
	AssistantName string
	Welcome       string
	FallbackReply string
	ApologyReply  string

	SendTimeout       time.Duration
	TranscribeTimeout time.Duration
	CreateTimeout     time.Duration
	LocateTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		AssistantName:     "Maswadh AI",
		FallbackReply:     "عفواً، ما فهمت عليك. ممكن تعيد؟",
		ApologyReply:      "صار في مشكلة صغيرة بالاتصال، جرب كمان مرة لو سمحت.",
		SendTimeout:       60 * time.Second,
		TranscribeTimeout: 30 * time.Second,
		CreateTimeout:     15 * time.Second,
		LocateTimeout:     10 * time.Second,
	}
}

// Orchestrator sequences text and voice input through transcription and the
// chat session. A new user action is accepted only while the state is Idle,
// so at most one remote call is in flight.
type Orchestrator struct {
	capture  AudioCapture
	stt      Transcriber
	notifier Notifier
	alerter  Alerter
	metrics  Metrics
	opts     Options
	logger   *slog.Logger
	log      *MessageLog
	now      func() time.Time

	mu      sync.Mutex
	state   domain.ActivityState
	seq     uint64
	session ChatSession
	hooks   []func(domain.ActivityState)

	// publishMu orders delivery to metrics and hooks; delivered is the seq of
	// the last transition handed to them.
	publishMu sync.Mutex
	delivered uint64
}

// transition is a state change waiting to be published.
type transition struct {
	state domain.ActivityState
	seq   uint64
	hooks []func(domain.ActivityState)
}

func NewOrchestrator(
	capture AudioCapture,
	stt Transcriber,
	notifier Notifier,
	alerter Alerter,
	metrics Metrics,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		capture:  capture,
		stt:      stt,
		notifier: notifier,
		alerter:  alerter,
		metrics:  metrics,
		opts:     withDefaults(opts),
		logger:   logger,
		log:      NewMessageLog(),
		now:      time.Now,
		state:    domain.StateIdle,
	}
	if o.opts.Welcome != "" {
		o.log.Append(o.newMessage(domain.RoleAssistant, o.opts.Welcome))
	}
	return o
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.AssistantName == "" {
		opts.AssistantName = def.AssistantName
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = def.FallbackReply
	}
	if opts.ApologyReply == "" {
		opts.ApologyReply = def.ApologyReply
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}
	if opts.TranscribeTimeout <= 0 {
		opts.TranscribeTimeout = def.TranscribeTimeout
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = def.CreateTimeout
	}
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = def.LocateTimeout
	}
	return opts
}

// Initialize resolves the location, if a locator is given, and creates the
// chat session. A location failure only disables location grounding.
func (o *Orchestrator) Initialize(ctx context.Context, locator Locator, factory SessionFactory) error {
	var location *domain.LocationCoords
	if locator != nil {
		lctx, cancel := context.WithTimeout(ctx, o.opts.LocateTimeout)
		coords, err := locator.Locate(lctx)
		cancel()
		if err != nil {
			o.logger.Warn("geolocation unavailable, initializing without location", "error", err)
		} else {
			location = &coords
			o.logger.Info("geolocation resolved", "location", coords.String())
		}
	}

	cctx, cancel := context.WithTimeout(ctx, o.opts.CreateTimeout)
	defer cancel()

	session, err := factory.Create(cctx, location)
	if err != nil {
		return fmt.Errorf("creating chat session: %w", err)
	}

	return o.AttachSession(session)
}

// AttachSession installs the conversation's chat session. It may be called
// once.
func (o *Orchestrator) AttachSession(session ChatSession) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		return domain.ErrSessionAlreadyAttached
	}
	o.session = session
	o.logger.Info("chat session ready")
	return nil
}

func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil
}

func (o *Orchestrator) State() domain.ActivityState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Log() MessageReader {
	return readOnly{log: o.log}
}

func (o *Orchestrator) Messages() []domain.Message {
	return o.log.Messages()
}

func (o *Orchestrator) AssistantName() string {
	return o.opts.AssistantName
}

// OnStateChange registers fn to be called after state transitions. Calls are
// serialized and never go back to an older state; fn must not start actions
// on the orchestrator.
func (o *Orchestrator) OnStateChange(fn func(domain.ActivityState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, fn)
}

// SubmitText sends typed text. It returns a rejection error when the input is
// blank, the session is not ready, or another action is in progress; in those
// cases nothing changes. Backend failures are reported in the log.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	_, err := o.Submit(ctx, text)
	return err
}

// Submit is SubmitText returning the log index of the user message, so the
// caller can read back exactly the entries its exchange appended.
func (o *Orchestrator) Submit(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, domain.ErrEmptyInput
	}

	o.mu.Lock()
	if err := o.acceptLocked(); err != nil {
		o.mu.Unlock()
		return 0, err
	}
	session := o.session
	index := o.log.Len()
	o.log.Append(o.newMessage(domain.RoleUser, text))
	t := o.transitionLocked(domain.StateThinking)
	o.mu.Unlock()
	o.publish(t)

	o.exchange(ctx, session, text)
	return index, nil
}

// StartRecording acquires the microphone. A device failure returns the state
// to Idle and surfaces a notice.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	if err := o.acceptLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	t := o.transitionLocked(domain.StateRecording)
	o.mu.Unlock()
	o.publish(t)

	if err := o.capture.Start(ctx); err != nil {
		o.logger.Warn("starting audio capture", "source", o.capture.Name(), "error", err)
		o.settle(nil)
		o.notify(ctx, domain.NoticeMicrophoneUnavailable)
		return nil
	}

	o.logger.Debug("recording started", "source", o.capture.Name())
	return nil
}

// StopRecording finalizes the recording, transcribes it and, when something
// was understood, sends the transcript as if typed.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StateRecording {
		o.mu.Unlock()
		return domain.ErrNotRecording
	}
	t := o.transitionLocked(domain.StateTranscribing)
	session := o.session
	o.mu.Unlock()
	o.publish(t)

	ctx = context.WithoutCancel(ctx)

	audio, err := o.capture.Stop(ctx)
	if err != nil {
		o.logger.Error("finalizing recording", "source", o.capture.Name(), "error", err)
		o.settle(nil)
		o.notify(ctx, domain.NoticeTranscriptionError)
		return nil
	}
	if audio.Empty() {
		o.logger.Info("empty recording")
		o.settle(nil)
		o.notify(ctx, domain.NoticeNothingUnderstood)
		return nil
	}

	o.logger.Info("recording captured", "bytes", audio.Size, "mime_type", audio.MimeType)

	text, err := o.transcribe(ctx, audio)
	if err != nil {
		o.logger.Error("transcribing", "error", err)
		o.raiseAlert(ctx, fmt.Sprintf("transcription failed: %v", err))
		o.settle(nil)
		o.notify(ctx, domain.NoticeTranscriptionError)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		o.logger.Info("transcript empty")
		o.settle(nil)
		o.notify(ctx, domain.NoticeNothingUnderstood)
		return nil
	}

	o.logger.Info("transcribed", "text", text)

	msg := o.newMessage(domain.RoleUser, text)
	msg.FromVoice = true

	o.mu.Lock()
	o.log.Append(msg)
	t = o.transitionLocked(domain.StateThinking)
	o.mu.Unlock()
	o.publish(t)

	o.exchange(ctx, session, text)
	return nil
}

// acceptLocked reports whether a new user action may start. o.mu must be held.
func (o *Orchestrator) acceptLocked() error {
	if o.session == nil {
		return domain.ErrSessionNotReady
	}
	if o.state != domain.StateIdle {
		return domain.ErrBusy
	}
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio domain.EncodedAudio) (string, error) {
	start := o.now()
	tctx, cancel := context.WithTimeout(ctx, o.opts.TranscribeTimeout)
	defer cancel()

	text, err := o.stt.Transcribe(tctx, audio)
	took := o.now().Sub(start)
	switch {
	case err != nil:
		o.metrics.ObserveTranscription(OutcomeFailed, took)
		if !errors.Is(err, domain.ErrTranscriptionFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
		}
		return "", err
	case strings.TrimSpace(text) == "":
		o.metrics.ObserveTranscription(OutcomeEmpty, took)
	default:
		o.metrics.ObserveTranscription(OutcomeOK, took)
	}
	return text, nil
}

// exchange sends text and appends the assistant reply, or the apology when the
// send fails. The state is Idle afterwards.
func (o *Orchestrator) exchange(ctx context.Context, session ChatSession, text string) {
	ctx = context.WithoutCancel(ctx)
	start := o.now()

	sctx, cancel := context.WithTimeout(ctx, o.opts.SendTimeout)
	resp, err := session.Send(sctx, text)
	cancel()
	took := o.now().Sub(start)

	if err != nil {
		o.logger.Error("sending message", "error", err, "took", took)
		o.metrics.ObserveExchange(OutcomeFailed, took)
		o.raiseAlert(ctx, fmt.Sprintf("chat send failed: %v", err))
		apology := o.newMessage(domain.RoleAssistant, o.opts.ApologyReply)
		o.settle(&apology)
		return
	}

	reply := grounding.ReplyFrom(resp, o.opts.FallbackReply)
	o.metrics.ObserveExchange(OutcomeOK, took)
	o.logger.Info("reply received", "sources", len(reply.GroundingChunks), "took", took)

	msg := o.newMessage(domain.RoleAssistant, reply.Text)
	msg.GroundingChunks = reply.GroundingChunks
	o.settle(&msg)
}

// settle appends msg, if any, and returns to Idle in one step.
func (o *Orchestrator) settle(msg *domain.Message) {
	o.mu.Lock()
	if msg != nil {
		o.log.Append(*msg)
	}
	t := o.transitionLocked(domain.StateIdle)
	o.mu.Unlock()
	o.publish(t)
}

// transitionLocked sets the state and numbers the change. o.mu must be held;
// publish the result after unlocking.
func (o *Orchestrator) transitionLocked(state domain.ActivityState) transition {
	o.state = state
	o.seq++
	return transition{state: state, seq: o.seq, hooks: slices.Clone(o.hooks)}
}

// publish hands t to metrics and hooks. A transition overtaken by a later
// one before delivery is dropped.
func (o *Orchestrator) publish(t transition) {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()

	if t.seq <= o.delivered {
		return
	}
	o.delivered = t.seq

	o.metrics.SetState(t.state)
	for _, fn := range t.hooks {
		fn(t.state)
	}
}

func (o *Orchestrator) notify(ctx context.Context, kind domain.NoticeKind) {
	o.notifier.Notify(ctx, domain.NewNotice(kind))
}

func (o *Orchestrator) raiseAlert(ctx context.Context, message string) {
	if err := o.alerter.Alert(ctx, message); err != nil {
		o.logger.Error("alerting operator", "error", err)
	}
}

func (o *Orchestrator) newMessage(role domain.Role, text string) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Role:      role,
		Text:      text,
		CreatedAt: o.now(),
	}
}
