package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
	"salon-assistant/internal/grounding"
)

type mockCapture struct {
	startErr error
	audio    domain.EncodedAudio
	stopErr  error
	starts   int
	stops    int
}

func (m *mockCapture) Start(_ context.Context) error {
	m.starts++
	return m.startErr
}

func (m *mockCapture) Stop(_ context.Context) (domain.EncodedAudio, error) {
	m.stops++
	return m.audio, m.stopErr
}

func (m *mockCapture) Name() string { return "mock" }

type mockSTT struct {
	text  string
	err   error
	calls int
}

func (m *mockSTT) Transcribe(_ context.Context, _ domain.EncodedAudio) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockSession struct {
	mu      sync.Mutex
	replies []*grounding.Response
	err     error
	sent    []string
	release chan struct{}
	entered chan struct{}
}

func (m *mockSession) Send(_ context.Context, text string) (*grounding.Response, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return textResponse("ok"), nil
	}
	resp := m.replies[0]
	m.replies = m.replies[1:]
	return resp, nil
}

type mockFactory struct {
	session   *mockSession
	err       error
	locations []*domain.LocationCoords
}

func (m *mockFactory) Create(_ context.Context, loc *domain.LocationCoords) (application.ChatSession, error) {
	m.locations = append(m.locations, loc)
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type mockLocator struct {
	coords domain.LocationCoords
	err    error
}

func (m *mockLocator) Locate(_ context.Context) (domain.LocationCoords, error) {
	return m.coords, m.err
}

type recordingNotifier struct {
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notice) {
	r.notices = append(r.notices, n)
}

type recordingAlerter struct {
	alerts []string
}

func (r *recordingAlerter) Alert(_ context.Context, message string) error {
	r.alerts = append(r.alerts, message)
	return nil
}

func textResponse(text string) *grounding.Response {
	return &grounding.Response{
		Candidates: []grounding.Candidate{{
			Content: &grounding.Content{Parts: []grounding.Part{{Text: text}}},
		}},
	}
}

type fixture struct {
	orch     *application.Orchestrator
	capture  *mockCapture
	stt      *mockSTT
	session  *mockSession
	notifier *recordingNotifier
	alerter  *recordingAlerter
	states   []domain.ActivityState
}

func newFixture(t *testing.T, opts application.Options) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		capture:  &mockCapture{},
		stt:      &mockSTT{},
		session:  &mockSession{},
		notifier: &recordingNotifier{},
		alerter:  &recordingAlerter{},
	}
	f.orch = application.NewOrchestrator(
		f.capture,
		f.stt,
		f.notifier,
		f.alerter,
		application.NoopMetrics{},
		opts,
		logger,
	)

	var mu sync.Mutex
	f.orch.OnStateChange(func(s domain.ActivityState) {
		mu.Lock()
		defer mu.Unlock()
		f.states = append(f.states, s)
	})
	return f
}

func newReadyFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, application.Options{})
	if err := f.orch.AttachSession(f.session); err != nil {
		t.Fatalf("attaching session: %v", err)
	}
	return f
}

func assertStates(t *testing.T, got []domain.ActivityState, want ...domain.ActivityState) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("transitions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions: got %v, want %v", got, want)
		}
	}
}

func TestOrchestrator_TextExchange(t *testing.T) {
	f := newReadyFixture(t)
	f.session.replies = []*grounding.Response{textResponse("We are open daily 10:30 AM - 9:00 PM.")}

	if err := f.orch.SubmitText(context.Background(), "What are your hours?"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	assertStates(t, f.states, domain.StateThinking, domain.StateIdle)

	msgs := f.orch.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Text != "What are your hours?" {
		t.Errorf("user message: got %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Text != "We are open daily 10:30 AM - 9:00 PM." {
		t.Errorf("assistant message: got %+v", msgs[1])
	}
	if msgs[0].ID == msgs[1].ID {
		t.Error("message ids must be unique")
	}
	if f.orch.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.orch.State())
	}
}

func TestOrchestrator_TwoEntriesPerExchange(t *testing.T) {
	f := newReadyFixture(t)
	inputs := []string{"hi", "do you do beards?", "thanks"}

	for i, in := range inputs {
		if err := f.orch.SubmitText(context.Background(), in); err != nil {
			t.Fatalf("SubmitText(%q): %v", in, err)
		}
		if got := f.orch.Log().Len(); got != 2*(i+1) {
			t.Fatalf("log length after %d exchanges: got %d", i+1, got)
		}
	}

	msgs := f.orch.Messages()
	for i, in := range inputs {
		if msgs[2*i].Role != domain.RoleUser || msgs[2*i].Text != in {
			t.Errorf("message %d: got %+v", 2*i, msgs[2*i])
		}
		if msgs[2*i+1].Role != domain.RoleAssistant {
			t.Errorf("message %d: got role %s", 2*i+1, msgs[2*i+1].Role)
		}
	}
}

func TestOrchestrator_WelcomeMessage(t *testing.T) {
	f := newFixture(t, application.Options{Welcome: "Welcome!"})

	msgs := f.orch.Messages()
	if len(msgs) != 1 || msgs[0].Role != domain.RoleAssistant || msgs[0].Text != "Welcome!" {
		t.Fatalf("messages: got %+v", msgs)
	}
}

func TestOrchestrator_IgnoresBlankText(t *testing.T) {
	f := newReadyFixture(t)

	for _, in := range []string{"", "   ", "\n\t"} {
		err := f.orch.SubmitText(context.Background(), in)
		if !errors.Is(err, domain.ErrEmptyInput) {
			t.Errorf("SubmitText(%q): got %v, want ErrEmptyInput", in, err)
		}
	}

	if len(f.states) != 0 {
		t.Errorf("transitions: got %v, want none", f.states)
	}
	if f.orch.Log().Len() != 0 {
		t.Errorf("log length: got %d, want 0", f.orch.Log().Len())
	}
	if len(f.session.sent) != 0 {
		t.Errorf("sent: got %v, want none", f.session.sent)
	}
}

func TestOrchestrator_IgnoresTextBeforeSessionReady(t *testing.T) {
	f := newFixture(t, application.Options{})

	err := f.orch.SubmitText(context.Background(), "hello")
	if !errors.Is(err, domain.ErrSessionNotReady) {
		t.Fatalf("SubmitText: got %v, want ErrSessionNotReady", err)
	}
	if err := f.orch.StartRecording(context.Background()); !errors.Is(err, domain.ErrSessionNotReady) {
		t.Fatalf("StartRecording: got %v, want ErrSessionNotReady", err)
	}

	if f.orch.Log().Len() != 0 || len(f.states) != 0 {
		t.Errorf("expected no change, got log=%d transitions=%v", f.orch.Log().Len(), f.states)
	}
	if f.capture.starts != 0 {
		t.Errorf("capture starts: got %d, want 0", f.capture.starts)
	}
}

func TestOrchestrator_RejectsTextWhileBusy(t *testing.T) {
	f := newReadyFixture(t)
	f.session.entered = make(chan struct{})
	f.session.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- f.orch.SubmitText(context.Background(), "first")
	}()

	select {
	case <-f.session.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for send")
	}

	if f.orch.State() != domain.StateThinking {
		t.Fatalf("state: got %s, want thinking", f.orch.State())
	}
	before := f.orch.Log().Len()

	if err := f.orch.SubmitText(context.Background(), "second"); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("SubmitText while thinking: got %v, want ErrBusy", err)
	}
	if err := f.orch.StartRecording(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("StartRecording while thinking: got %v, want ErrBusy", err)
	}
	if got := f.orch.Log().Len(); got != before {
		t.Errorf("log length changed while busy: got %d, want %d", got, before)
	}

	close(f.session.release)
	if err := <-done; err != nil {
		t.Fatalf("first SubmitText: %v", err)
	}

	if len(f.session.sent) != 1 || f.session.sent[0] != "first" {
		t.Errorf("sent: got %v", f.session.sent)
	}
	if f.orch.State() != domain.StateIdle {
		t.Errorf("state: got %s, want idle", f.orch.State())
	}
}

func TestOrchestrator_SendFailureAppendsApology(t *testing.T) {
	f := newReadyFixture(t)
	f.session.err = errors.New("dial tcp 10.0.0.1:443: connection refused")

	if err := f.orch.SubmitText(context.Background(), "are you open?"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	assertStates(t, f.states, domain.StateThinking, domain.StateIdle)

	msgs := f.orch.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	apology := msgs[1]
	if apology.Role != domain.RoleAssistant {
		t.Errorf("role: got %s, want assistant", apology.Role)
	}
	if apology.Text != application.DefaultOptions().ApologyReply {
		t.Errorf("text: got %q, want apology", apology.Text)
	}
	if len(f.alerter.alerts) != 1 {
		t.Errorf("alerts: got %d, want 1", len(f.alerter.alerts))
	}

	// The session stays usable after a failed send.
	f.session.err = nil
	if err := f.orch.SubmitText(context.Background(), "again"); err != nil {
		t.Fatalf("second SubmitText: %v", err)
	}
	if got := f.orch.Log().Len(); got != 4 {
		t.Errorf("log length: got %d, want 4", got)
	}
}

func TestOrchestrator_EmptyReplyUsesFallback(t *testing.T) {
	f := newReadyFixture(t)
	f.session.replies = []*grounding.Response{{}}

	if err := f.orch.SubmitText(context.Background(), "?"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	msgs := f.orch.Messages()
	if got := msgs[len(msgs)-1].Text; got != application.DefaultOptions().FallbackReply {
		t.Errorf("text: got %q, want fallback", got)
	}
}

func TestOrchestrator_ReplyCarriesGrounding(t *testing.T) {
	f := newReadyFixture(t)
	resp := textResponse("Here is our page.")
	resp.Candidates[0].GroundingMetadata = &grounding.Metadata{
		GroundingChunks: []grounding.Chunk{
			{Web: &grounding.WebChunk{URI: "https://example.com", Title: "Example"}},
			{Maps: &grounding.MapsChunk{URI: "https://maps.example.com", Title: "Salon"}},
		},
	}
	f.session.replies = []*grounding.Response{resp}

	if err := f.orch.SubmitText(context.Background(), "where are you?"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	reply := f.orch.Messages()[1]
	if len(reply.GroundingChunks) != 2 {
		t.Fatalf("chunks: got %d, want 2", len(reply.GroundingChunks))
	}
	if _, ok := reply.GroundingChunks[0].(domain.WebSource); !ok {
		t.Errorf("chunk 0: got %T", reply.GroundingChunks[0])
	}
	if _, ok := reply.GroundingChunks[1].(domain.MapSource); !ok {
		t.Errorf("chunk 1: got %T", reply.GroundingChunks[1])
	}
}

func TestOrchestrator_VoiceExchange(t *testing.T) {
	f := newReadyFixture(t)
	f.capture.audio = domain.EncodedAudio{Data: "UklGRg==", MimeType: "audio/wav", Size: 4}
	f.stt.text = "بدي احجز موعد"
	f.session.replies = []*grounding.Response{textResponse("أكيد!")}

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if f.orch.State() != domain.StateRecording {
		t.Fatalf("state: got %s, want recording", f.orch.State())
	}
	if err := f.orch.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	assertStates(t, f.states,
		domain.StateRecording, domain.StateTranscribing, domain.StateThinking, domain.StateIdle)

	msgs := f.orch.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	if msgs[0].Text != "بدي احجز موعد" || !msgs[0].FromVoice {
		t.Errorf("user message: got %+v", msgs[0])
	}
	if f.session.sent[0] != "بدي احجز موعد" {
		t.Errorf("sent: got %v", f.session.sent)
	}
	if f.capture.starts != 1 || f.capture.stops != 1 {
		t.Errorf("capture: starts=%d stops=%d", f.capture.starts, f.capture.stops)
	}
}

func TestOrchestrator_SilentRecording(t *testing.T) {
	f := newReadyFixture(t)
	f.capture.audio = domain.EncodedAudio{Data: "AAAA", MimeType: "audio/wav", Size: 3}
	f.stt.text = "  "

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.orch.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	assertStates(t, f.states, domain.StateRecording, domain.StateTranscribing, domain.StateIdle)

	if f.orch.Log().Len() != 0 {
		t.Errorf("log length: got %d, want 0", f.orch.Log().Len())
	}
	if len(f.notifier.notices) != 1 || f.notifier.notices[0].Kind != domain.NoticeNothingUnderstood {
		t.Errorf("notices: got %+v", f.notifier.notices)
	}
	if len(f.session.sent) != 0 {
		t.Errorf("sent: got %v, want none", f.session.sent)
	}
}

func TestOrchestrator_EmptyCaptureSkipsTranscription(t *testing.T) {
	f := newReadyFixture(t)

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.orch.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	if f.stt.calls != 0 {
		t.Errorf("transcribe calls: got %d, want 0", f.stt.calls)
	}
	if len(f.notifier.notices) != 1 || f.notifier.notices[0].Kind != domain.NoticeNothingUnderstood {
		t.Errorf("notices: got %+v", f.notifier.notices)
	}
}

func TestOrchestrator_TranscriptionFailure(t *testing.T) {
	f := newReadyFixture(t)
	f.capture.audio = domain.EncodedAudio{Data: "AAAA", MimeType: "audio/wav", Size: 3}
	f.stt.err = errors.New("503 service unavailable")

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.orch.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	assertStates(t, f.states, domain.StateRecording, domain.StateTranscribing, domain.StateIdle)

	if len(f.notifier.notices) != 1 || f.notifier.notices[0].Kind != domain.NoticeTranscriptionError {
		t.Errorf("notices: got %+v", f.notifier.notices)
	}
	if f.notifier.notices[0].Text == domain.NewNotice(domain.NoticeNothingUnderstood).Text {
		t.Error("transcription error must not reuse the empty transcript notice")
	}
	if f.orch.Log().Len() != 0 {
		t.Errorf("log length: got %d, want 0", f.orch.Log().Len())
	}
	if len(f.alerter.alerts) != 1 {
		t.Errorf("alerts: got %d, want 1", len(f.alerter.alerts))
	}
}

func TestOrchestrator_MicrophoneDenied(t *testing.T) {
	f := newReadyFixture(t)
	f.capture.startErr = domain.ErrPermissionDenied

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	assertStates(t, f.states, domain.StateRecording, domain.StateIdle)

	if len(f.notifier.notices) != 1 || f.notifier.notices[0].Kind != domain.NoticeMicrophoneUnavailable {
		t.Errorf("notices: got %+v", f.notifier.notices)
	}
	if err := f.orch.StopRecording(context.Background()); !errors.Is(err, domain.ErrNotRecording) {
		t.Errorf("StopRecording after failed start: got %v, want ErrNotRecording", err)
	}
}

func TestOrchestrator_StopWithoutStart(t *testing.T) {
	f := newReadyFixture(t)

	if err := f.orch.StopRecording(context.Background()); !errors.Is(err, domain.ErrNotRecording) {
		t.Fatalf("StopRecording: got %v, want ErrNotRecording", err)
	}
	if f.capture.stops != 0 || len(f.states) != 0 {
		t.Errorf("expected no change, got stops=%d transitions=%v", f.capture.stops, f.states)
	}
}

func TestOrchestrator_TextRejectedWhileRecording(t *testing.T) {
	f := newReadyFixture(t)

	if err := f.orch.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.orch.SubmitText(context.Background(), "typed"); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("SubmitText while recording: got %v, want ErrBusy", err)
	}
	if err := f.orch.StartRecording(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Errorf("second StartRecording: got %v, want ErrBusy", err)
	}
	if f.orch.Log().Len() != 0 {
		t.Errorf("log length: got %d, want 0", f.orch.Log().Len())
	}
}

func TestOrchestrator_InitializeWithLocation(t *testing.T) {
	f := newFixture(t, application.Options{})
	factory := &mockFactory{session: f.session}
	locator := &mockLocator{coords: domain.LocationCoords{Latitude: 31.5326, Longitude: 35.0998}}

	if err := f.orch.Initialize(context.Background(), locator, factory); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !f.orch.Ready() {
		t.Fatal("expected orchestrator to be ready")
	}
	if len(factory.locations) != 1 || factory.locations[0] == nil {
		t.Fatalf("locations: got %v", factory.locations)
	}
	if factory.locations[0].Latitude != 31.5326 {
		t.Errorf("latitude: got %f", factory.locations[0].Latitude)
	}
}

func TestOrchestrator_InitializeLocationDenied(t *testing.T) {
	f := newFixture(t, application.Options{})
	factory := &mockFactory{session: f.session}
	locator := &mockLocator{err: domain.ErrPermissionDenied}

	if err := f.orch.Initialize(context.Background(), locator, factory); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if len(factory.locations) != 1 || factory.locations[0] != nil {
		t.Fatalf("expected session created without location, got %v", factory.locations)
	}

	if err := f.orch.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if len(f.session.sent) != 1 {
		t.Errorf("sent: got %v", f.session.sent)
	}
}

func TestOrchestrator_InitializeFailure(t *testing.T) {
	f := newFixture(t, application.Options{})
	factory := &mockFactory{err: errors.New("invalid api key")}

	if err := f.orch.Initialize(context.Background(), nil, factory); err == nil {
		t.Fatal("expected error")
	}
	if f.orch.Ready() {
		t.Error("orchestrator must not be ready after failed creation")
	}
}

func TestOrchestrator_AttachSessionOnce(t *testing.T) {
	f := newReadyFixture(t)

	err := f.orch.AttachSession(&mockSession{})
	if !errors.Is(err, domain.ErrSessionAlreadyAttached) {
		t.Fatalf("AttachSession: got %v, want ErrSessionAlreadyAttached", err)
	}
}

func TestOrchestrator_LogSnapshotIsolated(t *testing.T) {
	f := newReadyFixture(t)
	if err := f.orch.SubmitText(context.Background(), "hi"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	snapshot := f.orch.Messages()
	snapshot[0].Text = "edited"

	if got := f.orch.Messages()[0].Text; got != "hi" {
		t.Errorf("log was modified through snapshot: got %q", got)
	}
}

// gatedMetrics blocks the first Idle update until release is closed.
type gatedMetrics struct {
	application.NoopMetrics

	mu      sync.Mutex
	last    domain.ActivityState
	idles   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedMetrics) SetState(s domain.ActivityState) {
	g.mu.Lock()
	if s == domain.StateIdle {
		g.idles++
	}
	first := s == domain.StateIdle && g.idles == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}

	g.mu.Lock()
	g.last = s
	g.mu.Unlock()
}

func (g *gatedMetrics) current() domain.ActivityState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// secondSendGated lets the first Send through and holds the second.
type secondSendGated struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *secondSendGated) Send(_ context.Context, text string) (*grounding.Response, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 2 {
		close(s.entered)
		<-s.release
	}
	return textResponse("reply to " + text), nil
}

func TestOrchestrator_StateObserversKeepOrderAcrossExchanges(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := &gatedMetrics{entered: make(chan struct{}), release: make(chan struct{})}
	session := &secondSendGated{entered: make(chan struct{}), release: make(chan struct{})}

	orch := application.NewOrchestrator(&mockCapture{}, &mockSTT{}, &recordingNotifier{},
		&recordingAlerter{}, m, application.Options{}, logger)
	if err := orch.AttachSession(session); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	var hookMu sync.Mutex
	var hookStates []domain.ActivityState
	orch.OnStateChange(func(s domain.ActivityState) {
		hookMu.Lock()
		defer hookMu.Unlock()
		hookStates = append(hookStates, s)
	})

	first := make(chan error, 1)
	go func() { first <- orch.SubmitText(context.Background(), "first") }()

	select {
	case <-m.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the first exchange to settle")
	}

	// The first exchange is Idle but has not finished publishing it.
	second := make(chan error, 1)
	go func() { second <- orch.SubmitText(context.Background(), "second") }()

	deadline := time.Now().Add(5 * time.Second)
	for orch.State() != domain.StateThinking {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for the second exchange to be accepted")
		}
		time.Sleep(time.Millisecond)
	}

	close(m.release)

	select {
	case <-session.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the second send")
	}

	if got := m.current(); got != domain.StateThinking {
		t.Errorf("metrics state while second send is in flight: got %s, want thinking", got)
	}
	hookMu.Lock()
	lastHook := hookStates[len(hookStates)-1]
	hookMu.Unlock()
	if lastHook != domain.StateThinking {
		t.Errorf("last hook state while second send is in flight: got %s, want thinking", lastHook)
	}

	close(session.release)
	for _, done := range []chan error{first, second} {
		if err := <-done; err != nil {
			t.Fatalf("SubmitText: %v", err)
		}
	}
	if got := m.current(); got != domain.StateIdle {
		t.Errorf("final metrics state: got %s, want idle", got)
	}
}

func TestOrchestrator_SubmitReportsUserMessageIndex(t *testing.T) {
	f := newFixture(t, application.Options{Welcome: "Welcome!"})
	if err := f.orch.AttachSession(f.session); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	for i, want := range []int{1, 3} {
		got, err := f.orch.Submit(context.Background(), "question")
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if got != want {
			t.Errorf("Submit %d index: got %d, want %d", i, got, want)
		}
		if msg := f.orch.Messages()[got]; msg.Role != domain.RoleUser || msg.Text != "question" {
			t.Errorf("message at index %d: got %+v", got, msg)
		}
	}

	if _, err := f.orch.Submit(context.Background(), " "); !errors.Is(err, domain.ErrEmptyInput) {
		t.Errorf("blank Submit: got %v, want ErrEmptyInput", err)
	}
}

func TestOrchestrator_LogIsReadOnly(t *testing.T) {
	f := newReadyFixture(t)
	if err := f.orch.SubmitText(context.Background(), "hi"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	log := f.orch.Log()
	if _, ok := log.(interface{ Append(domain.Message) }); ok {
		t.Fatal("log handed out by the orchestrator accepts appends")
	}
	if log.Len() != 2 || len(log.Since(1)) != 1 || len(log.Messages()) != 2 {
		t.Errorf("read view: len=%d since(1)=%d messages=%d", log.Len(), len(log.Since(1)), len(log.Messages()))
	}
}
