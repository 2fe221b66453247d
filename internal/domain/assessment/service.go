package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/platform/websocket"
)

var (
	ErrSessionNotFound          = errors.New("assessment session not found")
	ErrExitConfirmationRequired = errors.New("leaving now discards the collected answers; confirm to exit")
)

const recordTimeout = 5 * time.Second

// StartRequest opens a new session.
type StartRequest struct {
	EmergencyType string `json:"emergency_type"`
	IsSelf        bool   `json:"is_self"`
	Location      string `json:"location"`
}

// Observer receives session and submission metrics.
type Observer interface {
	ObserveStart(emergencyType string)
	ObserveSubmission(emergencyType, status string, d time.Duration)
}

type Service struct {
	catalog  Catalog
	workflow *Workflow
	store    Store
	profiles ProfileProvider
	records  RecordRepository
	events   websocket.EventPublisher
	metrics  Observer
	log      zerolog.Logger

	wg sync.WaitGroup
}

func NewService(catalog Catalog, workflow *Workflow, store Store, log zerolog.Logger) *Service {
	return &Service{catalog: catalog, workflow: workflow, store: store, log: log}
}

// SetProfileProvider attaches the source of self-assessment profiles.
func (s *Service) SetProfileProvider(p ProfileProvider) { s.profiles = p }

// SetRecordRepository enables persistence of completed submissions.
func (s *Service) SetRecordRepository(r RecordRepository) { s.records = r }

// SetEventPublisher enables live session events.
func (s *Service) SetEventPublisher(p websocket.EventPublisher) { s.events = p }

func (s *Service) SetObserver(o Observer) { s.metrics = o }

func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*SessionView, error) {
	def, err := s.catalog.Lookup(ctx, req.EmergencyType)
	if err != nil {
		return nil, err
	}
	sess := NewSession(uuid.New().String(), userID, def, req.IsSelf, s.log)
	sess.SetLocation(req.Location)
	h := NewHandle(sess)
	s.store.Put(h)
	if s.metrics != nil {
		s.metrics.ObserveStart(def.ID)
	}

	s.log.Info().Str("session_id", sess.ID).Str("emergency_type", def.ID).Bool("is_self", req.IsSelf).Msg("assessment started")
	return newView(sess), nil
}

func (s *Service) handle(userID, id string) (*Handle, error) {
	h, ok := s.store.Get(id)
	if !ok || h.session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

func (s *Service) View(_ context.Context, userID, id string) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return newView(h.session), nil
}

// Advance commits an answer. Reaching the end of the assessment starts the
// submission in the background; the returned view reports Submitting.
func (s *Service) Advance(ctx context.Context, userID, id string, answer AnswerValue) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	step, err := h.session.Advance(answer)
	if err != nil {
		return nil, err
	}
	if step.Submit {
		s.beginSubmission(ctx, h)
	}
	return newView(h.session), nil
}

func (s *Service) Retreat(_ context.Context, userID, id string) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.Retreat(); err != nil {
		return nil, err
	}
	return newView(h.session), nil
}

// UpdateLocation replaces the best-effort location text. It only affects
// prompts synthesized afterwards.
func (s *Service) UpdateLocation(_ context.Context, userID, id, location string) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.SetLocation(location)
	return newView(h.session), nil
}

// Retry resubmits the stored prompt of a failed session.
func (s *Service) Retry(_ context.Context, userID, id string) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.BeginRetry(); err != nil {
		return nil, err
	}
	s.launch(h)
	return newView(h.session), nil
}

// Wait blocks until the in-flight submission, if any, has resolved.
func (s *Service) Wait(ctx context.Context, userID, id string) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	// done closes after the result is applied, published and persisted.
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.View(ctx, userID, id)
}

// Exit abandons the session. Mid-questionnaire exits must be confirmed.
func (s *Service) Exit(_ context.Context, userID, id string, confirmed bool) error {
	h, err := s.handle(userID, id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	needsConfirm := h.session.RequiresExitConfirmation()
	h.mu.Unlock()
	if needsConfirm && !confirmed {
		return ErrExitConfirmationRequired
	}
	s.store.Delete(id)
	// Delete abandons through the eviction hook; stores without one rely on this.
	h.abandon()
	s.log.Info().Str("session_id", id).Msg("assessment exited")
	return nil
}

// Restart exits the session and opens a fresh one for the same emergency
// type and subject.
func (s *Service) Restart(ctx context.Context, userID, id string, confirmed bool) (*SessionView, error) {
	h, err := s.handle(userID, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	req := StartRequest{
		EmergencyType: h.session.Type.ID,
		IsSelf:        h.session.IsSelf(),
		Location:      h.session.Location(),
	}
	h.mu.Unlock()

	if err := s.Exit(ctx, userID, id, confirmed); err != nil {
		return nil, err
	}
	return s.Start(ctx, userID, req)
}

func (s *Service) GetRecord(ctx context.Context, userID string, id uuid.UUID) (*AssessmentRecord, error) {
	if s.records == nil {
		return nil, ErrSessionNotFound
	}
	r, err := s.records.GetByID(ctx, id)
	if err != nil || r.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

func (s *Service) ListRecords(ctx context.Context, userID string, limit, offset int) ([]*AssessmentRecord, int, error) {
	if s.records == nil {
		return []*AssessmentRecord{}, 0, nil
	}
	return s.records.ListByUser(ctx, userID, limit, offset)
}

// Shutdown waits for in-flight submissions to settle.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginSubmission synthesizes the prompt and starts the first attempt.
// Called with h.mu held.
func (s *Service) beginSubmission(ctx context.Context, h *Handle) {
	sess := h.session
	var profile *ProfileSnapshot
	if sess.IsSelf() {
		snap := s.snapshot(ctx, sess.UserID)
		profile = &snap
	}
	sess.setPrompt(Synthesize(sess.PromptInput(profile)))
	h.profile = profile.InferenceProfile()
	s.launch(h)
}

func (s *Service) snapshot(ctx context.Context, userID string) ProfileSnapshot {
	if s.profiles == nil {
		return ProfileSnapshot{}
	}
	snap, err := s.profiles.Snapshot(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("profile unavailable, continuing without it")
		return ProfileSnapshot{}
	}
	return snap
}

// launch runs one submission attempt in the background. Called with h.mu
// held and the session already marked as submitting.
func (s *Service) launch(h *Handle) {
	gen := h.session.Generation()
	prompt := h.session.Prompt()
	profile := h.profile
	typeID := h.session.Type.ID

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()
		start := time.Now()
		result := s.workflow.Submit(ctx, prompt, profile)
		if s.metrics != nil {
			s.metrics.ObserveSubmission(typeID, string(result.Status), time.Since(start))
		}
		s.finish(h, gen, result)
	}()
}

func (s *Service) finish(h *Handle, gen uint64, result Result) {
	h.mu.Lock()
	applied := h.session.Complete(gen, result)
	var (
		view   *SessionView
		record *AssessmentRecord
	)
	if applied {
		h.cancel = nil
		view = newView(h.session)
		record = newRecord(h.session)
	}
	h.mu.Unlock()

	if !applied {
		s.log.Debug().Str("session_id", h.session.ID).Uint64("generation", gen).Msg("discarding stale submission result")
		return
	}
	s.publish(view)
	s.persist(record)
}

func (s *Service) publish(view *SessionView) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode session event")
		return
	}
	ev := websocket.Event{
		Type:         "assessment.completed",
		Topic:        Topic(view.ID),
		ResourceType: "Assessment",
		ResourceID:   view.ID,
		Timestamp:    time.Now().UTC(),
		Data:         data,
	}
	if err := s.events.Publish(context.Background(), ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", view.ID).Msg("failed to publish session event")
	}
}

func (s *Service) persist(r *AssessmentRecord) {
	if s.records == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.records.Create(ctx, r); err != nil {
		s.log.Error().Err(err).Str("session_id", r.SessionID).Msg("failed to persist assessment record")
	}
}

const topicPrefix = "assessment/"

// Topic is the websocket topic carrying events for one session.
func Topic(sessionID string) string {
	return fmt.Sprintf("%s%s", topicPrefix, sessionID)
}

// CanSubscribe lets a user follow only the topics of their own live sessions.
func (s *Service) CanSubscribe(_ context.Context, userID, topic string) bool {
	id, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok || id == "" {
		return false
	}
	_, err := s.handle(userID, id)
	return err == nil
}
