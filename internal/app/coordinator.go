package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yourusername/vidsplit-go/internal/domain"
	"github.com/yourusername/vidsplit-go/internal/infrastructure"
	"github.com/yourusername/vidsplit-go/internal/source"
	"github.com/yourusername/vidsplit-go/pkg/logger"
	"go.uber.org/zap"
)

var errShuttingDown = errors.New("coordinator is shutting down")

// SubmitRequest asks the coordinator to start a session
type SubmitRequest struct {
	RequesterID string
	URL         string

	// Reporter receives the terminal outcome; nil uses the coordinator default
	Reporter domain.Reporter

	// OnStage, if set, is called with a snapshot whenever the session changes stage
	OnStage func(domain.Session)
}

// SessionHandle lets a submitter wait for the terminal outcome
type SessionHandle struct {
	SessionID   string
	RequesterID string

	done    chan struct{}
	outcome *domain.Outcome
}

// Done is closed once the outcome has been reported and the session released
func (h *SessionHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the session finishes or ctx is done
func (h *SessionHandle) Wait(ctx context.Context) (*domain.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PlanResult describes what a session would try for a URL
type PlanResult struct {
	Source     string                   `json:"source"`
	VideoID    string                   `json:"video_id"`
	Title      string                   `json:"title"`
	Duration   float64                  `json:"duration"`
	LimitBytes int64                    `json:"limit_bytes"`
	Candidates []domain.FormatCandidate `json:"candidates"`
}

type activeSession struct {
	session  *domain.Session
	handler  domain.SourceHandler
	reporter domain.Reporter
	onStage  func(domain.Session)
	ctx      context.Context
	cancel   context.CancelFunc
	handle   *SessionHandle
}

// Coordinator runs download sessions, at most one per requester.
// Heavy stages are gated by a worker semaphore; cancellation is observed at
// checkpoints only, and tool invocations run on the coordinator's own context
// so an in-flight download or trim always finishes.
type Coordinator struct {
	resolver    *source.Resolver
	prober      domain.MetadataProber
	fetcher     *Fetcher
	splitter    *Splitter
	registry    domain.SessionRegistry
	guard       *infrastructure.PathGuard
	reporter    domain.Reporter
	limitBytes  int64
	multiLogger *logger.MultiLogger
	logger      *zap.Logger

	semaphore  chan struct{}
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*activeSession // keyed by requester ID
	pending  map[string]struct{}       // requesters whose registry acquire is in flight
	closed   bool
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator
func NewCoordinator(
	resolver *source.Resolver,
	prober domain.MetadataProber,
	fetcher *Fetcher,
	splitter *Splitter,
	registry domain.SessionRegistry,
	guard *infrastructure.PathGuard,
	reporter domain.Reporter,
	config *domain.Config,
	multiLogger *logger.MultiLogger,
	log *zap.Logger,
) *Coordinator {
	workers := config.Session.Workers
	if workers < 1 {
		workers = 1
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())

	log.Info("Session coordinator started",
		zap.Int("workers", workers),
		zap.String("limit", domain.FormatSize(config.Transport.LimitBytes)),
		zap.Strings("sources", resolver.Names()))

	return &Coordinator{
		resolver:    resolver,
		prober:      prober,
		fetcher:     fetcher,
		splitter:    splitter,
		registry:    registry,
		guard:       guard,
		reporter:    reporter,
		limitBytes:  config.Transport.LimitBytes,
		multiLogger: multiLogger,
		logger:      log,
		semaphore:   make(chan struct{}, workers),
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
		sessions:    make(map[string]*activeSession),
		pending:     make(map[string]struct{}),
	}
}

// Submit resolves the URL, registers the requester and starts the session in
// the background. It never waits for I/O beyond the registry check, and that
// check runs without holding the coordinator lock.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*SessionHandle, error) {
	url := strings.TrimSpace(req.URL)
	if req.RequesterID == "" {
		return nil, fmt.Errorf("requester id is required")
	}

	handler, err := c.resolver.Resolve(url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errShuttingDown
	}
	_, exists := c.sessions[req.RequesterID]
	_, reserved := c.pending[req.RequesterID]
	if exists || reserved {
		c.mu.Unlock()
		return nil, domain.ErrAlreadyActive
	}
	c.pending[req.RequesterID] = struct{}{}
	c.mu.Unlock()

	// the registry may be remote; the requester stays reserved while it answers
	session := domain.NewSession(req.RequesterID, url, handler.Name())
	acquired, err := c.registry.Acquire(ctx, req.RequesterID, session.ID)

	c.mu.Lock()
	delete(c.pending, req.RequesterID)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to register session: %w", err)
	}
	if !acquired {
		c.mu.Unlock()
		return nil, domain.ErrAlreadyActive
	}
	if c.closed {
		c.mu.Unlock()
		c.release(session)
		return nil, errShuttingDown
	}

	reporter := req.Reporter
	if reporter == nil {
		reporter = c.reporter
	}

	sessionCtx, cancel := context.WithCancel(c.baseCtx)
	active := &activeSession{
		session:  session,
		handler:  handler,
		reporter: reporter,
		onStage:  req.OnStage,
		ctx:      sessionCtx,
		cancel:   cancel,
		handle: &SessionHandle{
			SessionID:   session.ID,
			RequesterID: session.RequesterID,
			done:        make(chan struct{}),
		},
	}
	c.sessions[req.RequesterID] = active
	c.wg.Add(1)
	c.mu.Unlock()

	c.logSessionEvent("session_submitted", session,
		zap.String("url", url),
		zap.String("source", handler.Name()))

	go c.run(active)

	return active.handle, nil
}

// Cancel trips the cancellation token of the requester's session
func (c *Coordinator) Cancel(requesterID string) error {
	c.mu.Lock()
	active, ok := c.sessions[requesterID]
	if ok {
		active.session.CancelRequested = true
	}
	c.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	active.cancel()
	c.logSessionEvent("session_cancel_requested", active.session)
	return nil
}

// Get returns a snapshot of the requester's active session
func (c *Coordinator) Get(requesterID string) (*domain.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active, ok := c.sessions[requesterID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	snapshot := *active.session
	return &snapshot, nil
}

// List returns snapshots of all active sessions, oldest first
func (c *Coordinator) List() []domain.Session {
	c.mu.RLock()
	sessions := make([]domain.Session, 0, len(c.sessions))
	for _, active := range c.sessions {
		sessions = append(sessions, *active.session)
	}
	c.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Plan probes url and returns the candidate cascade without downloading
func (c *Coordinator) Plan(ctx context.Context, url string) (*PlanResult, error) {
	url = strings.TrimSpace(url)
	handler, err := c.resolver.Resolve(url)
	if err != nil {
		return nil, err
	}

	meta, err := c.prober.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	return &PlanResult{
		Source:     handler.Name(),
		VideoID:    meta.ID,
		Title:      meta.Title,
		Duration:   meta.Duration,
		LimitBytes: c.limitBytes,
		Candidates: handler.CandidateFormats(meta, c.limitBytes),
	}, nil
}

// Shutdown cancels every session and waits for them to finish. When ctx
// expires first, in-flight tool invocations are killed as well.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	for _, active := range c.sessions {
		active.session.CancelRequested = true
		active.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.baseCancel()
		c.logger.Info("Session coordinator stopped")
		return nil
	case <-ctx.Done():
		c.baseCancel()
		return ctx.Err()
	}
}

func (c *Coordinator) run(active *activeSession) {
	defer c.wg.Done()

	var outcome *domain.Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Session panicked",
					zap.String("session_id", active.session.ID),
					zap.Any("panic", r))
				outcome = domain.NewFailedOutcome(active.session, fmt.Errorf("internal error: %v", r))
			}
		}()
		outcome = c.execute(active)
	}()

	c.finish(active, outcome)
}

// execute drives one session through probe, fetch and split
func (c *Coordinator) execute(active *activeSession) *domain.Outcome {
	session := active.session
	checkpoint := func() error {
		if active.ctx.Err() != nil {
			return domain.ErrCancelled
		}
		return nil
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-active.ctx.Done():
		return domain.NewCancelledOutcome(session)
	}

	c.markStage(active, domain.StageProbing)
	meta, err := c.prober.Probe(c.baseCtx, session.URL)
	if err != nil {
		return domain.NewFailedOutcome(session, err)
	}

	candidates := active.handler.CandidateFormats(meta, c.limitBytes)
	if len(candidates) == 0 {
		return domain.NewFailedOutcome(session, domain.ErrNoViableFormat)
	}

	if err := checkpoint(); err != nil {
		return domain.NewFailedOutcome(session, err)
	}

	c.markStage(active, domain.StageFetching)
	file, err := c.fetcher.Fetch(c.baseCtx, &domain.DownloadRequest{
		SessionID:   session.ID,
		RequesterID: session.RequesterID,
		URL:         session.URL,
		VideoID:     meta.ID,
		Source:      session.Source,
		Candidates:  candidates,
	})
	if err != nil {
		return domain.NewFailedOutcome(session, err)
	}

	if err := checkpoint(); err != nil {
		return domain.NewFailedOutcome(session, err)
	}

	if file.Size <= c.limitBytes {
		return domain.NewDeliveredOutcome(session, []domain.LocalMediaFile{*file})
	}

	c.markStage(active, domain.StageSplitting)
	parts, err := c.splitter.Split(c.baseCtx, *file, c.limitBytes, checkpoint)
	if err != nil {
		return domain.NewFailedOutcome(session, err)
	}
	return domain.NewDeliveredOutcome(session, parts)
}

// finish reports the outcome, removes the session's files and releases the requester
func (c *Coordinator) finish(active *activeSession, outcome *domain.Outcome) {
	session := active.session

	if outcome.Kind == domain.OutcomeDelivered {
		c.markStage(active, domain.StageDelivering)
	}

	if active.reporter != nil {
		if err := active.reporter.Report(c.baseCtx, outcome); err != nil {
			c.logAppError("Failed to report outcome", session, err)
		}
	}

	if removed, err := c.guard.RemoveMatching(session.ID + "_"); err != nil {
		c.logAppError("Failed to clean up session files", session, err)
	} else if removed > 0 {
		c.logger.Debug("Removed session files", zap.String("session_id", session.ID), zap.Int("files", removed))
	}

	fields := []zap.Field{
		zap.String("kind", string(outcome.Kind)),
		zap.Int("files", len(outcome.Files)),
	}
	if outcome.Err != nil && !errors.Is(outcome.Err, domain.ErrCancelled) {
		fields = append(fields, zap.Error(outcome.Err))
		c.logAppError("Session failed", session, outcome.Err)
	}
	c.logSessionEvent("session_finished", session, fields...)

	c.mu.Lock()
	delete(c.sessions, session.RequesterID)
	c.mu.Unlock()

	c.release(session)
	active.cancel()

	active.handle.outcome = outcome
	close(active.handle.done)
}

func (c *Coordinator) markStage(active *activeSession, stage domain.SessionStage) {
	c.mu.Lock()
	active.session.MarkStage(stage)
	snapshot := *active.session
	c.mu.Unlock()

	c.logger.Info("Session stage changed",
		zap.String("session_id", snapshot.ID),
		zap.String("requester_id", snapshot.RequesterID),
		zap.String("stage", string(stage)))

	ok, err := c.registry.Refresh(c.baseCtx, snapshot.RequesterID, snapshot.ID)
	if err != nil {
		c.logAppError("Failed to refresh session slot", &snapshot, err)
	} else if !ok {
		c.logger.Warn("Session slot expired or taken over",
			zap.String("session_id", snapshot.ID),
			zap.String("requester_id", snapshot.RequesterID))
	}

	if active.onStage != nil {
		active.onStage(snapshot)
	}
}

func (c *Coordinator) release(session *domain.Session) {
	if err := c.registry.Release(context.Background(), session.RequesterID, session.ID); err != nil {
		c.logAppError("Failed to release session", session, err)
	}
}

func (c *Coordinator) logSessionEvent(event string, session *domain.Session, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("session_id", session.ID),
		zap.String("requester_id", session.RequesterID),
	}, fields...)
	c.logger.Info(event, fields...)
	if c.multiLogger != nil {
		c.multiLogger.LogSessionEvent(event, fields...)
	}
}

func (c *Coordinator) logAppError(msg string, session *domain.Session, err error) {
	fields := []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("requester_id", session.RequesterID),
		zap.Error(err),
	}
	c.logger.Error(msg, fields...)
	if c.multiLogger != nil {
		c.multiLogger.LogAppError(msg, fields...)
	}
}
