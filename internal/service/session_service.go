package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mocksh/mocksh-backend/internal/bank"
	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/exam"
	"github.com/mocksh/mocksh-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoSession is returned when a user has no session at all yet.
var ErrNoSession = errors.New("no session for this user")

// Save status values surfaced to clients while a result travels through the
// persistence queue.
const (
	SaveStatusSaving = "saving"
	SaveStatusSaved  = "saved"
	SaveStatusFailed = "save_failed"
)

// saveStatusTTL bounds how long a stale status flag can linger in Redis.
const saveStatusTTL = 24 * time.Hour

// activeSession pairs an exam session with the goroutine driving its countdown.
type activeSession struct {
	exam     *exam.Session
	stop     chan struct{}
	stopOnce sync.Once
}

func (a *activeSession) stopTicker() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// SessionService owns one exam session per user. All access to the underlying
// exam.Session values goes through the service mutex; the sessions themselves
// are not concurrency-safe.
//
// Submission persistence is fire-and-forget: the result is pushed onto a
// Redis queue and a status flag tracks its journey, so a slow database never
// blocks the results screen.
type SessionService struct {
	cfg  *config.Config
	bank *bank.Bank
	rdb  *redis.Client
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*activeSession
	// rng is shared by every session so that two users starting in the same
	// instant still draw distinct permutations. Only used under mu.
	rng *rand.Rand
}

// NewSessionService creates a SessionService backed by the loaded question bank.
func NewSessionService(cfg *config.Config, b *bank.Bank, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		cfg:      cfg,
		bank:     b,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[string]*activeSession),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Info describes the test this deployment offers.
func (s *SessionService) Info() model.TestInfo {
	count := s.cfg.QuestionCount
	if count > s.bank.Size() {
		count = s.bank.Size()
	}
	return model.TestInfo{
		TestName:        s.cfg.TestName,
		QuestionCount:   count,
		BankSize:        s.bank.Size(),
		DurationSeconds: int(s.cfg.TestDuration.Seconds()),
	}
}

// Start begins a fresh attempt for the user. Starting while a test is already
// in progress is rejected; callers use Restart for an explicit do-over.
func (s *SessionService) Start(ctx context.Context, userID string) (*model.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx, userID)
}

// Restart abandons whatever state the user's session is in and begins a new
// attempt. An in-progress attempt is discarded without being persisted, so
// clients confirm with the user before calling this.
func (s *SessionService) Restart(ctx context.Context, userID string) (*model.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if as, ok := s.sessions[userID]; ok {
		as.stopTicker()
		as.exam.Reset()
	}
	return s.startLocked(ctx, userID)
}

func (s *SessionService) startLocked(ctx context.Context, userID string) (*model.SessionState, error) {
	as, ok := s.sessions[userID]
	if ok && as.exam.State() == exam.StateInProgress {
		return nil, exam.ErrAlreadyInProgress
	}

	as = &activeSession{
		exam: exam.NewSession(exam.WithRand(s.rng)),
		stop: make(chan struct{}),
	}
	if err := as.exam.Start(s.bank.Questions(), s.cfg.QuestionCount, s.cfg.TestDuration); err != nil {
		return nil, err
	}
	s.sessions[userID] = as

	// Clear any status flag left over from the previous attempt.
	if err := s.rdb.Del(ctx, config.CacheKey.ResultStatusKey(userID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("clear result status failed")
	}

	go s.runTicker(userID, as)

	return s.snapshotLocked(ctx, userID, as), nil
}

// runTicker drives the countdown at one tick per second until the session
// leaves InProgress. When the countdown itself forces the submission, the
// ticker goroutine performs the persistence side effects.
func (s *SessionService) runTicker(userID string, as *activeSession) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-as.stop:
			return
		case <-t.C:
			s.mu.Lock()
			forced := as.exam.Tick()
			var payload *model.TestResult
			if forced {
				payload = s.buildResultLocked(userID, as)
			}
			s.mu.Unlock()

			if forced {
				s.log.Info().Str("user_id", userID).Msg("countdown expired, auto-submitting")
				s.persistResult(context.Background(), userID, payload)
				as.stopTicker()
				return
			}
		}
	}
}

// Snapshot returns the user's session state, including the save status of a
// submitted result. A user with no session yet gets a NotStarted snapshot.
func (s *SessionService) Snapshot(ctx context.Context, userID string) *model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.sessions[userID]
	if !ok {
		return &model.SessionState{
			State:    exam.StateNotStarted,
			TestName: s.cfg.TestName,
			Answers:  map[string][]int{},
		}
	}
	return s.snapshotLocked(ctx, userID, as)
}

func (s *SessionService) snapshotLocked(ctx context.Context, userID string, as *activeSession) *model.SessionState {
	st := &model.SessionState{
		State:         as.exam.State(),
		TestName:      s.cfg.TestName,
		Answers:       as.exam.Answers(),
		CurrentIndex:  as.exam.CurrentIndex(),
		TimeRemaining: as.exam.TimeRemaining(),
		Result:        as.exam.Result(),
	}
	st.AnsweredCount = len(st.Answers)
	if as.exam.State() != exam.StateNotStarted {
		st.Questions = model.NewQuestionViews(as.exam.Questions())
		started := as.exam.StartedAt()
		st.StartedAt = &started
	}
	if as.exam.State() == exam.StateSubmitted {
		status, err := s.rdb.Get(ctx, config.CacheKey.ResultStatusKey(userID)).Result()
		if err == nil {
			st.SaveStatus = status
		}
	}
	return st
}

// Answer records a selection on the user's in-progress attempt.
func (s *SessionService) Answer(userID, questionID string, optionIndex int, multiSelect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.sessions[userID]
	if !ok {
		return exam.ErrNotInProgress
	}
	return as.exam.RecordAnswer(questionID, optionIndex, multiSelect)
}

// Navigate moves the cursor by delta, or directly to *index when set.
// Returns the resulting cursor position.
func (s *SessionService) Navigate(userID string, delta int, index *int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.sessions[userID]
	if !ok || as.exam.State() != exam.StateInProgress {
		return 0, exam.ErrNotInProgress
	}
	if index != nil {
		return as.exam.JumpTo(*index), nil
	}
	return as.exam.Navigate(delta), nil
}

// Submit finalizes the user's attempt. The result is returned immediately;
// persistence happens asynchronously through the Redis queue. Submitting an
// already-submitted session returns the same result without re-enqueueing.
func (s *SessionService) Submit(ctx context.Context, userID string) (*exam.Result, error) {
	s.mu.Lock()

	as, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return nil, exam.ErrNotInProgress
	}

	res, first, err := as.exam.Submit()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	var payload *model.TestResult
	if first {
		payload = s.buildResultLocked(userID, as)
	}
	s.mu.Unlock()

	as.stopTicker()
	if first {
		// Detached from the request context: a client that disconnects right
		// after submitting must not cancel the enqueue.
		s.persistResult(context.WithoutCancel(ctx), userID, payload)
	}
	return res, nil
}

// Review returns the post-submission review rows for the given filter.
func (s *SessionService) Review(userID string, filter exam.Filter) ([]exam.ReviewEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return as.exam.Review(filter)
}

// Drop discards the user's session without persisting, used on logout.
func (s *SessionService) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if as, ok := s.sessions[userID]; ok {
		as.stopTicker()
		delete(s.sessions, userID)
	}
}

// Close stops every running countdown. Called on shutdown.
func (s *SessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, as := range s.sessions {
		as.stopTicker()
	}
}

// buildResultLocked assembles the persistence payload from a just-submitted
// session. Caller holds s.mu.
func (s *SessionService) buildResultLocked(userID string, as *activeSession) *model.TestResult {
	res := as.exam.Result()
	return &model.TestResult{
		ID:               uuid.New().String(),
		UserID:           userID,
		TestName:         s.cfg.TestName,
		Score:            res.Score,
		TotalQuestions:   res.TotalQuestions,
		TimeTakenSeconds: res.TimeTakenSeconds,
		Answers:          as.exam.Answers(),
		Questions:        as.exam.Questions(),
		CreatedAt:        res.SubmittedAt,
	}
}

// persistResult enqueues the result for the background worker and flags the
// attempt as saving. Queue failures mark the status failed but never bubble
// up to the submit path.
func (s *SessionService) persistResult(ctx context.Context, userID string, payload *model.TestResult) {
	statusKey := config.CacheKey.ResultStatusKey(userID)

	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("marshal result payload failed")
		s.rdb.Set(ctx, statusKey, SaveStatusFailed, saveStatusTTL)
		return
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("enqueue result failed")
		s.rdb.Set(ctx, statusKey, SaveStatusFailed, saveStatusTTL)
		return
	}

	if err := s.rdb.Set(ctx, statusKey, SaveStatusSaving, saveStatusTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("set result status failed")
	}
}
