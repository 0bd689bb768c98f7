// Package queue implements FIFO assignment of pending applications to
// reviewers, reclamation of stale assignments, and manual assignment by
// admins. All contention is settled by the store's conditional updates;
// this layer adds ordering, retries, and the audit trail.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"intake/internal/access"
	"intake/internal/applicant"
	"intake/internal/audit"
	"intake/internal/platform/metrics"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

// maxClaimRetries bounds how often a claim loser retries the next-oldest
// record before escalating.
const maxClaimRetries = 3

// StaffDirectory resolves assignment targets for manual assignment.
type StaffDirectory interface {
	FindByID(ctx context.Context, staffID id.StaffID) (*RosterEntry, error)
}

// RosterEntry is the slice of a staff account the queue needs.
type RosterEntry struct {
	ID       id.StaffID
	Username string
	Role     id.Role
	Active   bool
}

// DirectoryFunc adapts a lookup function to StaffDirectory.
type DirectoryFunc func(ctx context.Context, staffID id.StaffID) (*RosterEntry, error)

func (f DirectoryFunc) FindByID(ctx context.Context, staffID id.StaffID) (*RosterEntry, error) {
	return f(ctx, staffID)
}

// Service coordinates the assignment queue.
type Service struct {
	store     applicant.Store
	staff     StaffDirectory
	recorder  *audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	threshold time.Duration
	now       func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service. threshold is the assignment age beyond
// which an untouched ASSIGNED record returns to the queue.
func NewService(store applicant.Store, staff StaffDirectory, recorder *audit.Recorder, threshold time.Duration, opts ...Option) *Service {
	s := &Service{
		store:     store,
		staff:     staff,
		recorder:  recorder,
		logger:    slog.Default(),
		tracer:    otel.Tracer("intake/queue"),
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClaimNext assigns the oldest pending application to the reviewer. Stale
// assignments are swept back into the queue first so the reviewer can pick
// up abandoned work. An empty queue is NotFound; a claim race is retried a
// bounded number of times before escalating.
func (s *Service) ClaimNext(ctx context.Context, reviewer access.Actor) (applicant.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "queue.ClaimNext",
		trace.WithAttributes(attribute.String("reviewer_id", reviewer.ID.String())))
	defer span.End()
	start := s.now()

	if _, err := s.reclaim(ctx, nil); err != nil {
		// Reclamation failures must not block claiming.
		s.logger.ErrorContext(ctx, "stale reclamation failed", "error", err)
	}

	for attempt := 0; attempt <= maxClaimRetries; attempt++ {
		a, err := s.store.ClaimOldestPending(ctx, reviewer.ID, s.now())
		switch {
		case err == nil:
			details := fmt.Sprintf("auto-assigned to %s", reviewer.Username)
			if err := s.recorder.Record(ctx, &reviewer.ID, &a.ID, audit.ActionAutoAssigned, details); err != nil {
				return applicant.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record assignment")
			}
			span.SetAttributes(attribute.String("applicant_id", a.ID.String()))
			s.observeClaim(start)
			s.logger.InfoContext(ctx, "application claimed",
				"applicant_id", a.ID,
				"reviewer_id", reviewer.ID,
			)
			return a.Summarize(), nil
		case errors.Is(err, sentinel.ErrNotFound):
			return applicant.Summary{}, dErrors.New(dErrors.CodeNotFound, "no pending applications")
		case errors.Is(err, sentinel.ErrClaimConflict):
			if s.metrics != nil {
				s.metrics.ClaimConflictRetries.Inc()
			}
			continue
		default:
			return applicant.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim application")
		}
	}
	return applicant.Summary{}, dErrors.New(dErrors.CodeInternal, "claim retries exhausted")
}

// AutoClaimOnLogin claims in the background after a reviewer logs in. The
// login result never depends on the outcome; failures are logged only.
func (s *Service) AutoClaimOnLogin(ctx context.Context, reviewer access.Actor) {
	s.autoClaim(ctx, reviewer, "login")
}

// AutoClaimOnDecision claims after a reviewer decides their current record,
// keeping their plate full. Satisfies applicant.DecisionHook.
func (s *Service) AutoClaimOnDecision(ctx context.Context, reviewer access.Actor) {
	s.autoClaim(ctx, reviewer, "decision")
}

func (s *Service) autoClaim(ctx context.Context, reviewer access.Actor, trigger string) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.ClaimNext(ctx, reviewer)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.ErrorContext(ctx, "auto-claim failed",
			"trigger", trigger,
			"reviewer_id", reviewer.ID,
			"error", err,
		)
	}
}

// ReclaimStale returns every assignment untouched past the threshold to the
// queue and reports how many records moved. Called from the admin endpoint;
// the background sweep and claiming use the system variant internally.
func (s *Service) ReclaimStale(ctx context.Context, actor access.Actor) (int, error) {
	if err := access.CheckAdmin(actor); err != nil {
		return 0, err
	}
	return s.reclaim(ctx, &actor)
}

// reclaim sweeps stale assignments. A nil actor is the system sweeping on
// its own schedule, which audits differently from an admin doing it by hand.
func (s *Service) reclaim(ctx context.Context, actor *access.Actor) (int, error) {
	ctx, span := s.tracer.Start(ctx, "queue.ReclaimStale")
	defer span.End()

	now := s.now()
	reclaimed, err := s.store.ReclaimStale(ctx, now.Add(-s.threshold), now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reclaim stale assignments")
	}

	action := audit.ActionAssignmentReclaimed
	var actorID *id.StaffID
	if actor != nil {
		action = audit.ActionAssignmentReclaimedByOp
		actorID = &actor.ID
	}
	for _, a := range reclaimed {
		details := fmt.Sprintf("assignment idle past %s returned to queue", s.threshold)
		if err := s.recorder.Record(ctx, actorID, &a.ID, action, details); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record reclamation")
		}
	}

	if s.metrics != nil && len(reclaimed) > 0 {
		s.metrics.AssignmentsReclaimed.Add(float64(len(reclaimed)))
	}
	span.SetAttributes(attribute.Int("reclaimed", len(reclaimed)))
	if len(reclaimed) > 0 {
		s.logger.InfoContext(ctx, "stale assignments reclaimed", "count", len(reclaimed))
	}
	return len(reclaimed), nil
}

// ManualAssign lets an admin direct a specific record to a specific
// reviewer, including taking it over from its current assignee. Decided
// records cannot be reassigned.
func (s *Service) ManualAssign(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, reviewerID id.StaffID) (applicant.Summary, error) {
	if err := access.CheckAdmin(actor); err != nil {
		return applicant.Summary{}, err
	}
	ctx, span := s.tracer.Start(ctx, "queue.ManualAssign",
		trace.WithAttributes(
			attribute.String("applicant_id", applicantID.String()),
			attribute.String("reviewer_id", reviewerID.String()),
		))
	defer span.End()

	reviewer, err := s.staff.FindByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return applicant.Summary{}, dErrors.New(dErrors.CodeInvalidInput, "no such reviewer")
		}
		return applicant.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reviewer")
	}
	if reviewer.Role != id.RoleReviewer || !reviewer.Active {
		return applicant.Summary{}, dErrors.New(dErrors.CodeInvalidInput, "assignee must be an active reviewer")
	}

	a, err := s.store.AssignIfClaimable(ctx, applicantID, reviewerID, s.now())
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return applicant.Summary{}, dErrors.New(dErrors.CodeNotFound, "applicant not found")
		case errors.Is(err, sentinel.ErrClaimConflict):
			return applicant.Summary{}, dErrors.New(dErrors.CodeConflict, "record has already been decided")
		}
		return applicant.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign applicant")
	}

	details := fmt.Sprintf("assigned to %s by %s", reviewer.Username, actor.Username)
	if err := s.recorder.Record(ctx, &actor.ID, &a.ID, audit.ActionAssigned, details); err != nil {
		return applicant.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record assignment")
	}
	if s.metrics != nil {
		s.metrics.Claims.Inc()
	}
	return a.Summarize(), nil
}

// RunReclaimLoop sweeps stale assignments on a fixed interval until the
// context ends. Run it in its own goroutine from main.
func (s *Service) RunReclaimLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.reclaim(ctx, nil); err != nil {
				s.logger.ErrorContext(ctx, "scheduled reclamation failed", "error", err)
			}
		}
	}
}

func (s *Service) observeClaim(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.Claims.Inc()
	s.metrics.ClaimDuration.Observe(s.now().Sub(start).Seconds())
}
