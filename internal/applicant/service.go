package applicant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"intake/internal/access"
	"intake/internal/audit"
	"intake/internal/crypto/blindindex"
	"intake/internal/crypto/fieldcrypt"
	"intake/internal/platform/metrics"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

// DecisionHook is notified after a reviewer finishes their current record,
// so the queue can hand them the next one. Wired to the queue service.
type DecisionHook interface {
	AutoClaimOnDecision(ctx context.Context, reviewer access.Actor)
}

// Transactor runs fn atomically. The postgres wiring opens a transaction and
// stores it in fn's context so the stores join one commit; the default runs
// fn directly.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns the applicant workflow: intake with duplicate detection,
// guarded PII access, status transitions, notes, and admin purge. Field
// plaintext exists only inside a single call frame here; stores and
// projections other than View carry ciphertext.
type Service struct {
	store    Store
	codec    *fieldcrypt.Codec
	indexer  *blindindex.Indexer
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	decision DecisionHook
	inTx     Transactor
	now      func() time.Time
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

// WithTransactor makes the purge cascade run inside run.
func WithTransactor(run Transactor) Option {
	return func(s *Service) {
		s.inTx = run
	}
}

// NewService constructs a Service.
func NewService(store Store, codec *fieldcrypt.Codec, indexer *blindindex.Indexer, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		codec:    codec,
		indexer:  indexer,
		recorder: recorder,
		logger:   slog.Default(),
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDecisionHook wires the queue after both services exist. The hook and
// the queue reference each other, so it cannot be a constructor argument.
func (s *Service) SetDecisionHook(hook DecisionHook) {
	s.decision = hook
}

// Submit accepts a public application. The normalized email's blind index
// detects resubmissions without decrypting anything; the store's unique
// index backstops the lookup against concurrent submissions of the same
// address.
func (s *Service) Submit(ctx context.Context, sub Submission) (Summary, error) {
	if strings.TrimSpace(sub.FirstName) == "" || strings.TrimSpace(sub.LastName) == "" {
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "first and last name are required")
	}

	emailIndex := s.indexer.Index(sub.Email)
	if emailIndex != "" {
		if _, err := s.store.FindByEmailIndex(ctx, emailIndex); err == nil {
			s.countDuplicate()
			return Summary{}, dErrors.New(dErrors.CodeDuplicate, "an application with this email already exists")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicates")
		}
	}

	now := s.now()
	a := &Applicant{
		ID:         id.NewApplicantID(),
		FirstName:  strings.TrimSpace(sub.FirstName),
		LastName:   strings.TrimSpace(sub.LastName),
		City:       strings.TrimSpace(sub.City),
		Zip:        strings.TrimSpace(sub.Zip),
		EmailIndex: emailIndex,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var err error
	if a.StreetAddressCT, err = s.codec.EncryptString(sub.StreetAddress); err != nil {
		return Summary{}, err
	}
	if a.PhoneCT, err = s.codec.EncryptString(sub.Phone); err != nil {
		return Summary{}, err
	}
	if a.EmailCT, err = s.codec.EncryptString(sub.Email); err != nil {
		return Summary{}, err
	}
	if len(sub.FreeText) > 0 {
		if a.CustomFieldsCT, err = s.codec.EncryptJSON(sub.FreeText); err != nil {
			return Summary{}, err
		}
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.countDuplicate()
			return Summary{}, dErrors.New(dErrors.CodeDuplicate, "an application with this email already exists")
		}
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save application")
	}

	if s.metrics != nil {
		s.metrics.ApplicationsSubmitted.Inc()
	}
	s.logger.InfoContext(ctx, "application submitted", "applicant_id", a.ID)
	return a.Summarize(), nil
}

// Get returns the decrypted record. The access check runs before any
// decryption, and the PII_VIEWED entry is written before the caller sees a
// byte of plaintext; if the entry cannot be written the request fails.
func (s *Service) Get(ctx context.Context, actor access.Actor, applicantID id.ApplicantID) (*View, error) {
	a, err := s.load(ctx, actor, applicantID)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("viewed applicant %s", a.ID)
	if err := s.recorder.Record(ctx, &actor.ID, &a.ID, audit.ActionPIIViewed, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record access")
	}

	view, err := s.decrypt(a)
	if err != nil {
		s.logger.ErrorContext(ctx, "decryption failure",
			"applicant_id", a.ID,
			"error", err,
		)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.PIIViews.Inc()
	}
	return view, nil
}

// List returns summaries. Reviewers see only their own assignments no
// matter what the filter says.
func (s *Service) List(ctx context.Context, actor access.Actor, f Filter) ([]Summary, error) {
	if !actor.IsAdmin() {
		f.AssignedTo = &actor.ID
	}
	records, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applicants")
	}
	out := make([]Summary, 0, len(records))
	for _, a := range records {
		out = append(out, a.Summarize())
	}
	return out, nil
}

// Search matches the query case-insensitively against plaintext fields and
// notes within the actor's visible set. Encrypted fields are never searched;
// email lookups go through the blind index at submission time instead.
func (s *Service) Search(ctx context.Context, actor access.Actor, query string) ([]Summary, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "search query is required")
	}

	var f Filter
	if !actor.IsAdmin() {
		f.AssignedTo = &actor.ID
	}
	records, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search applicants")
	}

	var out []Summary
	for _, a := range records {
		if matchesQuery(a, query) {
			out = append(out, a.Summarize())
		}
	}

	details := fmt.Sprintf("query %q returned %d results", query, len(out))
	if err := s.recorder.Record(ctx, &actor.ID, nil, audit.ActionSearchPerformed, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record search")
	}
	return out, nil
}

func matchesQuery(a *Applicant, query string) bool {
	for _, field := range []string{a.FirstName, a.LastName, a.City, a.Zip, a.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// UpdateStatus applies a workflow decision. Assignment happens through the
// queue, never here; moving a record back to PENDING releases it. The store
// transition is conditional on the status the actor saw, so a concurrent
// reclaim or decision surfaces as a conflict instead of a lost update.
func (s *Service) UpdateStatus(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, to Status) (Summary, error) {
	if to == StatusAssigned {
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "records are assigned through the queue")
	}

	a, err := s.load(ctx, actor, applicantID)
	if err != nil {
		return Summary{}, err
	}
	from := a.Status
	if !from.CanTransitionTo(to) {
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("cannot move %s record to %s", from, to))
	}

	clearAssignee := to == StatusPending
	updated, err := s.store.TransitionStatus(ctx, applicantID, from, to, clearAssignee, s.now())
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrClaimConflict):
			return Summary{}, dErrors.New(dErrors.CodeConflict, "record was modified concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			return Summary{}, s.missing(actor)
		}
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status")
	}

	details := fmt.Sprintf("%s -> %s", from, to)
	if err := s.recorder.Record(ctx, &actor.ID, &applicantID, audit.ActionStatusChanged, details); err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record status change")
	}

	if to.IsTerminal() && !actor.IsAdmin() && s.decision != nil {
		s.decision.AutoClaimOnDecision(ctx, actor)
	}
	return updated.Summarize(), nil
}

// AddNote appends a timestamped, attributed line to the record's notes.
func (s *Service) AddNote(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, text string) (Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Summary{}, dErrors.New(dErrors.CodeInvalidInput, "note text is required")
	}

	a, err := s.load(ctx, actor, applicantID)
	if err != nil {
		return Summary{}, err
	}

	now := s.now()
	line := fmt.Sprintf("[%s] %s: %s", now.Format(time.RFC3339), actor.Username, text)
	if a.Notes == "" {
		a.Notes = line
	} else {
		a.Notes += "\n" + line
	}
	a.UpdatedAt = now

	if err := s.store.Update(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Summary{}, s.missing(actor)
		}
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save note")
	}

	if err := s.recorder.Record(ctx, &actor.ID, &applicantID, audit.ActionNoteAdded, "note added"); err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record note")
	}
	return a.Summarize(), nil
}

// SetCustomFields replaces the encrypted free-text blob as one unit.
func (s *Service) SetCustomFields(ctx context.Context, actor access.Actor, applicantID id.ApplicantID, fields map[string]any) (Summary, error) {
	a, err := s.load(ctx, actor, applicantID)
	if err != nil {
		return Summary{}, err
	}

	if len(fields) == 0 {
		a.CustomFieldsCT = nil
	} else {
		ct, err := s.codec.EncryptJSON(fields)
		if err != nil {
			return Summary{}, err
		}
		a.CustomFieldsCT = ct
	}
	a.UpdatedAt = s.now()

	if err := s.store.Update(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Summary{}, s.missing(actor)
		}
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save custom fields")
	}

	if err := s.recorder.Record(ctx, &actor.ID, &applicantID, audit.ActionCustomFieldsUpdated, "custom fields replaced"); err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record update")
	}
	return a.Summarize(), nil
}

// Purge irreversibly removes a record and every audit entry referencing it,
// all-or-nothing: a partial cascade would orphan the record from its trail.
// The RECORD_DELETED entry is written without an applicant reference, so the
// fact of the deletion survives the deletion itself.
func (s *Service) Purge(ctx context.Context, actor access.Actor, applicantID id.ApplicantID) error {
	if err := access.CheckAdmin(actor); err != nil {
		return err
	}

	if _, err := s.store.FindByID(ctx, applicantID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "applicant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load applicant")
	}

	// The record delete goes first so a failure aborts the cascade before
	// any audit entry is touched; under a transaction the ordering only
	// matters for readability.
	var purged int
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, applicantID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete applicant")
		}
		n, err := s.recorder.PurgeByApplicant(ctx, applicantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge audit entries")
		}
		purged = n

		details := fmt.Sprintf("purged applicant %s and %d audit entries", applicantID, purged)
		if err := s.recorder.Record(ctx, &actor.ID, nil, audit.ActionRecordDeleted, details); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record purge")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "applicant purged", "applicant_id", applicantID, "audit_entries", purged)
	return nil
}

// load fetches a record and authorizes the actor against it. For reviewers
// the result of "not yours" and "does not exist" is the same error value.
func (s *Service) load(ctx context.Context, actor access.Actor, applicantID id.ApplicantID) (*Applicant, error) {
	a, err := s.store.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.missing(actor)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load applicant")
	}
	if err := access.CheckRecord(actor, a.AssignedTo); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) missing(actor access.Actor) error {
	if actor.IsAdmin() {
		return dErrors.New(dErrors.CodeNotFound, "applicant not found")
	}
	return access.Denied()
}

func (s *Service) decrypt(a *Applicant) (*View, error) {
	view := &View{
		ID:         a.ID,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		City:       a.City,
		Zip:        a.Zip,
		Status:     a.Status,
		AssignedTo: a.AssignedTo,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	var err error
	if view.StreetAddress, err = s.codec.DecryptString(a.StreetAddressCT); err != nil {
		return nil, err
	}
	if view.Phone, err = s.codec.DecryptString(a.PhoneCT); err != nil {
		return nil, err
	}
	if view.Email, err = s.codec.DecryptString(a.EmailCT); err != nil {
		return nil, err
	}
	if len(a.CustomFieldsCT) > 0 {
		if err := s.codec.DecryptJSON(a.CustomFieldsCT, &view.CustomFields); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *Service) countDuplicate() {
	if s.metrics != nil {
		s.metrics.DuplicateSubmissions.Inc()
	}
}
