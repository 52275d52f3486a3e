package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/settingsd/internal/adapter/otel"
	"github.com/Strob0t/settingsd/internal/domain"
	"github.com/Strob0t/settingsd/internal/domain/settings"
	"github.com/Strob0t/settingsd/internal/port/clock"
	"github.com/Strob0t/settingsd/internal/port/database"
	"github.com/Strob0t/settingsd/internal/port/directory"
	"github.com/Strob0t/settingsd/internal/port/messagequeue"
)

const (
	// maxWriteAttempts bounds the read-modify-write cycle on version conflicts.
	maxWriteAttempts = 3

	defaultExpiryConcurrency = 4

	// expiryRowTimeout bounds one row's expiry write, which is allowed to finish
	// after the pass context is canceled.
	expiryRowTimeout = 10 * time.Second
)

// ExpiryReport summarizes one ProcessExpiredDndModes pass.
type ExpiryReport struct {
	Due     int `json:"due"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"` // no longer due when re-read (extended or disabled concurrently)
	Failed  int `json:"failed"`
}

// SettingsService implements the business and representative settings use
// cases. It is the only writer of settings rows.
type SettingsService struct {
	store   database.Store
	dir     directory.Directory
	policy  *AuthorizationPolicy
	clock   clock.Clock
	engine  settings.DndEngine
	queue   messagequeue.Queue
	metrics *cfotel.Metrics

	expiryConcurrency int
}

// NewSettingsService creates a SettingsService. The policy is built over dir.
func NewSettingsService(store database.Store, dir directory.Directory, clk clock.Clock, engine settings.DndEngine) *SettingsService {
	if clk == nil {
		clk = clock.System{}
	}
	return &SettingsService{
		store:             store,
		dir:               dir,
		policy:            NewAuthorizationPolicy(dir),
		clock:             clk,
		engine:            engine,
		expiryConcurrency: defaultExpiryConcurrency,
	}
}

// SetQueue sets the event publisher. Events are skipped while it is nil.
func (s *SettingsService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetMetrics sets the metric instruments.
func (s *SettingsService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// SetExpiryConcurrency sets how many rows an expiry pass writes in parallel.
func (s *SettingsService) SetExpiryConcurrency(n int) {
	if n > 0 {
		s.expiryConcurrency = n
	}
}

// GetBusinessSettings returns the settings of a business, creating the default
// record on first access.
func (s *SettingsService) GetBusinessSettings(ctx context.Context, businessID string) (*settings.BusinessSettingsView, error) {
	if businessID == "" {
		return nil, fmt.Errorf("business id is required: %w", domain.ErrInvalidArgument)
	}
	b, err := s.loadOrCreateBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return settings.NewBusinessSettingsView(b, s.clock.Now()), nil
}

// UpdateBusinessSettings applies a partial update on behalf of actorID, who
// must be the business's parent representative or a support actor.
func (s *SettingsService) UpdateBusinessSettings(ctx context.Context, businessID string, req *settings.UpdateBusinessRequest, actorID string) (_ *settings.BusinessSettingsView, err error) {
	ctx, span := cfotel.StartBusinessSpan(ctx, "update_business", businessID, actorID)
	defer func() { cfotel.EndSpan(span, err) }()

	if businessID == "" {
		return nil, fmt.Errorf("business id is required: %w", domain.ErrInvalidArgument)
	}
	if req == nil {
		req = &settings.UpdateBusinessRequest{}
	}

	var (
		updated    *settings.BusinessSettings
		transition settings.DndTransition
		now        time.Time
	)
	err = s.retryOnConflict(ctx, "update_business", func() error {
		if !s.policy.CanUpdateBusiness(ctx, actorID, businessID) {
			return fmt.Errorf("actor %q may not modify settings of business %q: %w", actorID, businessID, domain.ErrForbidden)
		}
		if err := req.Validate(); err != nil {
			return err
		}
		current, err := s.loadOrCreateBusiness(ctx, businessID)
		if err != nil {
			return err
		}

		now = s.clock.Now()
		next := current.Clone()
		tr, err := settings.ApplyBusinessUpdate(next, req, s.engine, now)
		if err != nil {
			return err
		}
		next.ModifiedByUserID = &actorID
		next.UpdatedAt = now

		if err := s.store.UpdateBusinessSettings(ctx, next); err != nil {
			return err
		}
		updated, transition = next, tr
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("business settings updated",
		"business_id", businessID, "actor_id", actorID, "dnd_transition", string(transition), "version", updated.Version)

	s.publish(ctx, messagequeue.SubjectBusinessUpdated, messagequeue.BusinessUpdatedPayload{
		BusinessID:     businessID,
		ReviewsPrivate: updated.ReviewsPrivate,
		DndModeEnabled: updated.DndModeEnabled,
		ModifiedBy:     actorID,
		Version:        updated.Version,
		UpdatedAt:      updated.UpdatedAt,
	})
	switch transition {
	case settings.DndEnabled:
		if s.metrics != nil {
			s.metrics.DndEnabled.Add(ctx, 1, businessAttr(businessID))
		}
		s.publish(ctx, messagequeue.SubjectDndEnabled, dndPayload(updated, actorID, now))
	case settings.DndDisabled:
		s.publish(ctx, messagequeue.SubjectDndDisabled, dndPayload(updated, actorID, now))
	}

	return settings.NewBusinessSettingsView(updated, now), nil
}

// ExtendDndMode pushes an active DnD window out by additionalHours. Checks run
// in order: positive hours, active DnD, support actor.
// The returned projection carries the unclamped remaining hours, which are
// negative when a lapsed window is extended by less than its overrun.
func (s *SettingsService) ExtendDndMode(ctx context.Context, businessID string, additionalHours int, actorID string) (_ *settings.BusinessSettingsView, err error) {
	ctx, span := cfotel.StartBusinessSpan(ctx, "extend_dnd", businessID, actorID)
	span.SetAttributes(attribute.Int("dnd.additional_hours", additionalHours))
	defer func() { cfotel.EndSpan(span, err) }()

	if err := s.engine.CheckExtension(additionalHours); err != nil {
		return nil, err
	}

	var (
		updated   *settings.BusinessSettings
		remaining float64
		now       time.Time
	)
	err = s.retryOnConflict(ctx, "extend_dnd", func() error {
		current, err := s.store.GetBusinessSettings(ctx, businessID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("dnd mode is not active for business %q: %w", businessID, domain.ErrInvalidState)
		}
		if err != nil {
			return err
		}
		if !current.DndModeEnabled {
			return fmt.Errorf("dnd mode is not active for business %q: %w", businessID, domain.ErrInvalidState)
		}
		if !s.policy.IsSupportActor(ctx, actorID) {
			return fmt.Errorf("actor %q may not extend dnd mode: %w", actorID, domain.ErrForbidden)
		}

		now = s.clock.Now()
		next := current.Clone()
		r, err := s.engine.Extend(next, additionalHours, now)
		if err != nil {
			return err
		}
		next.ModifiedByUserID = &actorID
		next.UpdatedAt = now

		if err := s.store.UpdateBusinessSettings(ctx, next); err != nil {
			return err
		}
		updated, remaining = next, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("dnd mode extended",
		"business_id", businessID, "actor_id", actorID, "additional_hours", additionalHours,
		"expires_at", updated.DndModeExpiresAt, "extension_count", updated.DndExtensionCount)

	if s.metrics != nil {
		s.metrics.DndExtended.Add(ctx, 1, businessAttr(businessID))
	}
	s.publish(ctx, messagequeue.SubjectDndExtended, dndPayload(updated, actorID, now))

	view := settings.NewBusinessSettingsView(updated, now)
	view.RemainingDndHours = &remaining
	return view, nil
}

// ProcessExpiredDndModes expires every DnD window that has lapsed. Each row is
// expired in its own conditional write; a failing row is logged and counted
// and does not stop the others. Running it again on the same data is a no-op.
// Cancellation stops dispatching new rows; rows already dispatched finish.
func (s *SettingsService) ProcessExpiredDndModes(ctx context.Context) (report ExpiryReport, err error) {
	ctx, span := cfotel.StartExpiryPassSpan(ctx)
	start := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.Int("expiry.due", report.Due),
			attribute.Int("expiry.expired", report.Expired),
			attribute.Int("expiry.failed", report.Failed),
		)
		cfotel.EndSpan(span, err)
		if s.metrics != nil {
			s.metrics.PassDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	due, err := s.store.FindExpiredDndSettings(ctx, s.clock.Now())
	if err != nil {
		return report, fmt.Errorf("find expired dnd settings: %w", err)
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report, nil
	}

	var expired, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.expiryConcurrency)

	for i := range due {
		if ctx.Err() != nil {
			slog.Info("expiry pass canceled, leaving remaining rows for the next pass",
				"remaining", len(due)-i)
			break
		}
		row := due[i]
		g.Go(func() error {
			rowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), expiryRowTimeout)
			defer cancel()

			done, err := s.expireOne(rowCtx, &row)
			switch {
			case err != nil:
				failed.Add(1)
				if s.metrics != nil {
					s.metrics.ExpiryFailures.Add(rowCtx, 1)
				}
				slog.Error("dnd expiry failed", "business_id", row.BusinessID, "error", err)
			case done:
				expired.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Expired = int(expired.Load())
	report.Skipped = int(skipped.Load())
	report.Failed = int(failed.Load())
	return report, nil
}

// expireOne expires a single row, re-reading it on version conflicts. It
// reports false without error when the row is no longer due.
func (s *SettingsService) expireOne(ctx context.Context, row *settings.BusinessSettings) (bool, error) {
	current := row
	for attempt := 1; ; attempt++ {
		now := s.clock.Now()
		next := current.Clone()
		if !s.engine.Expire(next, now) {
			return false, nil
		}

		err := s.store.UpdateBusinessSettings(ctx, next)
		if err == nil {
			slog.Info("dnd mode expired", "business_id", next.BusinessID, "extension_count", current.DndExtensionCount)
			if s.metrics != nil {
				s.metrics.DndExpired.Add(ctx, 1, businessAttr(next.BusinessID))
			}
			s.publish(ctx, messagequeue.SubjectDndExpired, dndPayload(next, "", now))
			return true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return false, err
		}
		s.countConflict(ctx, "expire_dnd")
		if attempt == maxWriteAttempts {
			return false, fmt.Errorf("expire dnd for business %q after %d attempts: %w", row.BusinessID, attempt, err)
		}

		current, err = s.store.GetBusinessSettings(ctx, row.BusinessID)
		if err != nil {
			return false, fmt.Errorf("reload business %q: %w", row.BusinessID, err)
		}
	}
}

// GetRepSettings returns a representative's settings, creating the default
// record on first access.
func (s *SettingsService) GetRepSettings(ctx context.Context, repID string) (*settings.RepSettings, error) {
	if repID == "" {
		return nil, fmt.Errorf("representative id is required: %w", domain.ErrInvalidArgument)
	}
	return s.loadOrCreateRep(ctx, repID)
}

// UpdateRepSettings applies a partial update to repID's settings. Only the
// representative may update their own settings.
func (s *SettingsService) UpdateRepSettings(ctx context.Context, repID string, req *settings.UpdateRepRequest, actorID string) (_ *settings.RepSettings, err error) {
	ctx, span := cfotel.StartRepSpan(ctx, "update_rep", repID)
	defer func() { cfotel.EndSpan(span, err) }()

	if !s.policy.CanModifyRepSettings(actorID, repID) {
		return nil, fmt.Errorf("actor %q may not modify settings of representative %q: %w", actorID, repID, domain.ErrForbidden)
	}
	if req == nil {
		req = &settings.UpdateRepRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *settings.RepSettings
	err = s.retryOnConflict(ctx, "update_rep", func() error {
		current, err := s.loadOrCreateRep(ctx, repID)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := settings.ApplyRepUpdate(next, req); err != nil {
			return err
		}
		next.ModifiedByUserID = &actorID
		next.UpdatedAt = s.clock.Now()

		if err := s.store.UpdateRepSettings(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("rep settings updated", "rep_id", repID, "version", updated.Version)
	s.publish(ctx, messagequeue.SubjectRepUpdated, messagequeue.RepUpdatedPayload{
		BusinessRepID: repID,
		Version:       updated.Version,
		UpdatedAt:     updated.UpdatedAt,
	})
	return updated, nil
}

// GetEffectiveSettings pairs a representative's settings with their business's
// settings as stored. Business settings are not created here; Business is nil
// when the representative has no business or it has no settings yet.
func (s *SettingsService) GetEffectiveSettings(ctx context.Context, repID string) (*settings.EffectiveSettings, error) {
	if repID == "" {
		return nil, fmt.Errorf("representative id is required: %w", domain.ErrInvalidArgument)
	}

	businessID, found, err := s.dir.BusinessForRep(ctx, repID)
	if err != nil {
		return nil, fmt.Errorf("resolve business for representative %q: %w", repID, err)
	}

	eff := &settings.EffectiveSettings{}
	if found {
		b, err := s.store.GetBusinessSettings(ctx, businessID)
		switch {
		case err == nil:
			eff.Business = settings.NewBusinessSettingsView(b, s.clock.Now())
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("load business settings %q: %w", businessID, err)
		}
	}

	rep, err := s.loadOrCreateRep(ctx, repID)
	if err != nil {
		return nil, err
	}
	eff.Rep = *rep
	return eff, nil
}

func (s *SettingsService) loadOrCreateBusiness(ctx context.Context, businessID string) (*settings.BusinessSettings, error) {
	b, err := s.store.GetBusinessSettings(ctx, businessID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load business settings %q: %w", businessID, err)
	}
	b, err = s.store.CreateBusinessSettings(ctx, businessID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create business settings %q: %w", businessID, err)
	}
	return b, nil
}

func (s *SettingsService) loadOrCreateRep(ctx context.Context, repID string) (*settings.RepSettings, error) {
	r, err := s.store.GetRepSettings(ctx, repID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load rep settings %q: %w", repID, err)
	}
	r, err = s.store.CreateRepSettings(ctx, repID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create rep settings %q: %w", repID, err)
	}
	return r, nil
}

// retryOnConflict runs fn until it returns something other than
// domain.ErrConflict, at most maxWriteAttempts times.
func (s *SettingsService) retryOnConflict(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		s.countConflict(ctx, op)
		slog.Debug("settings write conflict, retrying", "op", op, "attempt", attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// publish sends an event after a committed write. Failures are logged only.
func (s *SettingsService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal settings event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("settings event publish failed", "subject", subject, "error", err)
	}
}

func dndPayload(b *settings.BusinessSettings, actorID string, now time.Time) messagequeue.DndPayload {
	return messagequeue.DndPayload{
		BusinessID:     b.BusinessID,
		ActorID:        actorID,
		ExpiresAt:      b.DndModeExpiresAt,
		ExtensionCount: b.DndExtensionCount,
		OccurredAt:     now,
	}
}

func businessAttr(businessID string) metric.AddOption {
	return metric.WithAttributes(attribute.String("business.id", businessID))
}

func (s *SettingsService) countConflict(ctx context.Context, op string) {
	if s.metrics == nil {
		return
	}
	s.metrics.UpdateConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
