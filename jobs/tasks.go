// Package jobs runs the batch side of the engine on Asynq: scheduled
// interest accrual runs and nightly rating refreshes.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/interest"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/rating"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInterestRun posts the scheduled interest batch for a company.
	TaskInterestRun = "interest:run"
	// TaskRatingRefresh re-rates every account of a company.
	TaskRatingRefresh = "rating:refresh"
)

// InterestRunPayload selects the company and run date for an accrual batch.
// An empty RunDate means "today".
type InterestRunPayload struct {
	Company string `json:"company"`
	RunDate string `json:"run_date,omitempty"`
}

// NewInterestRunTask constructs an Asynq task for an interest batch.
func NewInterestRunTask(payload InterestRunPayload) (*asynq.Task, error) {
	if payload.Company == "" {
		return nil, errors.New("jobs: interest run needs a company")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInterestRun, data), nil
}

// Auditor leaves a durable trail for batch executions. A nil auditor
// disables the trail.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// InterestRunJob executes scheduled accrual batches.
type InterestRunJob struct {
	svc     *interest.Service
	metrics *observability.Metrics
	audit   Auditor
	logger  *slog.Logger
}

// NewInterestRunJob constructs the job wired to the accrual service.
func NewInterestRunJob(svc *interest.Service, metrics *observability.Metrics, audit Auditor, logger *slog.Logger) *InterestRunJob {
	return &InterestRunJob{svc: svc, metrics: metrics, audit: audit, logger: logger}
}

// Handle processes TaskInterestRun tasks.
func (j *InterestRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload InterestRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Company == "" {
		return asynq.SkipRetry
	}

	runDate := time.Now().UTC()
	if payload.RunDate != "" {
		parsed, err := time.Parse("2006-01-02", payload.RunDate)
		if err != nil {
			return asynq.SkipRetry
		}
		runDate = parsed
	}

	proposal, decision, err := j.svc.Run(ctx, payload.Company, runDate)
	switch {
	case errors.Is(err, interest.ErrNothingToPost):
		// A re-fired schedule after a committed batch lands here.
		j.metrics.ObserveInterestRun("empty", 0)
		j.logger.Info("interest run had nothing to post", slog.String("company", payload.Company))
		return nil
	case err != nil:
		j.metrics.ObserveInterestRun("failed", 0)
		return err
	case decision != shared.DecisionComplete:
		j.metrics.ObserveInterestRun("cancelled", 0)
		return nil
	}
	j.metrics.ObserveInterestRun("committed", len(proposal.Postings))
	if j.audit != nil {
		entry := shared.AuditEntry{
			Actor:    "worker",
			Action:   "interest.run",
			Entity:   "interest_batch",
			EntityID: proposal.Batch,
			Meta: map[string]any{
				"company":  payload.Company,
				"postings": len(proposal.Postings),
				"skipped":  len(proposal.Skipped),
			},
		}
		if err := j.audit.Record(ctx, entry); err != nil {
			j.logger.Warn("record interest audit", slog.Any("error", err))
		}
	}
	return nil
}

// RatingRefreshPayload selects the company and reference period for a rating
// sweep. A zero Period means the current one.
type RatingRefreshPayload struct {
	Company string `json:"company"`
	Period  int    `json:"period,omitempty"`
}

// NewRatingRefreshTask constructs an Asynq task for a rating sweep.
func NewRatingRefreshTask(payload RatingRefreshPayload) (*asynq.Task, error) {
	if payload.Company == "" {
		return nil, errors.New("jobs: rating refresh needs a company")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRatingRefresh, data), nil
}

// RatingRefreshJob executes nightly rating sweeps.
type RatingRefreshJob struct {
	svc     *rating.Service
	metrics *observability.Metrics
	audit   Auditor
	logger  *slog.Logger
}

// NewRatingRefreshJob constructs the job wired to the rating service.
func NewRatingRefreshJob(svc *rating.Service, metrics *observability.Metrics, audit Auditor, logger *slog.Logger) *RatingRefreshJob {
	return &RatingRefreshJob{svc: svc, metrics: metrics, audit: audit, logger: logger}
}

// Handle processes TaskRatingRefresh tasks.
func (j *RatingRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RatingRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Company == "" {
		return asynq.SkipRetry
	}

	reference := shared.Period(payload.Period)
	if reference == 0 {
		reference = shared.PeriodOf(time.Now().UTC())
	}
	if !reference.Valid() {
		return asynq.SkipRetry
	}

	summary, err := j.svc.RefreshCompany(ctx, payload.Company, reference)
	if err != nil {
		return err
	}
	j.metrics.ObserveRatingUpdates(summary.Updated)
	if j.audit != nil {
		entry := shared.AuditEntry{
			Actor:    "worker",
			Action:   "rating.refresh",
			Entity:   "rating_sweep",
			EntityID: payload.Company + "-" + reference.String(),
			Meta: map[string]any{
				"evaluated": summary.Evaluated,
				"updated":   summary.Updated,
			},
		}
		if err := j.audit.Record(ctx, entry); err != nil {
			j.logger.Warn("record rating audit", slog.Any("error", err))
		}
	}
	j.logger.Info("rating refresh finished",
		slog.String("company", payload.Company),
		slog.Int("evaluated", summary.Evaluated),
		slog.Int("updated", summary.Updated),
	)
	return nil
}
