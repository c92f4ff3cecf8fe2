package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger/internal/accounting"
	"github.com/odyssey-erp/ledger/internal/accounting/balances"
	jobmetrics "github.com/odyssey-erp/ledger/internal/jobs"
)

// Integrity issue kinds reported to metrics.
const (
	IssueUnbalanced  = "unbalanced"
	IssueCachedDrift = "cached_drift"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityChecker derives the figures the job compares.
type IntegrityChecker interface {
	TrialBalance(ctx context.Context, orgID int64) (balances.TrialBalance, error)
	VerifyCachedBalances(ctx context.Context, orgID int64) ([]balances.Drift, error)
}

// OrgLister enumerates organisations owning ledger data.
type OrgLister interface {
	ListOrgIDs(ctx context.Context) ([]int64, error)
}

// StoreOrgs lists organisations from a ledger store snapshot.
type StoreOrgs struct {
	Store accounting.Store
}

// ListOrgIDs implements OrgLister.
func (s StoreOrgs) ListOrgIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.Store.View(ctx, func(ctx context.Context, rd accounting.Reader) error {
		var err error
		ids, err = rd.ListOrgIDs(ctx)
		return err
	})
	return ids, err
}

// IntegrityReport summarises one organisation's check.
type IntegrityReport struct {
	OrgID       int64            `json:"org_id"`
	Balanced    bool             `json:"balanced"`
	TotalDebit  string           `json:"total_debit"`
	TotalCredit string           `json:"total_credit"`
	Drifts      []balances.Drift `json:"drifts,omitempty"`
}

// Healthy reports whether no issue was found.
func (r IntegrityReport) Healthy() bool {
	return r.Balanced && len(r.Drifts) == 0
}

// GLIntegrityJob checks that posted lines balance and that cached account
// balances agree with them.
type GLIntegrityJob struct {
	Checker IntegrityChecker
	Orgs    OrgLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob constructs the job handler.
func NewGLIntegrityJob(checker IntegrityChecker, orgs OrgLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Checker: checker,
		Orgs:    orgs,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity job for an Asynq task.
func (j *GLIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.OrgID)
	return err
}

// Run checks one organisation, or all of them when orgID is zero. Integrity
// issues are reported through metrics and logs; only infrastructure failures
// return an error.
func (j *GLIntegrityJob) Run(ctx context.Context, orgID int64) (reports []IntegrityReport, resultErr error) {
	if j == nil || j.Checker == nil || j.Orgs == nil {
		return nil, errors.New("gl integrity: dependencies not configured")
	}
	tracker := j.metrics().Track(TaskGLIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	orgIDs := []int64{orgID}
	if orgID == 0 {
		ids, err := j.Orgs.ListOrgIDs(ctx)
		if err != nil {
			j.log().Error("list organisations", slog.Any("error", err))
			return nil, err
		}
		orgIDs = ids
	}

	start := j.now()
	issues := 0
	for _, id := range orgIDs {
		report, err := j.check(ctx, id)
		if err != nil {
			j.log().Error("check organisation", slog.Int64("org_id", id), slog.Any("error", err))
			return reports, err
		}
		if !report.Healthy() {
			issues++
		}
		reports = append(reports, report)
	}
	j.log().Info("gl integrity finished",
		slog.Int("orgs", len(orgIDs)),
		slog.Int("orgs_with_issues", issues),
		slog.Duration("duration", j.now().Sub(start)))
	return reports, nil
}

func (j *GLIntegrityJob) check(ctx context.Context, orgID int64) (IntegrityReport, error) {
	tb, err := j.Checker.TrialBalance(ctx, orgID)
	if err != nil {
		return IntegrityReport{}, err
	}
	drifts, err := j.Checker.VerifyCachedBalances(ctx, orgID)
	if err != nil {
		return IntegrityReport{}, err
	}
	report := IntegrityReport{
		OrgID:       orgID,
		Balanced:    tb.Balanced(),
		TotalDebit:  tb.TotalDebit.StringFixed(2),
		TotalCredit: tb.TotalCredit.StringFixed(2),
		Drifts:      drifts,
	}
	if !report.Balanced {
		j.metrics().AddIntegrityIssues(IssueUnbalanced, orgID, 1)
		j.log().Error("trial balance out of balance",
			slog.Int64("org_id", orgID),
			slog.String("total_debit", report.TotalDebit),
			slog.String("total_credit", report.TotalCredit))
	}
	if len(drifts) > 0 {
		j.metrics().AddIntegrityIssues(IssueCachedDrift, orgID, len(drifts))
		for _, d := range drifts {
			j.log().Warn("cached balance drift",
				slog.Int64("org_id", orgID),
				slog.String("code", d.Code),
				slog.String("cached", d.Cached.String()),
				slog.String("actual", d.Actual.String()))
		}
	}
	return report, nil
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *GLIntegrityJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
