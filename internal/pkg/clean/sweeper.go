package clean

import (
	"context"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/robfig/cron/v3"

	"github.com/credentio/bulkissue/internal/pkg/messages"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/status"
	"github.com/credentio/bulkissue/internal/pkg/utils"
)

// IDsProvider returns expired submission IDs
type IDsProvider interface {
	GetExpired(ctx context.Context) ([]string, error)
}

// Runs accesses dispatch run counters
type Runs interface {
	LoadStaleRuns(ctx context.Context, olderThan time.Duration) ([]*persistence.DispatchRun, error)
	DeleteRun(ctx context.Context, jobID string) error
}

// DB loads and finalizes submissions during reconciliation
type DB interface {
	LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error)
	UpdateFileUploadStatus(ctx context.Context, id, status string) error
	CountFileData(ctx context.Context, fileUploadID string) (int64, error)
	CountErrorFileData(ctx context.Context, fileUploadID string) (int64, error)
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// SweeperData keeps data for scheduled housekeeping
type SweeperData struct {
	// cron specs, e.g. "@every 10m"
	CleanSchedule     string
	ReconcileSchedule string
	StaleAfter        time.Duration

	IDsProvider IDsProvider
	Cleaner     Cleaner
	Runs        Runs
	DB          DB
	MsgSender   MsgSender
}

// StartSweeps schedules the expired-submission and stale-run sweeps.
// Returned channel closes when sweeps are stopped after ctx cancel
func StartSweeps(ctx context.Context, data *SweeperData) (<-chan struct{}, error) {
	if err := validateSweeper(data); err != nil {
		return nil, err
	}
	c := cron.New()
	if _, err := c.AddFunc(data.CleanSchedule, func() { doClean(ctx, data) }); err != nil {
		return nil, fmt.Errorf("can't schedule clean: %w", err)
	}
	if _, err := c.AddFunc(data.ReconcileSchedule, func() { doReconcile(ctx, data) }); err != nil {
		return nil, fmt.Errorf("can't schedule reconcile: %w", err)
	}
	goapp.Log.Info().Str("clean", data.CleanSchedule).Str("reconcile", data.ReconcileSchedule).
		Msg("starting sweeps")
	c.Start()
	res := make(chan struct{})
	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		goapp.Log.Info().Msg("sweeps stopped")
		close(res)
	}()
	return res, nil
}

func doClean(ctx context.Context, data *SweeperData) {
	defer goapp.Estimate("clean sweep")()
	ids, err := data.IDsProvider.GetExpired(ctx)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't get expired IDs")
		return
	}
	for _, id := range ids {
		if err := data.Cleaner.Clean(ctx, id); err != nil {
			goapp.Log.Error().Err(err).Str("ID", id).Msg("can't clean")
		}
	}
	goapp.Log.Info().Int("count", len(ids)).Msg("clean sweep done")
}

func doReconcile(ctx context.Context, data *SweeperData) {
	defer goapp.Estimate("reconcile sweep")()
	runs, err := data.Runs.LoadStaleRuns(ctx, data.StaleAfter)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("can't load stale runs")
		return
	}
	for _, run := range runs {
		if err := reconcileRun(ctx, run, data); err != nil {
			goapp.Log.Error().Err(err).Str("jobID", run.JobID).Msg("can't reconcile run")
		}
	}
}

// reconcileRun finishes a dispatch run whose counter went stale -
// the worker crashed between the last row outcome and finalization
func reconcileRun(ctx context.Context, run *persistence.DispatchRun, data *SweeperData) error {
	fu, err := data.DB.LoadFileUpload(ctx, run.FileUploadID)
	if err != nil {
		return fmt.Errorf("can't load submission: %w", err)
	}
	if fu == nil || !runMatchesStatus(run, fu) {
		goapp.Log.Info().Str("jobID", run.JobID).Msg("run obsolete, drop")
		return data.Runs.DeleteRun(ctx, run.JobID)
	}
	all, err := data.DB.CountFileData(ctx, run.FileUploadID)
	if err != nil {
		return fmt.Errorf("can't count rows: %w", err)
	}
	errs, err := data.DB.CountErrorFileData(ctx, run.FileUploadID)
	if err != nil {
		return fmt.Errorf("can't count errors: %w", err)
	}
	if all-errs > 0 {
		goapp.Log.Warn().Str("jobID", run.JobID).Int64("pending", all-errs).Msg("run still has pending rows, skip")
		return nil
	}
	st := status.Final(errs)
	if err := data.DB.UpdateFileUploadStatus(ctx, run.FileUploadID, st.String()); err != nil {
		return fmt.Errorf("can't update status: %w", err)
	}
	msg := &messages.ProgressMessage{QueueMessage: amessages.QueueMessage{ID: run.FileUploadID},
		Event: messages.EventCompleted(run.IsRetry), FileUploadID: run.FileUploadID,
		ClientID: utils.FromSQLStr(run.ClientID)}
	if err := data.MsgSender.SendMessage(ctx, msg, messages.Progress); err != nil {
		return fmt.Errorf("can't send completion event: %w", err)
	}
	goapp.Log.Info().Str("ID", run.FileUploadID).Str("status", st.String()).Msg("run reconciled")
	return data.Runs.DeleteRun(ctx, run.JobID)
}

// runMatchesStatus tells if the run can still belong to the submission.
// A retry run leaves the submission at PARTIALLY_COMPLETED, the retry entry
// does not flip the status back to STARTED
func runMatchesStatus(run *persistence.DispatchRun, fu *persistence.FileUpload) bool {
	st := status.From(fu.Status)
	if run.IsRetry {
		return st == status.PartiallyCompleted
	}
	return st == status.Started
}

func validateSweeper(data *SweeperData) error {
	if data.CleanSchedule == "" || data.ReconcileSchedule == "" {
		return fmt.Errorf("no schedule")
	}
	if data.StaleAfter <= 0 {
		return fmt.Errorf("no stale threshold")
	}
	if data.IDsProvider == nil {
		return fmt.Errorf("no IDs provider")
	}
	if data.Cleaner == nil {
		return fmt.Errorf("no cleaner")
	}
	if data.Runs == nil {
		return fmt.Errorf("no runs")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	return nil
}
