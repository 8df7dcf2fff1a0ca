package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vgarvardt/gue/v5"

	aapi "github.com/credentio/bulkissue/internal/pkg/agent/api"
	"github.com/credentio/bulkissue/internal/pkg/api"
	"github.com/credentio/bulkissue/internal/pkg/messages"
	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/status"
	"github.com/credentio/bulkissue/internal/pkg/utils"
	"github.com/credentio/bulkissue/internal/pkg/utils/handler"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// DB provides persistence functionality
type DB interface {
	LoadFileUpload(ctx context.Context, id string) (*persistence.FileUpload, error)
	UpdateFileUploadStatus(ctx context.Context, id, status string) error
	DeleteFileData(ctx context.Context, id string) error
	MarkFileDataError(ctx context.Context, id, errStr, errDetail string) error
	CountErrorFileData(ctx context.Context, fileUploadID string) (int64, error)
	InsertFileAudit(ctx context.Context, item *persistence.FileAudit) error
}

// Tracker counts processed jobs of a dispatch run.
// Must return true exactly once per run - for the job completing it
type Tracker interface {
	MarkProcessed(ctx context.Context, jobID, rowID string, total int) (bool, error)
}

// AgentProvider returns a wallet agent for the run
type AgentProvider interface {
	Get(srv string, allowNew bool) (aapi.Issuer, string, error)
}

// TemplateProvider returns certificate template definitions
type TemplateProvider interface {
	Get(ctx context.Context, id string) (*persistence.Template, error)
}

// ReqCache drops cached parsed upload after the first attempt finishes
type ReqCache interface {
	Delete(ctx context.Context, id string) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	MsgSender   MsgSender
	DB          DB
	Tracker     Tracker
	Agents      AgentProvider
	Templates   TemplateProvider
	ReqCache    ReqCache
	Testing     bool
}

// StartWorkerService starts the event queue listener service to listen for issue jobs
// returns channel for tracking if all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}

	wm := gue.WorkMap{
		messages.Issue: handler.Create(data, handleIssue, handler.DefaultOpts[messages.IssueMessage]().
			WithTimeout(time.Minute*5).WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Issue),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("issue-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleIssue(ctx context.Context, m *messages.IssueMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("jobID", m.JobID).Msg("handling issue")
	fu, err := data.DB.LoadFileUpload(ctx, m.FileUploadID)
	if err != nil {
		return fmt.Errorf("can't load submission: %w", err)
	}
	if fu == nil {
		goapp.Log.Warn().Str("ID", m.FileUploadID).Msg("submission gone, drop job")
		return nil
	}

	issuer, srv, err := data.Agents.Get(m.JobID, true)
	if err != nil {
		return fmt.Errorf("can't select agent: %w", err)
	}
	if issuer == nil {
		return fmt.Errorf("no active wallet agent")
	}
	goapp.Log.Debug().Str("srv", srv).Str("ID", m.ID).Msg("agent selected")

	issueData, err := makeIssueData(ctx, m, fu, data)
	if err != nil {
		return fmt.Errorf("can't prepare issue data: %w", err)
	}

	errIssue := issuer.IssueCredential(ctx, issueData)
	if errIssue != nil {
		var errRow *utils.ErrIssuance
		if !errors.As(errIssue, &errRow) {
			// transient failure, let gue redeliver before counting
			return fmt.Errorf("can't issue: %w", errIssue)
		}
		goapp.Log.Warn().Err(errIssue).Str("ID", m.ID).Msg("row failed")
		if err := data.DB.MarkFileDataError(ctx, m.ID, errRow.Error(), errRow.Detail); err != nil {
			return fmt.Errorf("can't mark row error: %w", err)
		}
	} else {
		if err := data.DB.DeleteFileData(ctx, m.ID); err != nil {
			return fmt.Errorf("can't delete row: %w", err)
		}
	}

	if err := saveAudit(ctx, m, errIssue, data); err != nil {
		return err
	}

	last, err := data.Tracker.MarkProcessed(ctx, m.JobID, m.ID, m.TotalJobs)
	if err != nil {
		return fmt.Errorf("can't mark processed: %w", err)
	}
	if !last {
		return nil
	}
	goapp.Log.Info().Str("jobID", m.JobID).Str("ID", m.FileUploadID).Msg("last job of run")
	return finalize(ctx, m, fu, data)
}

func saveAudit(ctx context.Context, m *messages.IssueMessage, errIssue error, data *ServiceData) error {
	audit := &persistence.FileAudit{
		ID:           uuid.NewString(),
		FileUploadID: m.FileUploadID,
		FileDataID:   m.ID,
		ReferenceID:  m.ReferenceID,
		Created:      time.Now(),
	}
	if errIssue != nil {
		audit.IsError = true
		audit.Error = utils.ToSQLStr(errIssue.Error())
		var errRow *utils.ErrIssuance
		if errors.As(errIssue, &errRow) {
			audit.ErrorDetail = utils.ToSQLStr(errRow.Detail)
		}
	}
	if err := data.DB.InsertFileAudit(ctx, audit); err != nil {
		return fmt.Errorf("can't save audit: %w", err)
	}
	return nil
}

func makeIssueData(ctx context.Context, m *messages.IssueMessage, fu *persistence.FileUpload, data *ServiceData) (*aapi.IssueData, error) {
	res := &aapi.IssueData{
		ReferenceID:    m.ReferenceID,
		CredentialType: credType(fu),
		SchemaID:       m.SchemaID,
		CredDefID:      m.CredDefID,
		OrgID:          m.OrgID,
		Logo:           m.Logo,
	}
	templateID := m.TemplateID
	if templateID == "" {
		templateID = utils.FromSQLStr(fu.TemplateID)
	}
	if res.CredentialType == api.CredTypeIndy && templateID != "" {
		tmpl, err := data.Templates.Get(ctx, templateID)
		if err != nil {
			return nil, fmt.Errorf("can't load template: %w", err)
		}
		res.Template = tmpl.Name
		if res.SchemaID == "" {
			res.SchemaID = tmpl.SchemaID
		}
		if res.CredDefID == "" {
			res.CredDefID = tmpl.CredDefID
		}
		if res.Logo == "" {
			res.Logo = utils.FromSQLStr(tmpl.Logo)
		}
		for _, a := range tmpl.Attributes {
			res.Attributes = append(res.Attributes, aapi.Attribute{Name: a, Value: m.Payload[a]})
		}
	} else {
		for k, v := range m.Payload {
			res.Attributes = append(res.Attributes, aapi.Attribute{Name: k, Value: v})
		}
		sort.Slice(res.Attributes, func(i, j int) bool { return res.Attributes[i].Name < res.Attributes[j].Name })
	}
	return res, nil
}

func credType(fu *persistence.FileUpload) string {
	if fu.CredentialType == "" {
		return api.CredTypeDefault
	}
	return fu.CredentialType
}

func finalize(ctx context.Context, m *messages.IssueMessage, fu *persistence.FileUpload, data *ServiceData) error {
	errCount, err := data.DB.CountErrorFileData(ctx, m.FileUploadID)
	if err != nil {
		return failFinalize(ctx, m, data, fmt.Errorf("can't count errors: %w", err))
	}
	st := status.Final(errCount)
	if err := data.DB.UpdateFileUploadStatus(ctx, m.FileUploadID, st.String()); err != nil {
		return failFinalize(ctx, m, data, fmt.Errorf("can't update status: %w", err))
	}
	goapp.Log.Info().Str("ID", m.FileUploadID).Str("status", st.String()).Int64("errors", errCount).Msg("run finished")

	msg := &messages.ProgressMessage{QueueMessage: amessages.QueueMessage{ID: m.FileUploadID},
		Event: messages.EventCompleted(m.IsRetry), FileUploadID: m.FileUploadID, ClientID: m.ClientID}
	if err := data.MsgSender.SendMessage(ctx, msg, messages.Progress); err != nil {
		return failFinalize(ctx, m, data, fmt.Errorf("can't send completion event: %w", err))
	}

	if m.IsRetry {
		return nil
	}
	if reqID := utils.FromSQLStr(fu.RequestID); reqID != "" {
		if err := data.ReqCache.Delete(ctx, reqID); err != nil {
			goapp.Log.Error().Err(err).Str("ID", reqID).Msg("can't drop request cache")
		}
	}
	err = data.MsgSender.SendMessage(ctx, &amessages.InformMessage{
		QueueMessage: amessages.QueueMessage{ID: m.FileUploadID},
		Type:         amessages.InformTypeFinished, At: time.Now()}, messages.Inform)
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", m.FileUploadID).Msg("can't send inform msg")
	}
	return nil
}

func failFinalize(ctx context.Context, m *messages.IssueMessage, data *ServiceData, err error) error {
	goapp.Log.Error().Err(err).Str("ID", m.FileUploadID).Msg("finalize failed")
	msg := &messages.ProgressMessage{QueueMessage: amessages.QueueMessage{ID: m.FileUploadID},
		Event: messages.EventError(m.IsRetry), FileUploadID: m.FileUploadID, ClientID: m.ClientID}
	if errS := data.MsgSender.SendMessage(ctx, msg, messages.Progress); errS != nil {
		goapp.Log.Error().Err(errS).Str("ID", m.FileUploadID).Msg("can't send error event")
	}
	return err
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.Tracker == nil {
		return fmt.Errorf("no tracker")
	}
	if data.Agents == nil {
		return fmt.Errorf("no agent provider")
	}
	if data.Templates == nil {
		return fmt.Errorf("no template provider")
	}
	if data.ReqCache == nil {
		return fmt.Errorf("no request cache")
	}
	return nil
}
