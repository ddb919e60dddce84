// Package importer reads an import file row by row and hands every valid row
// to the provisioning orchestrator. It owns the batch: the import run record,
// the batch chat sessions, the audit log file and the metrics.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/adapter/auditlog"
	"github.com/heartmarshall/account-import/internal/app/provisioning"
	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// ErrAborted is returned by Run when a row stopped the batch.
var ErrAborted = errors.New("import aborted")

type processor interface {
	Process(ctx context.Context, batch *provisioning.BatchContext, rec domain.ImportRecord) provisioning.Outcome
	Reject(ctx context.Context, batch *provisioning.BatchContext, base domain.RecordBase, err error) provisioning.Outcome
}

type chatSessions interface {
	Login(ctx context.Context, username, password string) (domain.ChatCredentials, error)
	Logout(ctx context.Context, creds domain.ChatCredentials) error
}

type runRepo interface {
	Create(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error)
	Finish(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error)
}

type auditLog interface {
	provisioning.AuditWriter
	Path() string
}

// rowSource is satisfied by *Source.
type rowSource interface {
	Next() (Row, error)
	Close() error
}

// Summary holds the counters of one batch run.
type Summary struct {
	RunID       uuid.UUID
	Variant     domain.Variant
	LogPath     string
	Processed   int
	Succeeded   int
	Skipped     int
	Failed      int
	Aborted     bool
	AbortReason string
}

// Driver runs import batches. A Driver runs one batch at a time.
type Driver struct {
	log       *slog.Logger
	processor processor
	chat      chatSessions
	runs      runRepo
	agencies  func() provisioning.AgencyReader
	validator *Validator
	metrics   *Metrics
	cfg       config.ImportConfig
	chatCfg   config.ChatConfig

	openSource func(path string) (rowSource, error)
	openAudit  func(start time.Time) auditLog
	now        func() time.Time
}

// NewDriver creates a Driver. agencies is called once per batch and returns
// the batch-scoped agency cache.
func NewDriver(
	logger *slog.Logger,
	proc processor,
	chat chatSessions,
	runs runRepo,
	agencies func() provisioning.AgencyReader,
	metrics *Metrics,
	cfg config.ImportConfig,
	chatCfg config.ChatConfig,
) *Driver {
	log := logger.With("service", "importer")
	return &Driver{
		log:       log,
		processor: proc,
		chat:      chat,
		runs:      runs,
		agencies:  agencies,
		validator: NewValidator(cfg),
		metrics:   metrics,
		cfg:       cfg,
		chatCfg:   chatCfg,
		openSource: func(path string) (rowSource, error) {
			return OpenSource(path, cfg)
		},
		openAudit: func(start time.Time) auditLog {
			return auditlog.New(cfg.ProtocolPath, start, log)
		},
		now: time.Now,
	}
}

// Run imports every row of sourcePath as variant. Rows are processed in file
// order, one at a time. The batch stops at the first row whose failure policy
// says abort; Run then returns the summary and an error wrapping ErrAborted.
func (d *Driver) Run(ctx context.Context, variant domain.Variant, sourcePath string) (Summary, error) {
	if !variant.IsValid() {
		return Summary{}, fmt.Errorf("unsupported variant %q", variant)
	}

	started := d.now()
	src, err := d.openSource(sourcePath)
	if err != nil {
		return Summary{}, err
	}
	sourceOpen := true
	closeSource := func() {
		if !sourceOpen {
			return
		}
		sourceOpen = false
		if err := src.Close(); err != nil {
			d.log.WarnContext(ctx, "close import file", slog.String("error", err.Error()))
		}
	}
	defer closeSource()

	audit := d.openAudit(started)
	run := domain.ImportRun{
		ID:         uuid.New(),
		Variant:    variant,
		SourcePath: sourcePath,
		LogPath:    audit.Path(),
		StartedAt:  started,
	}
	if !d.cfg.DryRun {
		run, err = d.runs.Create(ctx, run)
		if err != nil {
			return Summary{}, fmt.Errorf("create import run: %w", err)
		}
	}

	batch := &provisioning.BatchContext{
		ID:        run.ID,
		Variant:   variant,
		StartedAt: started,
		DryRun:    d.cfg.DryRun,
		Audit:     audit,
		Agencies:  d.agencies(),
		Steps:     d.metrics,
	}
	ctx = ctxutil.WithBatchID(ctx, run.ID)
	log := d.log.With(slog.String("variant", variant.String()))
	log.InfoContext(ctx, "import started",
		slog.String("source", sourcePath),
		slog.String("protocol", audit.Path()),
		slog.Bool("dry_run", batch.DryRun),
	)

	sum := Summary{RunID: run.ID, Variant: variant, LogPath: audit.Path()}

	runErr := d.login(ctx, batch)
	if runErr == nil {
		runErr = d.processRows(ctx, src, batch, &sum)
		closeSource()
		d.logout(ctx, log, batch)
	}

	status := domain.ImportRunCompleted
	switch {
	case sum.Aborted:
		status = domain.ImportRunAborted
	case runErr != nil:
		status = domain.ImportRunFailed
	}
	finished := d.finish(ctx, log, run, status, sum, runErr)
	d.exportMetrics(ctx, log, variant, status, started, finished)

	log.InfoContext(ctx, "import finished",
		slog.String("status", status.String()),
		slog.Int("processed", sum.Processed),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", finished.Sub(started)),
	)

	if sum.Aborted {
		return sum, fmt.Errorf("%w at row %d: %s", ErrAborted, sum.Processed, sum.AbortReason)
	}
	return sum, runErr
}

func (d *Driver) processRows(ctx context.Context, src rowSource, batch *provisioning.BatchContext, sum *Summary) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import interrupted: %w", err)
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var out provisioning.Outcome
		var parseErr *csv.ParseError
		switch {
		case errors.As(err, &parseErr):
			base := domain.RecordBase{Row: parseErr.StartLine}
			out = d.processor.Reject(ctx, batch, base, domain.NewValidationError("row", parseErr.Err.Error()))
		case err != nil:
			return fmt.Errorf("read import file: %w", err)
		default:
			out = d.processRow(ctx, batch, row)
		}

		d.count(batch.Variant, sum, out)
		if out.Aborted() {
			sum.Aborted = true
			if out.Err != nil {
				sum.AbortReason = out.Err.Error()
			}
			return nil
		}
	}
}

func (d *Driver) processRow(ctx context.Context, batch *provisioning.BatchContext, row Row) provisioning.Outcome {
	rec, err := d.validator.Validate(batch.Variant, row)
	if err != nil {
		return d.processor.Reject(ctx, batch, Identify(row), err)
	}
	return d.processor.Process(ctx, batch, rec)
}

func (d *Driver) count(variant domain.Variant, sum *Summary, out provisioning.Outcome) {
	sum.Processed++
	switch out.Status {
	case domain.AuditStatusSuccess, domain.AuditStatusValidated:
		sum.Succeeded++
	case domain.AuditStatusSkipped:
		sum.Skipped++
	default:
		sum.Failed++
	}
	d.metrics.ObserveRow(variant, out.Status)
}

// login opens the batch chat sessions. Dry runs make no chat calls.
func (d *Driver) login(ctx context.Context, batch *provisioning.BatchContext) error {
	if batch.DryRun {
		return nil
	}

	system, err := d.chat.Login(ctx, d.chatCfg.SystemUsername, d.chatCfg.SystemPassword)
	if err != nil {
		return fmt.Errorf("login chat system user: %w", err)
	}
	technical, err := d.chat.Login(ctx, d.chatCfg.TechnicalUsername, d.chatCfg.TechnicalPassword)
	if err != nil {
		if lerr := d.chat.Logout(context.WithoutCancel(ctx), system); lerr != nil {
			d.log.WarnContext(ctx, "logout chat system user", slog.String("error", lerr.Error()))
		}
		return fmt.Errorf("login chat technical user: %w", err)
	}

	batch.System = system
	batch.Technical = technical
	return nil
}

func (d *Driver) logout(ctx context.Context, log *slog.Logger, batch *provisioning.BatchContext) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range []struct {
		name  string
		creds domain.ChatCredentials
	}{
		{"technical", batch.Technical},
		{"system", batch.System},
	} {
		if u.creds.IsZero() {
			continue
		}
		if err := d.chat.Logout(ctx, u.creds); err != nil {
			log.WarnContext(ctx, "logout batch chat user", slog.String("user", u.name), slog.String("error", err.Error()))
		}
	}
}

// finish stores the final run state. The run is recorded even when ctx was
// cancelled.
func (d *Driver) finish(
	ctx context.Context,
	log *slog.Logger,
	run domain.ImportRun,
	status domain.ImportRunStatus,
	sum Summary,
	runErr error,
) time.Time {
	finished := d.now()
	if d.cfg.DryRun {
		return finished
	}

	run.Status = status
	run.Processed = sum.Processed
	run.Succeeded = sum.Succeeded
	run.Skipped = sum.Skipped
	run.Failed = sum.Failed
	run.FinishedAt = &finished
	switch {
	case sum.Aborted:
		reason := sum.AbortReason
		run.Error = &reason
	case runErr != nil:
		reason := runErr.Error()
		run.Error = &reason
	}

	if _, err := d.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.ErrorContext(ctx, "finish import run", slog.String("error", err.Error()))
	}
	return finished
}

func (d *Driver) exportMetrics(
	ctx context.Context,
	log *slog.Logger,
	variant domain.Variant,
	status domain.ImportRunStatus,
	started, finished time.Time,
) {
	d.metrics.ObserveRun(variant, status, started, finished)
	if d.cfg.MetricsTextfile == "" {
		return
	}
	if err := d.metrics.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
		log.WarnContext(ctx, "export metrics", slog.String("error", err.Error()))
	}
}
