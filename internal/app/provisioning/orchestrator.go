package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// step is one stage of a plan. Errors a step returns without classifying
// them get the step's kind.
type step struct {
	name Step
	kind Kind
	run  func(ctx context.Context, st *rowState) error
}

// plan is the ordered step list of one variant plus its failure policy.
type plan struct {
	variant domain.Variant
	policy  Policy
	steps   []step
}

// Outcome is the result of one row.
type Outcome struct {
	Status    domain.AuditStatus
	AccountID string
	Err       *StepError
	Action    Action
	// Partial lists what the row created before it failed. Nothing is
	// rolled back.
	Partial []domain.Resource
}

// Aborted reports whether the batch must stop after this row.
func (o Outcome) Aborted() bool { return o.Action == ActionAbort }

// cleanup runs after the last step regardless of the outcome.
type cleanup struct {
	name string
	fn   func(ctx context.Context) error
}

// rowState carries what earlier steps of a row resolved or created.
type rowState struct {
	batch  *BatchContext
	record domain.ImportRecord
	base   domain.RecordBase

	agency     *domain.Agency
	settings   *domain.ConsultingTypeSettings
	assigned   *domain.Consultant
	agencyIDs  []int64
	roles      []domain.Role
	formal     bool
	accountID  string
	chat       domain.ChatCredentials
	user       *domain.User
	consultant *domain.Consultant
	session    *domain.Session
	rooms      []string
	created    []domain.Resource
	cleanups   []cleanup
}

func (st *rowState) track(kind domain.ResourceKind, id string) {
	st.created = append(st.created, domain.Resource{Kind: kind, ID: id})
}

func (st *rowState) onExit(name string, fn func(ctx context.Context) error) {
	st.cleanups = append(st.cleanups, cleanup{name: name, fn: fn})
}

// Process runs the plan of rec's variant and writes the row's audit entry.
func (o *Orchestrator) Process(ctx context.Context, batch *BatchContext, rec domain.ImportRecord) Outcome {
	base := rec.Base()
	ctx = ctxutil.WithRow(ctx, base.Row)
	log := o.rowLogger(batch, base)

	p, ok := o.plans[rec.Variant()]
	if !ok {
		err := asStepError(StepValidate, KindMalformedRow, fmt.Errorf("unsupported record variant %q", rec.Variant()))
		return o.finish(ctx, log, batch, base, AskerPolicy(), &rowState{}, err)
	}

	if batch.DryRun {
		out := Outcome{Status: domain.AuditStatusValidated}
		batch.Audit.Write(ctx, o.entry(base, out))
		log.InfoContext(ctx, "row validated")
		return out
	}

	st := &rowState{batch: batch, record: rec, base: base}
	// finish runs the cleanups; this only matters if a step panics.
	defer o.runCleanups(ctx, log, st)

	for _, s := range p.steps {
		started := time.Now()
		err := s.run(ctx, st)

		var kind Kind
		var se *StepError
		if err != nil {
			se = asStepError(s.name, s.kind, err)
			kind = se.Kind
		}
		if batch.Steps != nil {
			batch.Steps.ObserveStep(p.variant, s.name, time.Since(started), kind)
		}
		if se != nil {
			return o.finish(ctx, log, batch, base, p.policy, st, se)
		}
	}

	return o.finish(ctx, log, batch, base, p.policy, st, nil)
}

// Reject records a row that never reached a plan, typically because the
// validator refused it. base holds whatever identifying fields could be read.
func (o *Orchestrator) Reject(ctx context.Context, batch *BatchContext, base domain.RecordBase, err error) Outcome {
	ctx = ctxutil.WithRow(ctx, base.Row)
	se := asStepError(StepValidate, KindMalformedRow, err)
	return o.finish(ctx, o.rowLogger(batch, base), batch, base, PolicyFor(batch.Variant), &rowState{}, se)
}

func (o *Orchestrator) finish(
	ctx context.Context,
	log *slog.Logger,
	batch *BatchContext,
	base domain.RecordBase,
	policy Policy,
	st *rowState,
	se *StepError,
) Outcome {
	out := Outcome{Status: domain.AuditStatusSuccess, AccountID: st.accountID}

	if se != nil {
		out.Err = se
		out.Action = policy.Action(se.Kind)
		switch {
		case out.Action == ActionAbort:
			out.Status = domain.AuditStatusAborted
		case se.Kind == KindAlreadyExists:
			out.Status = domain.AuditStatusSkipped
		default:
			out.Status = domain.AuditStatusFailed
		}
		if len(st.created) > 0 {
			out.Partial = append([]domain.Resource(nil), st.created...)
		}
	}

	o.runCleanups(ctx, log, st)
	batch.Audit.Write(ctx, o.entry(base, out))

	switch out.Status {
	case domain.AuditStatusSuccess:
		log.InfoContext(ctx, "row provisioned", slog.String("account_id", out.AccountID))
	case domain.AuditStatusSkipped:
		log.InfoContext(ctx, "row skipped", slog.String("reason", se.Error()))
	case domain.AuditStatusFailed:
		log.WarnContext(ctx, "row failed",
			slog.String("kind", se.Kind.String()),
			slog.Int("partial", len(out.Partial)),
			slog.String("error", se.Error()),
		)
	case domain.AuditStatusAborted:
		log.ErrorContext(ctx, "row failed, aborting batch",
			slog.String("kind", se.Kind.String()),
			slog.Int("partial", len(out.Partial)),
			slog.String("error", se.Error()),
		)
	}

	return out
}

func (o *Orchestrator) entry(base domain.RecordBase, out Outcome) domain.AuditEntry {
	e := domain.AuditEntry{
		Time:       o.now(),
		Row:        base.Row,
		LegacyID:   base.LegacyID,
		Username:   base.Username,
		Status:     out.Status,
		InternalID: out.AccountID,
		Partial:    out.Partial,
	}
	if out.Err != nil {
		e.Kind = out.Err.Kind.String()
		e.Reason = out.Err.Error()
	}
	return e
}

// runCleanups runs the row's cleanups once, in reverse registration order,
// before the row's audit entry is written. They are not cancelled with the
// row context so a chat token is always released.
func (o *Orchestrator) runCleanups(ctx context.Context, log *slog.Logger, st *rowState) {
	ctx = context.WithoutCancel(ctx)
	cleanups := st.cleanups
	st.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := c.fn(ctx); err != nil {
			log.WarnContext(ctx, "row cleanup failed", slog.String("cleanup", c.name), slog.String("error", err.Error()))
		}
	}
}

// rowLogger tags row logs with the variant and username. The batch id and
// row number travel on the context.
func (o *Orchestrator) rowLogger(batch *BatchContext, base domain.RecordBase) *slog.Logger {
	return o.log.With(
		slog.String("variant", batch.Variant.String()),
		slog.String("username", base.Username),
	)
}

// ---------------------------------------------------------------------------
// Steps shared by all variants
// ---------------------------------------------------------------------------

// createAccount creates the identity-provider account.
func (o *Orchestrator) createAccount(profile func(st *rowState) domain.AccountProfile) func(context.Context, *rowState) error {
	return func(ctx context.Context, st *rowState) error {
		id, err := o.identity.CreateAccount(ctx, profile(st))
		if err != nil {
			return fmt.Errorf("create account %s: %w", st.base.UsernameEncoded, err)
		}
		if id == "" {
			return fmt.Errorf("create account %s: identity provider returned no account id", st.base.UsernameEncoded)
		}
		st.accountID = id
		st.track(domain.ResourceIdentityAccount, id)
		return nil
	}
}

// setCredentials sets the password and grants st.roles.
func (o *Orchestrator) setCredentials(ctx context.Context, st *rowState) error {
	if err := o.identity.SetPassword(ctx, st.accountID, st.base.Password); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	for _, role := range st.roles {
		if err := o.identity.AssignRole(ctx, st.accountID, role); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
	}
	return nil
}

// chatLogin performs the first chat login of the new account. The token is
// released when the row ends, whatever its outcome.
func (o *Orchestrator) chatLogin(ctx context.Context, st *rowState) error {
	creds, err := o.chat.Login(ctx, st.base.UsernameEncoded, st.base.Password)
	if err != nil {
		return fmt.Errorf("chat login %s: %w", st.base.UsernameEncoded, err)
	}
	st.chat = creds
	st.track(domain.ResourceChatUser, creds.UserID)
	st.onExit("chat logout", func(ctx context.Context) error {
		return o.chat.Logout(ctx, creds)
	})
	return nil
}

// resolveSettings loads the consulting type of agency. A missing consulting
// type is a broken reference in the agency, not a missing row target.
func (o *Orchestrator) resolveSettings(agency *domain.Agency) (*domain.ConsultingTypeSettings, error) {
	settings, err := o.consultingTypes.Get(agency.ConsultingTypeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, classified(KindInvalidReference,
				fmt.Errorf("agency %d: consulting type %d: %w", agency.ID, agency.ConsultingTypeID, err))
		}
		return nil, err
	}
	return settings, nil
}

// findAgency reads one agency and classifies a miss as missingKind.
func findAgency(ctx context.Context, r AgencyReader, id int64, missingKind Kind) (*domain.Agency, error) {
	agency, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, classified(missingKind, fmt.Errorf("agency %d: %w", id, err))
		}
		return nil, fmt.Errorf("agency %d: %w", id, err)
	}
	return agency, nil
}
