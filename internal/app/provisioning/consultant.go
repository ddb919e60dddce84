package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/account-import/internal/domain"
)

func consultantRecord(rec domain.ImportRecord) (domain.ConsultantRecord, error) {
	switch r := rec.(type) {
	case domain.ConsultantRecord:
		return r, nil
	case *domain.ConsultantRecord:
		return *r, nil
	}
	return domain.ConsultantRecord{}, classified(KindMalformedRow, fmt.Errorf("record %T is not a consultant", rec))
}

func consultantProfile(st *rowState) domain.AccountProfile {
	rec, _ := consultantRecord(st.record)
	return domain.AccountProfile{
		Username:  st.base.UsernameEncoded,
		Email:     st.base.Email,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
	}
}

// resolveConsultant reads every agency of the record uncached, looks up the
// named role set in the agency's consulting type and accumulates the roles.
// The consultant speaks formally as soon as one consulting type does.
func (o *Orchestrator) resolveConsultant(ctx context.Context, st *rowState) error {
	rec, err := consultantRecord(st.record)
	if err != nil {
		return err
	}
	if len(rec.AgencyRoleSets) == 0 {
		return classified(KindMalformedRow, errors.New("no agencies given"))
	}

	seenRole := make(map[domain.Role]bool)
	for _, ar := range rec.AgencyRoleSets {
		agency, err := findAgency(ctx, o.agencies, ar.AgencyID, KindInvalidReference)
		if err != nil {
			return err
		}
		settings, err := o.resolveSettings(agency)
		if err != nil {
			return err
		}

		roles, err := settings.ConsultantRoles.Roles(ar.RoleSet)
		if err != nil {
			return classified(KindInvalidReference,
				fmt.Errorf("agency %d (consulting type %d): %w", agency.ID, settings.ID, err))
		}
		for _, role := range roles {
			if !seenRole[role] {
				seenRole[role] = true
				st.roles = append(st.roles, role)
			}
		}
		st.formal = st.formal || settings.LanguageFormal
	}

	st.agencyIDs = rec.AgencyIDs()
	return nil
}

type consultantLookup struct {
	by    string
	value string
	find  func(context.Context, string) (*domain.Consultant, error)
}

// checkConsultantAvailable looks for an existing consultant by plain
// username, then encoded username, then email.
func (o *Orchestrator) checkConsultantAvailable(ctx context.Context, st *rowState) error {
	lookups := []consultantLookup{
		{"username", st.base.Username, o.consultants.FindByUsername},
		{"encoded username", st.base.UsernameEncoded, o.consultants.FindByUsername},
	}
	if st.base.Email != nil {
		lookups = append(lookups, consultantLookup{"email", *st.base.Email, o.consultants.FindByEmail})
	}

	for _, l := range lookups {
		existing, err := l.find(ctx, l.value)
		switch {
		case err == nil:
			return classified(KindAlreadyExists,
				fmt.Errorf("consultant with %s %q (%s): %w", l.by, l.value, existing.ID, domain.ErrAlreadyExists))
		case errors.Is(err, domain.ErrNotFound):
			continue
		default:
			return fmt.Errorf("find consultant by %s: %w", l.by, err)
		}
	}
	return nil
}

// persistConsultant stores the consultant and its agency memberships in one
// transaction.
func (o *Orchestrator) persistConsultant(ctx context.Context, st *rowState) error {
	rec, err := consultantRecord(st.record)
	if err != nil {
		return err
	}

	var email string
	if st.base.Email != nil {
		email = *st.base.Email
	}

	err = o.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := o.consultants.Create(ctx, &domain.Consultant{
			ExternalAccountID: st.accountID,
			LegacyID:          st.base.LegacyID,
			Username:          st.base.Username,
			UsernameEncoded:   st.base.UsernameEncoded,
			FirstName:         rec.FirstName,
			LastName:          rec.LastName,
			Email:             email,
			ChatUserID:        st.chat.UserID,
			Absent:            rec.Absent,
			AbsenceMessage:    rec.AbsenceMessage,
			TeamConsultant:    rec.TeamConsultant,
			LanguageFormal:    st.formal,
		})
		if err != nil {
			return fmt.Errorf("create consultant: %w", err)
		}
		if c.ExternalAccountID == "" {
			return fmt.Errorf("consultant %s persisted without external account id", c.ID)
		}

		for _, agencyID := range st.agencyIDs {
			if err := o.consultants.SaveAgencyMembership(ctx, c.ID, agencyID); err != nil {
				return fmt.Errorf("save membership in agency %d: %w", agencyID, err)
			}
		}
		st.consultant = c
		return nil
	})
	if err != nil {
		return err
	}

	st.track(domain.ResourceConsultant, st.consultant.ID.String())
	return nil
}

// resyncRooms adds the new consultant to the rooms of open enquiries and
// in-progress team sessions of its agencies. The technical user joins each
// room just long enough to invite the consultant. Consultants allowed to
// view all feedback sessions join existing feedback rooms as well.
func (o *Orchestrator) resyncRooms(ctx context.Context, st *rowState) error {
	open, err := o.sessions.FindOpenForAgencies(ctx, st.agencyIDs)
	if err != nil {
		return classified(KindPersistence, fmt.Errorf("find open sessions: %w", err))
	}
	team, err := o.sessions.FindInProgressTeamForAgencies(ctx, st.agencyIDs)
	if err != nil {
		return classified(KindPersistence, fmt.Errorf("find team sessions: %w", err))
	}

	withFeedback := domain.RolesGrant(st.roles, domain.AuthorityViewAllFeedbackSessions)
	seen := make(map[string]bool)

	for _, sess := range append(open, team...) {
		rooms := []*string{sess.ChatRoomID}
		if withFeedback {
			rooms = append(rooms, sess.FeedbackChatRoomID)
		}
		for _, room := range rooms {
			if room == nil || *room == "" || seen[*room] {
				continue
			}
			seen[*room] = true
			if err := o.joinRoom(ctx, st, *room); err != nil {
				return fmt.Errorf("session %s: %w", sess.ID, err)
			}
		}
	}
	return nil
}

// joinRoom adds the technical user, then the consultant, then removes the
// technical user again. Failing to remove it only gets logged.
func (o *Orchestrator) joinRoom(ctx context.Context, st *rowState, roomID string) error {
	tech := st.batch.Technical

	if err := o.chat.AddUserToRoom(ctx, tech, roomID, tech.UserID); err != nil {
		return fmt.Errorf("add technical user to %s: %w", roomID, err)
	}

	addErr := o.chat.AddUserToRoom(ctx, tech, roomID, st.chat.UserID)

	if err := o.chat.RemoveUserFromRoom(ctx, tech, roomID, tech.UserID); err != nil {
		o.log.WarnContext(ctx, "remove technical user from room",
			slog.String("room_id", roomID),
			slog.String("error", err.Error()),
		)
	}

	if addErr != nil {
		return fmt.Errorf("add consultant to %s: %w", roomID, addErr)
	}
	return nil
}
