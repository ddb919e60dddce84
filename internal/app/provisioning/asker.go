package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/domain"
)

// askerFields returns the agency, postcode and assigned consultant of either
// asker variant.
// withSession is nil for askers without a session.
func askerFields(rec domain.ImportRecord) (agencyID int64, postcode string, withSession *domain.AskerRecord, err error) {
	switch r := rec.(type) {
	case domain.AskerRecord:
		return r.AgencyID, r.Postcode, &r, nil
	case *domain.AskerRecord:
		return r.AgencyID, r.Postcode, r, nil
	case domain.AskerWithoutSessionRecord:
		return r.AgencyID, r.Postcode, nil, nil
	case *domain.AskerWithoutSessionRecord:
		return r.AgencyID, r.Postcode, nil, nil
	}
	return 0, "", nil, classified(KindMalformedRow, fmt.Errorf("record %T is not an asker", rec))
}

// resolveAsker reads the agency through the batch cache, its consulting
// type and, when given, the assigned consultant.
func (o *Orchestrator) resolveAsker(ctx context.Context, st *rowState) error {
	agencyID, _, withSession, err := askerFields(st.record)
	if err != nil {
		return err
	}

	reader := st.batch.Agencies
	if reader == nil {
		reader = o.agencies
	}
	agency, err := findAgency(ctx, reader, agencyID, KindNotFound)
	if err != nil {
		return err
	}
	settings, err := o.resolveSettings(agency)
	if err != nil {
		return err
	}

	if withSession != nil && withSession.ConsultantID != nil {
		c, err := o.consultants.GetByID(ctx, *withSession.ConsultantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return classified(KindNotFound, fmt.Errorf("assigned consultant %s: %w", withSession.ConsultantID, err))
			}
			return fmt.Errorf("assigned consultant %s: %w", withSession.ConsultantID, err)
		}
		st.assigned = c
	}

	st.agency = agency
	st.settings = settings
	st.agencyIDs = []int64{agency.ID}
	st.roles = []domain.Role{o.cfg.DefaultRole}
	st.formal = settings.LanguageFormal
	return nil
}

// checkAskerAvailable asks the identity provider whether the encoded
// username is still free.
func (o *Orchestrator) checkAskerAvailable(ctx context.Context, st *rowState) error {
	ok, err := o.identity.IsUsernameAvailable(ctx, st.base.UsernameEncoded)
	if err != nil {
		return fmt.Errorf("check username %s: %w", st.base.UsernameEncoded, err)
	}
	if !ok {
		return classified(KindAlreadyExists, fmt.Errorf("username %s: %w", st.base.Username, domain.ErrAlreadyExists))
	}
	return nil
}

// persistAsker stores the user and, for askers without a session, its
// agency link in one transaction.
func (o *Orchestrator) persistAsker(ctx context.Context, st *rowState) error {
	_, _, withSession, err := askerFields(st.record)
	if err != nil {
		return err
	}

	err = o.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := o.users.Create(ctx, &domain.User{
			ExternalAccountID: st.accountID,
			LegacyID:          st.base.LegacyID,
			Username:          st.base.Username,
			UsernameEncoded:   st.base.UsernameEncoded,
			Email:             st.base.Email,
			ChatUserID:        st.chat.UserID,
			LanguageFormal:    st.formal,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if u.ExternalAccountID == "" {
			return fmt.Errorf("user %s persisted without external account id", u.ID)
		}

		if withSession == nil {
			if err := o.users.SaveUserAgency(ctx, u.ID, st.agency.ID); err != nil {
				return fmt.Errorf("link user to agency %d: %w", st.agency.ID, err)
			}
		}
		st.user = u
		return nil
	})
	if err != nil {
		return err
	}

	st.track(domain.ResourceUser, st.user.ID.String())
	return nil
}

// setupSession creates the in-progress session and its rooms, adds the
// system user and the entitled consultants, then purges the join messages.
func (o *Orchestrator) setupSession(ctx context.Context, st *rowState) error {
	_, postcode, rec, err := askerFields(st.record)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("record %T carries no session", st.record)
	}

	sess, err := o.sessions.Create(ctx, &domain.Session{
		UserID:           st.user.ID,
		ConsultantID:     rec.ConsultantID,
		AgencyID:         st.agency.ID,
		ConsultingTypeID: st.settings.ID,
		Postcode:         postcode,
		Status:           domain.SessionStatusInProgress,
		IsTeamSession:    st.agency.TeamAgency,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	st.session = sess
	st.track(domain.ResourceSession, sess.ID.String())

	roomID, err := o.chat.CreatePrivateRoom(ctx, st.chat, sess.ID.String())
	if err != nil {
		return fmt.Errorf("create chat room: %w", err)
	}
	st.track(domain.ResourceChatRoom, roomID)
	st.rooms = append(st.rooms, roomID)

	var feedbackRoomID *string
	if st.settings.FeedbackChat {
		id, err := o.chat.CreatePrivateRoom(ctx, st.batch.Technical, sess.ID.String()+"_feedback")
		if err != nil {
			return fmt.Errorf("create feedback room: %w", err)
		}
		st.track(domain.ResourceFeedbackRoom, id)
		st.rooms = append(st.rooms, id)
		feedbackRoomID = &id
	}

	if err := o.sessions.UpdateRooms(ctx, sess.ID, roomID, feedbackRoomID); err != nil {
		return fmt.Errorf("store session rooms: %w", err)
	}
	sess.ChatRoomID = &roomID
	sess.FeedbackChatRoomID = feedbackRoomID

	members, feedbackMembers, err := o.roomConsultants(ctx, st)
	if err != nil {
		return err
	}

	if err := o.addMembers(ctx, st, roomID, members); err != nil {
		return err
	}
	if feedbackRoomID != nil {
		if err := o.addMembers(ctx, st, *feedbackRoomID, feedbackMembers); err != nil {
			return err
		}
	}

	latest := o.now()
	oldest := latest.Add(-o.cfg.PurgeWindow)
	for _, room := range st.rooms {
		if err := o.chat.PurgeSystemMessages(ctx, st.batch.Technical, room, oldest, latest); err != nil {
			return fmt.Errorf("purge system messages of %s: %w", room, err)
		}
	}
	return nil
}

// roomConsultants decides who joins the asker's rooms. A team agency without
// feedback chat shares the room with all its consultants. Otherwise both rooms
// get everyone who may view all feedback sessions. The assigned consultant
// always joins both rooms.
func (o *Orchestrator) roomConsultants(ctx context.Context, st *rowState) (room, feedback []domain.Consultant, err error) {
	agencyConsultants, err := o.consultants.FindByAgency(ctx, st.agency.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("agency %d consultants: %w", st.agency.ID, err)
	}

	seen := make(map[uuid.UUID]bool, len(agencyConsultants)+1)
	if st.assigned != nil {
		room = append(room, *st.assigned)
		feedback = append(feedback, *st.assigned)
		seen[st.assigned.ID] = true
	}

	if st.agency.TeamAgency && !st.settings.FeedbackChat {
		for _, c := range agencyConsultants {
			if !seen[c.ID] {
				seen[c.ID] = true
				room = append(room, c)
			}
		}
		return room, nil, nil
	}

	for _, c := range agencyConsultants {
		if seen[c.ID] {
			continue
		}
		ok, err := o.identity.UserHasAuthority(ctx, c.ExternalAccountID, domain.AuthorityViewAllFeedbackSessions)
		if err != nil {
			return nil, nil, fmt.Errorf("authority of consultant %s: %w", c.ID, err)
		}
		if !ok {
			continue
		}
		seen[c.ID] = true
		room = append(room, c)
		feedback = append(feedback, c)
	}
	return room, feedback, nil
}

// addMembers invites the system user and consultants into roomID using the
// technical user. Consultants without a chat user are skipped.
func (o *Orchestrator) addMembers(ctx context.Context, st *rowState, roomID string, consultants []domain.Consultant) error {
	tech := st.batch.Technical

	if err := o.chat.AddUserToRoom(ctx, tech, roomID, st.batch.System.UserID); err != nil {
		return fmt.Errorf("add system user to %s: %w", roomID, err)
	}

	for _, c := range consultants {
		if c.ChatUserID == "" {
			o.log.WarnContext(ctx, "consultant has no chat user, not added to room",
				slog.String("consultant_id", c.ID.String()),
				slog.String("room_id", roomID),
			)
			continue
		}
		if err := o.chat.AddUserToRoom(ctx, tech, roomID, c.ChatUserID); err != nil {
			return fmt.Errorf("add consultant %s to %s: %w", c.ID, roomID, err)
		}
	}
	return nil
}

// postWelcome posts the consulting type's welcome message as the system
// user into the main room.
func (o *Orchestrator) postWelcome(ctx context.Context, st *rowState) error {
	msg := st.settings.WelcomeMessage
	if !msg.Enabled || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	text := msg.Render(st.base.Username)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("welcome message of consulting type %d rendered empty", st.settings.ID)
	}

	if err := o.chat.PostMessage(ctx, st.batch.System, *st.session.ChatRoomID, text); err != nil {
		return fmt.Errorf("post welcome message: %w", err)
	}
	return nil
}
