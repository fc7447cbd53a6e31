package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lucas6028/silver-server/internal/balloon"
	"github.com/lucas6028/silver-server/internal/events"
	"github.com/lucas6028/silver-server/internal/mq"
	"github.com/lucas6028/silver-server/internal/services"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
)

// Services bundles everything a session can act on.
type Services struct {
	Problems      *services.ProblemService
	Teams         *services.TeamService
	Notifications *services.NotificationService
	Profiles      *services.ProfileService
}

// Command is one client-initiated operation, decoded from the websocket.
type Command struct {
	Op      string        `json:"op"`
	Problem types.Problem `json:"problem,omitempty"`
	ID      string        `json:"id,omitempty"`
	Status  types.Status  `json:"status,omitempty"`
	Target  string        `json:"target,omitempty"`
	Name    string        `json:"name,omitempty"`
	Code    string        `json:"code,omitempty"`
}

// Command ops.
const (
	OpAddProblem    = "addProblem"
	OpSetStatus     = "setStatus"
	OpAssign        = "assign"
	OpUnassign      = "unassign"
	OpDeleteProblem = "deleteProblem"
	OpCreateTeam    = "createTeam"
	OpJoinTeam      = "joinTeam"
	OpLeaveTeam     = "leaveTeam"
	OpMarkRead      = "markRead"
	OpMarkAllRead   = "markAllRead"
)

// Event is one state push to the client. Kind selects which payload field
// is set.
type Event struct {
	Kind          string               `json:"kind"`
	Problems      []types.Problem      `json:"problems,omitempty"`
	Teams         []types.Team         `json:"teams,omitempty"`
	Notifications []types.Notification `json:"notifications,omitempty"`
	Profile       *types.UserProfile   `json:"profile,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Event kinds.
const (
	KindProblems      = "problems"
	KindTeams         = "teams"
	KindNotifications = "notifications"
	KindProfile       = "profile"
	KindError         = "error"
)

// Session runs the live-sync loop for one signed-in user. All state (the
// optimistic problem view, team and notification caches) is owned by a
// single goroutine; watchers and in-flight backend writes hand their
// results back to that goroutine, so no locking is needed.
type Session struct {
	identity types.Identity
	svc      Services
	bus      *mq.MQ
	log      *zap.SugaredLogger

	view          *ProblemView
	teams         []types.Team
	notifications []types.Notification

	commands chan Command
	out      chan Event
	results  chan func()
}

func NewSession(identity types.Identity, svc Services, bus *mq.MQ, log *zap.SugaredLogger) *Session {
	return &Session{
		identity: identity,
		svc:      svc,
		bus:      bus,
		log:      log.With("uid", identity.UID),
		view:     NewProblemView(),
		commands: make(chan Command, 16),
		out:      make(chan Event, 32),
		results:  make(chan func(), 16),
	}
}

// Commands is where the gateway feeds decoded client commands.
func (s *Session) Commands() chan<- Command { return s.commands }

// Events is what the gateway forwards to the client. Closed when Run
// returns.
func (s *Session) Events() <-chan Event { return s.out }

// Run drives the session until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer close(s.out)

	uid := s.identity.UID
	matchSelf := func(msg mq.Message) bool {
		return msg.Attributes[events.AttrUser] == uid
	}

	problems := Watch(ctx, s.bus, events.ChannelProblemChanges, matchSelf, func(ctx context.Context) ([]types.Problem, error) {
		return s.svc.Problems.ListForUser(ctx, uid)
	}, s.log)
	// Team changes initiated by other members carry their uid, not ours,
	// so every event on the channel triggers a re-query of our own scope.
	teams := Watch(ctx, s.bus, events.ChannelTeamChanges, nil, func(ctx context.Context) ([]types.Team, error) {
		return s.svc.Teams.ListForUser(ctx, uid)
	}, s.log)
	notifications := Watch(ctx, s.bus, events.ChannelNotificationChanges, matchSelf, func(ctx context.Context) ([]types.Notification, error) {
		return s.svc.Notifications.ListForUser(ctx, uid)
	}, s.log)
	profiles := Watch(ctx, s.bus, events.ChannelProfileChanges, matchSelf, func(ctx context.Context) ([]types.UserProfile, error) {
		profile, err := s.svc.Profiles.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		return []types.UserProfile{profile}, nil
	}, s.log)

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-problems:
			if !ok {
				return
			}
			s.view.Apply(snapshot)
			s.emitProblems()
		case snapshot, ok := <-teams:
			if !ok {
				return
			}
			s.teams = snapshot
			s.emit(Event{Kind: KindTeams, Teams: snapshot})
		case snapshot, ok := <-notifications:
			if !ok {
				return
			}
			s.notifications = snapshot
			s.emit(Event{Kind: KindNotifications, Notifications: snapshot})
		case snapshot, ok := <-profiles:
			if !ok {
				return
			}
			if len(snapshot) == 1 {
				profile := snapshot[0]
				s.emit(Event{Kind: KindProfile, Profile: &profile})
			}
		case fn := <-s.results:
			fn()
		case cmd := <-s.commands:
			s.handle(ctx, cmd)
		}
	}
}

func (s *Session) handle(ctx context.Context, cmd Command) {
	switch cmd.Op {
	case OpAddProblem:
		s.addProblem(ctx, cmd.Problem)
	case OpSetStatus:
		s.setStatus(ctx, ParseID(cmd.ID), cmd.Status)
	case OpAssign:
		s.toggleAssignee(ctx, ParseID(cmd.ID), cmd.Target, true)
	case OpUnassign:
		s.toggleAssignee(ctx, ParseID(cmd.ID), cmd.Target, false)
	case OpDeleteProblem:
		s.deleteProblem(ctx, ParseID(cmd.ID))
	case OpCreateTeam:
		s.async(ctx, func(ctx context.Context) error {
			_, err := s.svc.Teams.Create(ctx, s.identity, cmd.Name)
			return err
		})
	case OpJoinTeam:
		s.async(ctx, func(ctx context.Context) error {
			_, err := s.svc.Teams.Join(ctx, s.identity, cmd.Code)
			return err
		})
	case OpLeaveTeam:
		s.async(ctx, func(ctx context.Context) error {
			return s.svc.Teams.Leave(ctx, s.identity.UID, cmd.ID)
		})
	case OpMarkRead:
		s.markRead(ctx, cmd.ID)
	case OpMarkAllRead:
		s.markAllRead(ctx)
	default:
		s.emitError("unknown operation")
	}
}

// addProblem inserts the record locally first, then issues the backend
// write. A failed write leaves the record in place as a session-only copy.
func (s *Session) addProblem(ctx context.Context, problem types.Problem) {
	// Stamp ownership up front so the local copy passes the same guards a
	// durable record would.
	if problem.CreatedBy == "" {
		problem.CreatedBy = s.identity.UID
	}
	if !problem.HasAssignee(s.identity.UID) {
		problem.Assignees = append([]string{s.identity.UID}, problem.Assignees...)
	}
	if problem.Status == "" {
		problem.Status = types.StatusTodo
	}

	local := s.view.AddOptimistic(problem)
	s.emitProblems()

	go func() {
		created, err := s.svc.Problems.Create(ctx, s.identity, problem)
		s.post(ctx, func() {
			if err != nil {
				s.log.Warnw("problem create failed, keeping local copy", "error", err)
				s.view.FailCreate(local)
				s.emitError("problem could not be saved, keeping it in this session only")
				return
			}
			s.view.ConfirmCreate(local, created.ID)
		})
	}()
}

// setStatus moves a problem to the given status, or to the next stage in
// the cycle when no status is named.
func (s *Session) setStatus(ctx context.Context, id RecordID, status types.Status) {
	problem, ok := s.view.Get(id)
	if !ok {
		s.emitError("problem not found")
		return
	}
	if status == "" {
		status = problem.Status.Next()
	}
	if !status.Valid() {
		s.emitError("unknown status")
		return
	}
	if !problem.CanModify(s.identity.UID) {
		s.emitError("only the creator or an assignee can change this problem")
		return
	}

	s.view.Mutate(id, func(p *types.Problem) {
		p.Status = status
		if status == types.StatusDone && p.BalloonColor == "" {
			p.BalloonColor = balloon.ColorFor(id.String(), balloon.Palette)
		}
	})
	s.emitProblems()

	if id.IsLocal() {
		return
	}
	s.async(ctx, func(ctx context.Context) error {
		_, err := s.svc.Problems.SetStatus(ctx, s.identity.UID, id.String(), status)
		return err
	})
}

func (s *Session) toggleAssignee(ctx context.Context, id RecordID, target string, assign bool) {
	problem, ok := s.view.Get(id)
	if !ok {
		s.emitError("problem not found")
		return
	}
	if !problem.CanModify(s.identity.UID) {
		s.emitError("only the creator or an assignee can change this problem")
		return
	}
	if target == "" {
		target = s.identity.UID
	}

	s.view.Mutate(id, func(p *types.Problem) {
		if assign {
			if !p.HasAssignee(target) {
				p.Assignees = append(p.Assignees, target)
			}
			return
		}
		kept := p.Assignees[:0]
		for _, uid := range p.Assignees {
			if uid != target {
				kept = append(kept, uid)
			}
		}
		p.Assignees = kept
	})
	s.emitProblems()

	if id.IsLocal() {
		return
	}
	s.async(ctx, func(ctx context.Context) error {
		var err error
		if assign {
			_, err = s.svc.Problems.Assign(ctx, s.identity, id.String(), target)
		} else {
			_, err = s.svc.Problems.Unassign(ctx, s.identity.UID, id.String(), target)
		}
		return err
	})
}

// deleteProblem assumes the client already confirmed the action; the
// record disappears locally before the backend write completes.
func (s *Session) deleteProblem(ctx context.Context, id RecordID) {
	problem, ok := s.view.Get(id)
	if !ok {
		s.emitError("problem not found")
		return
	}
	if !problem.CanModify(s.identity.UID) {
		s.emitError("only the creator or an assignee can delete this problem")
		return
	}

	s.view.Remove(id)
	s.emitProblems()

	if id.IsLocal() {
		return
	}
	s.async(ctx, func(ctx context.Context) error {
		return s.svc.Problems.Delete(ctx, s.identity.UID, id.String())
	})
}

func (s *Session) markRead(ctx context.Context, id string) {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
		}
	}
	s.emit(Event{Kind: KindNotifications, Notifications: s.notifications})
	s.async(ctx, func(ctx context.Context) error {
		return s.svc.Notifications.MarkRead(ctx, s.identity.UID, id)
	})
}

func (s *Session) markAllRead(ctx context.Context) {
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.emit(Event{Kind: KindNotifications, Notifications: s.notifications})
	s.async(ctx, func(ctx context.Context) error {
		return s.svc.Notifications.MarkAllRead(ctx, s.identity.UID)
	})
}

// async runs a backend write off the loop and reports failures as error
// events. Successful writes surface through the watchers, not here.
func (s *Session) async(ctx context.Context, fn func(ctx context.Context) error) {
	go func() {
		err := fn(ctx)
		if err == nil {
			return
		}
		s.post(ctx, func() {
			s.log.Warnw("operation failed", "error", err)
			s.emitError(userMessage(err))
		})
	}()
}

// post hands fn back to the session goroutine.
func (s *Session) post(ctx context.Context, fn func()) {
	select {
	case s.results <- fn:
	case <-ctx.Done():
	}
}

func (s *Session) emitProblems() {
	s.emit(Event{Kind: KindProblems, Problems: s.view.Items()})
}

func (s *Session) emitError(msg string) {
	s.emit(Event{Kind: KindError, Error: msg})
}

// emit drops the event when the client cannot keep up; the next snapshot
// carries the full state anyway.
func (s *Session) emit(ev Event) {
	select {
	case s.out <- ev:
	default:
		s.log.Debugw("event dropped, slow client", "kind", ev.Kind)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	case errors.Is(err, store.ErrForbidden):
		return "not allowed"
	case errors.Is(err, store.ErrConflict):
		return "already done"
	case errors.Is(err, store.ErrInvalid):
		return "invalid request"
	default:
		return "operation failed"
	}
}
