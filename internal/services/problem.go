package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lucas6028/silver-server/internal/balloon"
	"github.com/lucas6028/silver-server/internal/events"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
	"go.uber.org/zap"
)

// ProblemRepository defines persistence operations for problems.
type ProblemRepository interface {
	ListByAssignee(ctx context.Context, uid string) ([]types.Problem, error)
	Get(ctx context.Context, id string) (types.Problem, error)
	Create(ctx context.Context, problem types.Problem) (types.Problem, error)
	UpdateStatus(ctx context.Context, id string, status types.Status, balloonColor string) error
	AddAssignee(ctx context.Context, id, uid string) error
	RemoveAssignee(ctx context.Context, id, uid string) error
	Delete(ctx context.Context, id string) error
}

// ProblemService encapsulates the problem lifecycle: creation, the status
// pipeline, assignee changes and deletion. Every mutation is guarded: only
// the creator or a current assignee may act, and denials happen before any
// state change.
type ProblemService struct {
	repo ProblemRepository
	bus  Publisher
	log  *zap.SugaredLogger
}

func NewProblemService(repo ProblemRepository, bus Publisher, log *zap.SugaredLogger) *ProblemService {
	return &ProblemService{repo: repo, bus: bus, log: log}
}

// ListForUser returns the problems visible to uid: exactly those whose
// assignee set contains uid, newest first.
func (s *ProblemService) ListForUser(ctx context.Context, uid string) ([]types.Problem, error) {
	return s.repo.ListByAssignee(ctx, uid)
}

func (s *ProblemService) Get(ctx context.Context, uid, id string) (types.Problem, error) {
	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Problem{}, err
	}
	if !problem.HasAssignee(uid) {
		// Visibility is assignee-set membership; a non-assignee sees
		// nothing, not a forbidden hint.
		return types.Problem{}, store.ErrNotFound
	}
	return problem, nil
}

// Create inserts a new problem. The creator is always added to the
// assignee set, the status defaults to Todo, and the id is server-assigned.
func (s *ProblemService) Create(ctx context.Context, actor types.Identity, problem types.Problem) (types.Problem, error) {
	if problem.Title == "" {
		return types.Problem{}, fmt.Errorf("title is required: %w", store.ErrInvalid)
	}
	if problem.Status == "" {
		problem.Status = types.StatusTodo
	}
	if !problem.Status.Valid() {
		return types.Problem{}, fmt.Errorf("unknown status %q: %w", problem.Status, store.ErrInvalid)
	}

	problem.ID = uuid.NewString()
	problem.CreatedBy = actor.UID
	problem.Assignees = dedupeWithCreator(actor.UID, problem.Assignees)
	problem.Platform = normalizePlatform(problem.Platform)
	problem.Tags = filterTags(problem.Tags)
	problem.BalloonColor = ""

	created, err := s.repo.Create(ctx, problem)
	if err != nil {
		return types.Problem{}, fmt.Errorf("create problem: %w", err)
	}

	for _, uid := range created.Assignees {
		s.publishProblemChange(ctx, uid)
		if uid != actor.UID {
			s.publishAssignment(ctx, actor, created, uid)
		}
	}
	return created, nil
}

// SetStatus moves a problem to the given pipeline stage. Entering Done for
// the first time assigns the balloon color, derived deterministically from
// the problem id; an existing color is never recomputed.
func (s *ProblemService) SetStatus(ctx context.Context, uid, id string, status types.Status) (types.Problem, error) {
	if !status.Valid() {
		return types.Problem{}, fmt.Errorf("unknown status %q: %w", status, store.ErrInvalid)
	}

	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Problem{}, err
	}
	if !problem.CanModify(uid) {
		return types.Problem{}, fmt.Errorf("only the creator or an assignee may change status: %w", store.ErrForbidden)
	}

	color := ""
	if status == types.StatusDone && problem.BalloonColor == "" {
		color = balloon.ColorFor(problem.ID, balloon.Palette)
	}

	if err := s.repo.UpdateStatus(ctx, id, status, color); err != nil {
		return types.Problem{}, fmt.Errorf("update status: %w", err)
	}

	problem.Status = status
	if color != "" {
		problem.BalloonColor = color
	}
	for _, assignee := range problem.Assignees {
		s.publishProblemChange(ctx, assignee)
	}
	return problem, nil
}

// Assign adds target to the problem's assignee set. When the target is not
// the actor, an assignment event is published for the notification relay.
func (s *ProblemService) Assign(ctx context.Context, actor types.Identity, id, target string) (types.Problem, error) {
	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Problem{}, err
	}
	if !problem.CanModify(actor.UID) {
		return types.Problem{}, fmt.Errorf("only the creator or an assignee may assign: %w", store.ErrForbidden)
	}
	if problem.HasAssignee(target) {
		return problem, nil
	}

	if err := s.repo.AddAssignee(ctx, id, target); err != nil {
		return types.Problem{}, fmt.Errorf("add assignee: %w", err)
	}
	problem.Assignees = append(problem.Assignees, target)

	if target != actor.UID {
		s.publishAssignment(ctx, actor, problem, target)
	}
	for _, assignee := range problem.Assignees {
		s.publishProblemChange(ctx, assignee)
	}
	return problem, nil
}

// Unassign removes target from the assignee set. The creator stays in the
// set no matter what, preserving the invariant that the creator is always
// an assignee.
func (s *ProblemService) Unassign(ctx context.Context, actorUID, id, target string) (types.Problem, error) {
	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Problem{}, err
	}
	if !problem.CanModify(actorUID) {
		return types.Problem{}, fmt.Errorf("only the creator or an assignee may unassign: %w", store.ErrForbidden)
	}
	if target == problem.CreatedBy {
		return types.Problem{}, fmt.Errorf("the creator cannot be unassigned: %w", store.ErrInvalid)
	}

	if err := s.repo.RemoveAssignee(ctx, id, target); err != nil {
		return types.Problem{}, fmt.Errorf("remove assignee: %w", err)
	}

	remaining := problem.Assignees[:0]
	for _, a := range problem.Assignees {
		if a != target {
			remaining = append(remaining, a)
		}
	}
	problem.Assignees = remaining

	s.publishProblemChange(ctx, target)
	for _, assignee := range problem.Assignees {
		s.publishProblemChange(ctx, assignee)
	}
	return problem, nil
}

// Delete removes the problem. The guard runs before any state change.
func (s *ProblemService) Delete(ctx context.Context, uid, id string) error {
	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !problem.CanModify(uid) {
		return fmt.Errorf("only the creator or an assignee may delete: %w", store.ErrForbidden)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	for _, assignee := range problem.Assignees {
		s.publishProblemChange(ctx, assignee)
	}
	return nil
}

func (s *ProblemService) publishProblemChange(ctx context.Context, uid string) {
	publishChange(ctx, s.bus, s.log, eventsProblemChannel, map[string]string{attrUser: uid})
}

func (s *ProblemService) publishAssignment(ctx context.Context, actor types.Identity, problem types.Problem, target string) {
	assignerName := actor.DisplayName
	if assignerName == "" {
		assignerName = actor.Email
	}
	payload, err := json.Marshal(events.Assignment{
		Recipient:      target,
		ProblemID:      problem.ID,
		ProblemTitle:   problem.Title,
		AssignedBy:     actor.UID,
		AssignedByName: assignerName,
	})
	if err != nil {
		return
	}
	if _, err := s.bus.Publish(ctx, eventsAssignmentChannel, payload, map[string]string{attrUser: target}); err != nil {
		s.log.Warnw("assignment publish failed", "problem", problem.ID, "recipient", target, "error", err)
	}
}

// dedupeWithCreator returns the assignee set with the creator first and
// duplicates removed, preserving the order assignees were given in.
func dedupeWithCreator(creator string, assignees []string) []string {
	out := []string{creator}
	seen := map[string]bool{creator: true}
	for _, uid := range assignees {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		out = append(out, uid)
	}
	return out
}

// normalizePlatform coerces an unknown platform name to "Other".
func normalizePlatform(platform string) string {
	for _, known := range types.Platforms {
		if platform == known {
			return platform
		}
	}
	return "Other"
}

// filterTags keeps only tags from the fixed vocabulary, preserving order.
func filterTags(tags []string) []string {
	known := make(map[string]bool, len(types.Tags))
	for _, tag := range types.Tags {
		known[tag] = true
	}
	out := tags[:0]
	for _, tag := range tags {
		if known[tag] {
			out = append(out, tag)
		}
	}
	return out
}
