package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/lucas6028/silver-server/internal/balloon"
	"github.com/lucas6028/silver-server/internal/events"
	"github.com/lucas6028/silver-server/internal/logger"
	"github.com/lucas6028/silver-server/internal/store"
	"github.com/lucas6028/silver-server/types"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

// recordingBus captures publishes synchronously so tests can assert on
// them without a broker.
type recordingBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *recordingBus) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{channel: channel, data: data, attrs: attrs})
	return "msg", nil
}

func (b *recordingBus) onChannel(channel string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, msg := range b.msgs {
		if msg.channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

type fakeProblemRepo struct {
	problems map[string]types.Problem
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{problems: make(map[string]types.Problem)}
}

func (r *fakeProblemRepo) ListByAssignee(_ context.Context, uid string) ([]types.Problem, error) {
	var out []types.Problem
	for _, p := range r.problems {
		if p.HasAssignee(uid) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProblemRepo) Get(_ context.Context, id string) (types.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return types.Problem{}, store.ErrNotFound
	}
	return p, nil
}

func (r *fakeProblemRepo) Create(_ context.Context, problem types.Problem) (types.Problem, error) {
	r.problems[problem.ID] = problem
	return problem, nil
}

func (r *fakeProblemRepo) UpdateStatus(_ context.Context, id string, status types.Status, balloonColor string) error {
	p, ok := r.problems[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	if balloonColor != "" && p.BalloonColor == "" {
		p.BalloonColor = balloonColor
	}
	r.problems[id] = p
	return nil
}

func (r *fakeProblemRepo) AddAssignee(_ context.Context, id, uid string) error {
	p, ok := r.problems[id]
	if !ok {
		return store.ErrNotFound
	}
	if !p.HasAssignee(uid) {
		p.Assignees = append(p.Assignees, uid)
	}
	r.problems[id] = p
	return nil
}

func (r *fakeProblemRepo) RemoveAssignee(_ context.Context, id, uid string) error {
	p, ok := r.problems[id]
	if !ok {
		return store.ErrNotFound
	}
	kept := p.Assignees[:0]
	for _, a := range p.Assignees {
		if a != uid {
			kept = append(kept, a)
		}
	}
	p.Assignees = kept
	r.problems[id] = p
	return nil
}

func (r *fakeProblemRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.problems[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.problems, id)
	return nil
}

func newProblemService(repo *fakeProblemRepo, bus *recordingBus) *ProblemService {
	return NewProblemService(repo, bus, logger.Nop())
}

var alice = types.Identity{UID: "u-alice", DisplayName: "Alice", Email: "alice@example.com"}

func TestProblemCreateDefaults(t *testing.T) {
	svc := newProblemService(newFakeProblemRepo(), &recordingBus{})

	created, err := svc.Create(context.Background(), alice, types.Problem{
		Title:     "Two Sum",
		Assignees: []string{"u-bob", "u-alice", "u-bob", ""},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("id not assigned")
	}
	if created.Status != types.StatusTodo {
		t.Fatalf("status %q, want todo", created.Status)
	}
	if created.BalloonColor != "" {
		t.Fatalf("balloon color %q set at creation", created.BalloonColor)
	}
	if created.CreatedBy != alice.UID {
		t.Fatalf("created by %q", created.CreatedBy)
	}
	want := []string{"u-alice", "u-bob"}
	if len(created.Assignees) != len(want) {
		t.Fatalf("assignees %v, want %v", created.Assignees, want)
	}
	for i := range want {
		if created.Assignees[i] != want[i] {
			t.Fatalf("assignees %v, want %v", created.Assignees, want)
		}
	}
}

func TestProblemCreateNormalizesVocabulary(t *testing.T) {
	svc := newProblemService(newFakeProblemRepo(), &recordingBus{})

	created, err := svc.Create(context.Background(), alice, types.Problem{
		Title:    "Mystery",
		Platform: "HackerEarth",
		Tags:     []string{"DP", "vibes", "Greedy"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Platform != "Other" {
		t.Fatalf("platform %q, want Other", created.Platform)
	}
	want := []string{"DP", "Greedy"}
	if len(created.Tags) != len(want) {
		t.Fatalf("tags %v, want %v", created.Tags, want)
	}
	for i := range want {
		if created.Tags[i] != want[i] {
			t.Fatalf("tags %v, want %v", created.Tags, want)
		}
	}
}

func TestProblemCreateRequiresTitle(t *testing.T) {
	svc := newProblemService(newFakeProblemRepo(), &recordingBus{})

	_, err := svc.Create(context.Background(), alice, types.Problem{})
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestProblemCreateNotifiesOtherAssignees(t *testing.T) {
	bus := &recordingBus{}
	svc := newProblemService(newFakeProblemRepo(), bus)

	_, err := svc.Create(context.Background(), alice, types.Problem{
		Title:     "Graph Day",
		Assignees: []string{"u-bob"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assignments := bus.onChannel(events.ChannelAssignments)
	if len(assignments) != 1 {
		t.Fatalf("got %d assignment events, want 1", len(assignments))
	}
	var assignment events.Assignment
	if err := json.Unmarshal(assignments[0].data, &assignment); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if assignment.Recipient != "u-bob" {
		t.Fatalf("recipient %q", assignment.Recipient)
	}
	if assignment.AssignedBy != alice.UID || assignment.AssignedByName != "Alice" {
		t.Fatalf("assigner %q/%q", assignment.AssignedBy, assignment.AssignedByName)
	}
}

func TestProblemStatusDoneAssignsColorOnce(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := newProblemService(repo, &recordingBus{})

	created, err := svc.Create(context.Background(), alice, types.Problem{Title: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := svc.SetStatus(context.Background(), alice.UID, created.ID, types.StatusDone)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if done.BalloonColor == "" {
		t.Fatal("no balloon color on first Done")
	}
	if want := balloon.ColorFor(created.ID, balloon.Palette); done.BalloonColor != want {
		t.Fatalf("color %q, want %q", done.BalloonColor, want)
	}

	// Round trip through Todo and back to Done: the color must not change.
	if _, err := svc.SetStatus(context.Background(), alice.UID, created.ID, types.StatusTodo); err != nil {
		t.Fatalf("set status: %v", err)
	}
	again, err := svc.SetStatus(context.Background(), alice.UID, created.ID, types.StatusDone)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if again.BalloonColor != done.BalloonColor {
		t.Fatalf("color changed from %q to %q", done.BalloonColor, again.BalloonColor)
	}
}

func TestProblemStatusForbiddenForOutsider(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := newProblemService(repo, &recordingBus{})

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	_, err := svc.SetStatus(context.Background(), "u-mallory", created.ID, types.StatusDone)
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if got, _ := repo.Get(context.Background(), created.ID); got.Status != types.StatusTodo {
		t.Fatalf("status mutated to %q despite denial", got.Status)
	}
}

func TestProblemAssignIdempotent(t *testing.T) {
	bus := &recordingBus{}
	svc := newProblemService(newFakeProblemRepo(), bus)

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	problem, err := svc.Assign(context.Background(), alice, created.ID, alice.UID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(problem.Assignees) != 1 {
		t.Fatalf("assignees %v after re-assigning the creator", problem.Assignees)
	}
	if got := bus.onChannel(events.ChannelAssignments); len(got) != 0 {
		t.Fatalf("%d assignment events for a no-op", len(got))
	}
}

func TestProblemAssignOtherPublishesAssignment(t *testing.T) {
	bus := &recordingBus{}
	svc := newProblemService(newFakeProblemRepo(), bus)

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	problem, err := svc.Assign(context.Background(), alice, created.ID, "u-bob")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !problem.HasAssignee("u-bob") {
		t.Fatalf("assignees %v", problem.Assignees)
	}
	if got := bus.onChannel(events.ChannelAssignments); len(got) != 1 {
		t.Fatalf("%d assignment events, want 1", len(got))
	}
}

func TestProblemUnassignCreatorRejected(t *testing.T) {
	svc := newProblemService(newFakeProblemRepo(), &recordingBus{})

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	_, err := svc.Unassign(context.Background(), alice.UID, created.ID, alice.UID)
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestProblemGetHidesFromNonAssignee(t *testing.T) {
	svc := newProblemService(newFakeProblemRepo(), &recordingBus{})

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	_, err := svc.Get(context.Background(), "u-bob", created.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestProblemDeleteGuarded(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := newProblemService(repo, &recordingBus{})

	created, _ := svc.Create(context.Background(), alice, types.Problem{Title: "A"})

	if err := svc.Delete(context.Background(), "u-mallory", created.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), alice.UID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(context.Background(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("problem still present after delete")
	}
}
