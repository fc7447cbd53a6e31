// Package sync holds the client-facing synchronization core: an optimistic
// per-session view of the user's problems, a live-query watcher, and the
// session event loop that ties them to the websocket gateway.
package sync

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lucas6028/silver-server/types"
)

// localPrefix marks session-only identifiers on the wire. Inside the
// package the distinction is carried by RecordID, not by string sniffing.
const localPrefix = "local-"

// RecordID identifies a problem record as either Local (exists only in
// this session, not yet or never confirmed by the backend) or Durable
// (backend-assigned).
type RecordID struct {
	value string
	local bool
}

// NewLocalID mints a fresh session-only identifier.
func NewLocalID() RecordID {
	return RecordID{value: uuid.NewString(), local: true}
}

// DurableID wraps a backend-assigned identifier.
func DurableID(id string) RecordID {
	return RecordID{value: id}
}

// ParseID recovers a RecordID from its wire form.
func ParseID(s string) RecordID {
	if rest, ok := strings.CutPrefix(s, localPrefix); ok {
		return RecordID{value: rest, local: true}
	}
	return RecordID{value: s}
}

// IsLocal reports whether the id is session-only.
func (id RecordID) IsLocal() bool { return id.local }

// String renders the wire form: local ids carry the local prefix so the
// client can address them while they last.
func (id RecordID) String() string {
	if id.local {
		return localPrefix + id.value
	}
	return id.value
}

type problemRecord struct {
	id      RecordID
	problem types.Problem

	// pendingDurable is set once the backend write succeeded; the local
	// record is dropped when a snapshot containing that id arrives.
	pendingDurable string

	// failed marks a local record whose backend write failed. It is kept
	// for the rest of the session and never retried.
	failed bool
}

// ProblemView is the optimistic in-memory problem collection for one
// session. Mutations are applied immediately, before any backend
// confirmation; backend snapshots overwrite durable state wholesale. The
// view is owned by a single session loop and is not safe for concurrent
// use.
type ProblemView struct {
	records []problemRecord
}

func NewProblemView() *ProblemView {
	return &ProblemView{records: []problemRecord{}}
}

// Items returns the visible problems, newest first. Wire ids are stamped
// onto the returned copies.
func (v *ProblemView) Items() []types.Problem {
	items := make([]types.Problem, 0, len(v.records))
	for _, record := range v.records {
		problem := record.problem
		problem.ID = record.id.String()
		items = append(items, problem)
	}
	return items
}

// Get returns the problem for id, if present.
func (v *ProblemView) Get(id RecordID) (types.Problem, bool) {
	for _, record := range v.records {
		if record.id == id {
			problem := record.problem
			problem.ID = record.id.String()
			return problem, true
		}
	}
	return types.Problem{}, false
}

// AddOptimistic inserts a problem under a fresh local id, before the
// backend write is even issued.
func (v *ProblemView) AddOptimistic(problem types.Problem) RecordID {
	id := NewLocalID()
	v.records = append([]problemRecord{{id: id, problem: problem}}, v.records...)
	return id
}

// ConfirmCreate records that the backend accepted the create and assigned
// durableID. When a snapshot carrying the durable version already arrived
// (the change event can outrun the confirmation), the local record is
// dropped on the spot; otherwise it stays visible until Apply sees the
// durable id.
func (v *ProblemView) ConfirmCreate(local RecordID, durableID string) {
	durablePresent := false
	for _, record := range v.records {
		if !record.id.IsLocal() && record.id.value == durableID {
			durablePresent = true
			break
		}
	}
	for i := range v.records {
		if v.records[i].id == local {
			if durablePresent {
				v.records = append(v.records[:i], v.records[i+1:]...)
				return
			}
			v.records[i].pendingDurable = durableID
			return
		}
	}
}

// FailCreate marks the local record permanent: the write failed, it will
// not be retried, and the record remains addressable only by its local id
// for the rest of the session.
func (v *ProblemView) FailCreate(local RecordID) {
	for i := range v.records {
		if v.records[i].id == local {
			v.records[i].failed = true
			return
		}
	}
}

// Mutate applies fn to the identified problem in place. Returns false when
// the id is unknown.
func (v *ProblemView) Mutate(id RecordID, fn func(*types.Problem)) bool {
	for i := range v.records {
		if v.records[i].id == id {
			fn(&v.records[i].problem)
			return true
		}
	}
	return false
}

// Remove drops the identified record.
func (v *ProblemView) Remove(id RecordID) {
	for i := range v.records {
		if v.records[i].id == id {
			v.records = append(v.records[:i], v.records[i+1:]...)
			return
		}
	}
}

// Apply reconciles a backend snapshot: durable state is replaced wholesale
// (last push wins over any earlier optimistic update), local records are
// kept unless their confirmed durable version is in the snapshot. The
// result is re-sorted newest first.
func (v *ProblemView) Apply(snapshot []types.Problem) {
	inSnapshot := make(map[string]bool, len(snapshot))
	for _, problem := range snapshot {
		inSnapshot[problem.ID] = true
	}

	next := make([]problemRecord, 0, len(snapshot)+4)
	for _, record := range v.records {
		if !record.id.IsLocal() {
			continue
		}
		if record.pendingDurable != "" && inSnapshot[record.pendingDurable] {
			continue
		}
		next = append(next, record)
	}
	for _, problem := range snapshot {
		next = append(next, problemRecord{id: DurableID(problem.ID), problem: problem})
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].problem.CreatedAt.After(next[j].problem.CreatedAt)
	})
	v.records = next
}
