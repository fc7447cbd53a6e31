// Package relay turns assignment events into notification records. It runs
// as its own worker process so a burst of assignments never blocks the API
// path, and so notification writes survive API restarts via the broker.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lucas6028/silver-server/internal/events"
	"github.com/lucas6028/silver-server/internal/mq"
	"github.com/lucas6028/silver-server/types"
	"go.uber.org/zap"
)

// NotificationWriter is the slice of the notification store the relay needs.
type NotificationWriter interface {
	Create(ctx context.Context, n types.Notification) (types.Notification, error)
}

// Bus is the slice of the message bus the relay needs.
type Bus interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Relay consumes assignment events and writes unread notifications.
type Relay struct {
	notifications NotificationWriter
	bus           Bus
	log           *zap.SugaredLogger
}

func New(notifications NotificationWriter, bus Bus, log *zap.SugaredLogger) *Relay {
	return &Relay{notifications: notifications, bus: bus, log: log}
}

// Run blocks consuming assignment events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Infow("relay started", "channel", events.ChannelAssignments)
	return r.bus.Subscribe(ctx, events.ChannelAssignments, r.handle)
}

func (r *Relay) handle(ctx context.Context, msg mq.Message) error {
	var assignment events.Assignment
	if err := json.Unmarshal(msg.Data, &assignment); err != nil {
		// Malformed payloads are dropped, not retried.
		r.log.Warnw("dropping malformed assignment event", "id", msg.ID, "error", err)
		return nil
	}

	// Self-assignments never notify; the publisher already filters these,
	// the relay just refuses to trust it.
	if assignment.Recipient == "" || assignment.Recipient == assignment.AssignedBy {
		return nil
	}

	notification := types.Notification{
		ID:             uuid.NewString(),
		UserID:         assignment.Recipient,
		ProblemID:      assignment.ProblemID,
		ProblemTitle:   assignment.ProblemTitle,
		AssignedBy:     assignment.AssignedBy,
		AssignedByName: assignment.AssignedByName,
	}

	if _, err := r.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	if _, err := r.bus.Publish(ctx, events.ChannelNotificationChanges, nil, map[string]string{events.AttrUser: assignment.Recipient}); err != nil {
		r.log.Warnw("notification change publish failed", "recipient", assignment.Recipient, "error", err)
	}

	r.log.Infow("notification relayed",
		"recipient", assignment.Recipient,
		"problem", assignment.ProblemID,
		"assigned_by", assignment.AssignedBy,
	)
	return nil
}
