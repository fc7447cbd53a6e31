package services

import (
	"context"

	"github.com/lucas6028/silver-server/internal/events"
	"go.uber.org/zap"
)

const (
	eventsProblemChannel      = events.ChannelProblemChanges
	eventsTeamChannel         = events.ChannelTeamChanges
	eventsProfileChannel      = events.ChannelProfileChanges
	eventsNotificationChannel = events.ChannelNotificationChanges
	eventsAssignmentChannel   = events.ChannelAssignments

	attrUser = events.AttrUser
	attrTeam = events.AttrTeam
)

// publishChange emits a best-effort change event. Failures are logged and
// swallowed: the durable write already happened and subscribers will catch
// up on their next full re-query.
func publishChange(ctx context.Context, bus Publisher, log *zap.SugaredLogger, channel string, attrs map[string]string) {
	if bus == nil {
		return
	}
	if _, err := bus.Publish(ctx, channel, nil, attrs); err != nil {
		log.Warnw("change publish failed", "channel", channel, "error", err)
	}
}
