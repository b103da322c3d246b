package socket

import (
	"context"

	"docdash/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Notifier receives the paths of changed collections.
type Notifier interface {
	Notify(collection string)
}

// Receiver is what a Fanout forwards to on each instance. *Hub implements it.
type Receiver interface {
	Notifier
	DisconnectSession(sessionID string)
}

// Fanout spreads change notifications and ended sessions to every server
// instance through Redis pub/sub. Each instance forwards what it receives to
// its own hub.
type Fanout struct {
	client   *redis.Client
	channel  string
	sessions string
	local    Receiver
}

func NewFanout(client *redis.Client, channel string, local Receiver) *Fanout {
	return &Fanout{client: client, channel: channel, sessions: channel + ":signout", local: local}
}

// Notify publishes the change. If publishing fails the local hub is still
// told so subscribers on this instance stay current.
func (f *Fanout) Notify(collection string) {
	if err := f.client.Publish(context.Background(), f.channel, collection).Err(); err != nil {
		logger.Sugar.Errorf("Failed to publish change of %s: %v", collection, err)
		f.local.Notify(collection)
	}
}

// DisconnectSession asks every instance to drop the sockets of an ended
// session. Without Redis only this instance is reached.
func (f *Fanout) DisconnectSession(sessionID string) {
	if sessionID == "" {
		return
	}
	if err := f.client.Publish(context.Background(), f.sessions, sessionID).Err(); err != nil {
		logger.Sugar.Errorf("Failed to publish end of session %s: %v", sessionID, err)
		f.local.DisconnectSession(sessionID)
	}
}

// Run forwards published messages to the local hub until ctx is done.
func (f *Fanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel, f.sessions)
	defer sub.Close()

	// Wait for both subscriptions to be confirmed before reporting readiness.
	for i := 0; i < 2; i++ {
		if _, err := sub.Receive(ctx); err != nil {
			return err
		}
	}
	logger.Sugar.Infof("Listening for collection changes on %s", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Channel == f.sessions {
				f.local.DisconnectSession(msg.Payload)
				continue
			}
			f.local.Notify(msg.Payload)
		}
	}
}
