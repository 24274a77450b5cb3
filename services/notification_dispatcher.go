package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lifeline/models"

	"github.com/sirupsen/logrus"
)

// ChannelSender delivers a payload to a contact over one channel and returns
// the provider's message identifier.
type ChannelSender interface {
	Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload) (string, error)
}

// NotificationDispatcher fans a payload out over a contact's channels.
// Channels are independent: one failing never blocks or cancels another.
type NotificationDispatcher struct {
	senders map[models.NotificationChannel]ChannelSender
	now     func() time.Time
}

func NewNotificationDispatcher(senders map[models.NotificationChannel]ChannelSender) *NotificationDispatcher {
	registered := make(map[models.NotificationChannel]ChannelSender, len(senders))
	for ch, s := range senders {
		if s != nil {
			registered[ch] = s
		}
	}
	return &NotificationDispatcher{senders: registered, now: time.Now}
}

// Channels lists the configured channels.
func (nd *NotificationDispatcher) Channels() []models.NotificationChannel {
	out := make([]models.NotificationChannel, 0, len(nd.senders))
	for _, ch := range []models.NotificationChannel{models.ChannelCall, models.ChannelSMS, models.ChannelPush, models.ChannelEmail} {
		if _, ok := nd.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Send attempts every requested channel concurrently and waits for all of
// them. Results come back in request order with duplicates collapsed. No
// retries are made.
func (nd *NotificationDispatcher) Send(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload, channels []models.NotificationChannel) []models.ChannelResult {
	channels = uniqueChannels(channels)
	results := make([]models.ChannelResult, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch models.NotificationChannel) {
			defer wg.Done()
			results[i] = nd.sendOne(ctx, contact, payload, ch)
		}(i, ch)
	}
	wg.Wait()

	return results
}

func (nd *NotificationDispatcher) sendOne(ctx context.Context, contact models.EmergencyContact, payload models.EmergencyPayload, ch models.NotificationChannel) (result models.ChannelResult) {
	result = models.ChannelResult{Channel: ch}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = (&NotificationFailure{ContactID: contact.Key(), Channel: ch, Cause: fmt.Errorf("panic: %v", r)}).Error()
		}
		result.SentAt = nd.now()
	}()

	sender, ok := nd.senders[ch]
	if !ok {
		result.Error = (&NotificationFailure{ContactID: contact.Key(), Channel: ch, Cause: ErrChannelNotConfigured}).Error()
		return result
	}

	messageID, err := sender.Send(ctx, contact, payload)
	if err != nil {
		failure := &NotificationFailure{ContactID: contact.Key(), Channel: ch, Cause: err}
		logrus.WithFields(logrus.Fields{
			"contact_id": contact.Key(),
			"channel":    ch,
			"episode_id": payload.EpisodeID,
		}).Warnf("Notification failed: %v", err)
		result.Error = failure.Error()
		return result
	}

	result.Success = true
	result.MessageID = messageID
	return result
}

func uniqueChannels(channels []models.NotificationChannel) []models.NotificationChannel {
	seen := make(map[models.NotificationChannel]bool, len(channels))
	out := make([]models.NotificationChannel, 0, len(channels))
	for _, ch := range channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
