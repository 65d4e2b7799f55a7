package notifier

import (
	"context"
	"strconv"

	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"go.uber.org/zap"
)

// Dispatcher renders award notifications and pushes them to the queue. It
// runs after the business transaction has committed, so it never reports
// failure to its caller: enqueue errors are logged and dropped.
type Dispatcher struct {
	queue                 Queue
	announcementChannelID string
	log                   *zap.Logger
}

func NewDispatcher(queue Queue, announcementChannelID string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:                 queue,
		announcementChannelID: announcementChannelID,
		log:                   log.With(zap.String("service", "notifier")),
	}
}

// AwardIssued expects award.Achievement and award.Student (with Settings)
// to be loaded.
func (d *Dispatcher) AwardIssued(ctx context.Context, award models.IssuedAchievement) {
	for _, msg := range d.personal(award.Student, func(ch Channel) string { return IssueMessage(ch, award) }) {
		d.enqueue(ctx, msg)
	}
	if d.announcementChannelID != "" {
		d.enqueue(ctx, NewMessage(ChannelDiscordAnnouncement, d.announcementChannelID, AnnouncementMessage(award)))
	}
}

// AwardCanceled expects award.Achievement, award.Student and award.Canceler
// to be loaded.
func (d *Dispatcher) AwardCanceled(ctx context.Context, award models.IssuedAchievement) {
	for _, msg := range d.personal(award.Student, func(ch Channel) string { return CancelMessage(ch, award) }) {
		d.enqueue(ctx, msg)
	}
}

// personal builds one message per channel the student is reachable on and
// has not muted.
func (d *Dispatcher) personal(student models.User, render func(Channel) string) []Message {
	settings := models.DefaultUserSettings(student.ID)
	if student.Settings != nil {
		settings = *student.Settings
	}

	var out []Message
	if student.TelegramID != nil && settings.ReceiveTelegramNotifications {
		out = append(out, NewMessage(ChannelTelegram, strconv.FormatInt(*student.TelegramID, 10), render(ChannelTelegram)))
	}
	if student.DiscordID != nil && *student.DiscordID != "" && settings.ReceiveDiscordNotifications {
		out = append(out, NewMessage(ChannelDiscord, *student.DiscordID, render(ChannelDiscord)))
	}
	return out
}

func (d *Dispatcher) enqueue(ctx context.Context, msg Message) {
	// The request context may already be canceled by the time the
	// transaction commits; the enqueue must not depend on it.
	ctx = context.WithoutCancel(ctx)
	if err := d.queue.Enqueue(ctx, msg); err != nil {
		d.log.Error("Failed to enqueue notification",
			zap.Error(err),
			zap.String("channel", string(msg.Channel)),
			zap.String("message_id", msg.ID))
		return
	}
	d.log.Debug("Notification enqueued", zap.String("channel", string(msg.Channel)), zap.String("message_id", msg.ID))
}
