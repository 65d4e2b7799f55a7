package notifier

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Sender delivers one rendered message on one channel.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// Worker consumes the queue and delivers at least once per message, retrying
// transient failures with exponential backoff.
type Worker struct {
	queue      Queue
	senders    map[Channel]Sender
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        *zap.Logger
}

func NewWorker(queue Queue, senders map[Channel]Sender, maxRetries int, log *zap.Logger) *Worker {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Worker{
		queue:      queue,
		senders:    senders,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
		log: log.With(zap.String("service", "notification_worker")),
	}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Notification worker started")
	for ctx.Err() == nil {
		msg, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("Notification worker stopped")
				return nil
			}
			w.log.Error("Failed to dequeue notification", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		w.handle(ctx, msg)
	}
	w.log.Info("Notification worker stopped")
	return nil
}

// handle delivers msg and releases it from the queue. A delivery cut short by
// shutdown puts the message back so the next worker run sends it.
func (w *Worker) handle(ctx context.Context, msg Message) {
	delivered := w.Deliver(ctx, msg)
	release := context.WithoutCancel(ctx)

	if !delivered && ctx.Err() != nil {
		if err := w.queue.Enqueue(release, msg); err != nil {
			// Left unacknowledged; RedisQueue.Restore picks it up.
			w.log.Error("Failed to requeue interrupted notification",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return
		}
		w.log.Info("Requeued interrupted notification", zap.String("message_id", msg.ID))
	}

	if err := w.queue.Ack(release, msg); err != nil {
		w.log.Error("Failed to acknowledge notification", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// Deliver sends one message, retrying until it succeeds, fails permanently
// or runs out of attempts. It reports whether the message was delivered.
func (w *Worker) Deliver(ctx context.Context, msg Message) bool {
	sender, ok := w.senders[msg.Channel]
	if !ok {
		w.log.Warn("No sender for channel, dropping notification",
			zap.String("channel", string(msg.Channel)),
			zap.String("message_id", msg.ID))
		return false
	}

	operation := func() error {
		return sender.Send(ctx, msg.Recipient, msg.Text)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), w.maxRetries), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, d time.Duration) {
		w.log.Warn("Notification delivery failed, retrying",
			zap.String("message_id", msg.ID),
			zap.Error(err),
			zap.Duration("backoff", d))
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.log.Error("Notification dropped",
			zap.String("message_id", msg.ID),
			zap.String("channel", string(msg.Channel)),
			zap.Error(err))
		return false
	}
	w.log.Debug("Notification delivered", zap.String("message_id", msg.ID), zap.String("channel", string(msg.Channel)))
	return true
}
