package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	// ChannelDiscord is a direct message to a linked Discord account.
	ChannelDiscord Channel = "discord"
	// ChannelDiscordAnnouncement posts to the configured public channel.
	ChannelDiscordAnnouncement Channel = "discord_announcement"
)

// Message is one rendered notification waiting for delivery.
type Message struct {
	ID         string    `msgpack:"id"`
	Channel    Channel   `msgpack:"channel"`
	Recipient  string    `msgpack:"recipient"`
	Text       string    `msgpack:"text"`
	EnqueuedAt time.Time `msgpack:"enqueued_at"`

	// receipt identifies the dequeued copy to its queue for Ack.
	receipt string
}

func NewMessage(channel Channel, recipient, text string) Message {
	return Message{
		ID:         uuid.NewString(),
		Channel:    channel,
		Recipient:  recipient,
		Text:       text,
		EnqueuedAt: time.Now().UTC(),
	}
}

var ErrQueueFull = errors.New("notification queue is full")

// Queue is the outbound task queue between the workflows and the delivery
// worker. Dequeue blocks until a message is available or ctx is done. A
// dequeued message stays reserved until it is acknowledged with Ack.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	Dequeue(ctx context.Context) (Message, error)
	Ack(ctx context.Context, msg Message) error
}

// MemoryQueue keeps messages in process. It is used when Redis is not
// configured and in tests.
type MemoryQueue struct {
	ch chan Message
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan Message, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Ack is a no-op: an in-process message is gone once it is received.
func (q *MemoryQueue) Ack(context.Context, Message) error {
	return nil
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
