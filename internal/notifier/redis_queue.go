package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const popTimeout = 5 * time.Second

// RedisQueue is a reliable FIFO list. Producers LPUSH; the worker BLMOVEs a
// message into a processing list and removes it from there on Ack, so a
// crash between receive and delivery leaves the message recoverable.
type RedisQueue struct {
	client     redis.UniversalClient
	key        string
	processing string
}

func NewRedisQueue(client redis.UniversalClient, name string) *RedisQueue {
	key := fmt.Sprintf("queue:%s", name)
	return &RedisQueue{client: client, key: key, processing: key + ":processing"}
}

func encodeMessage(msg Message) ([]byte, error) {
	return msgpack.Marshal(&msg)
}

func decodeMessage(raw string) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("decode queued message: %w", err)
	}
	msg.receipt = raw
	return msg, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	b, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Message, error) {
	for {
		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", popTimeout).Result()
		if err != nil && ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Message{}, err
		}

		msg, err := decodeMessage(raw)
		if err != nil {
			// Undecodable entries would otherwise be restored forever.
			q.client.LRem(context.WithoutCancel(ctx), q.processing, 1, raw)
			return Message{}, err
		}
		return msg, nil
	}
}

// Ack removes a delivered (or permanently failed) message from the
// processing list.
func (q *RedisQueue) Ack(ctx context.Context, msg Message) error {
	if msg.receipt == "" {
		return nil
	}
	return q.client.LRem(ctx, q.processing, 1, msg.receipt).Err()
}

// Restore moves messages left in the processing list by a worker that died
// mid-delivery back to the head of the queue. It must run before workers
// start consuming; it returns the number of restored messages.
func (q *RedisQueue) Restore(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
