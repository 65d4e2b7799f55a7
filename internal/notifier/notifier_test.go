package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []Message
}

func (s *fakeSender) Send(_ context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	s.sent = append(s.sent, Message{Recipient: recipient, Text: text})
	return nil
}

type brokenQueue struct{}

func (brokenQueue) Enqueue(context.Context, Message) error { return errors.New("redis down") }
func (brokenQueue) Dequeue(ctx context.Context) (Message, error) {
	<-ctx.Done()
	return Message{}, ctx.Err()
}
func (brokenQueue) Ack(context.Context, Message) error { return nil }

// ackingQueue records acknowledgments on top of a MemoryQueue.
type ackingQueue struct {
	*MemoryQueue
	mu    sync.Mutex
	acked []string
}

func (q *ackingQueue) Ack(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msg.ID)
	return nil
}

func (q *ackingQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

// hangingSender blocks like a slow network call until its context ends.
type hangingSender struct {
	calls chan struct{}
}

func (s *hangingSender) Send(ctx context.Context, _, _ string) error {
	s.calls <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func testWorker(q Queue, senders map[Channel]Sender, retries int) *Worker {
	w := NewWorker(q, senders, retries, zap.NewNop())
	w.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return w
}

func sampleAward() models.IssuedAchievement {
	tgID := int64(4242)
	discordID := "99887766"
	reason := "mistake"
	return models.IssuedAchievement{
		Base:        models.Base{ID: uuid.New()},
		Achievement: models.Achievement{Name: "Night <Owl>", Rarity: models.RarityEpic},
		Student: models.User{
			Base:       models.Base{ID: uuid.New()},
			FirstName:  "Anna",
			LastName:   "Petrova",
			TelegramID: &tgID,
			DiscordID:  &discordID,
		},
		Reward:             50,
		CancellationReason: &reason,
		Canceler:           &models.User{FirstName: "Oleg", LastName: "Sidorov"},
	}
}

func TestTemplates(t *testing.T) {
	award := sampleAward()

	assert.Equal(t, "🏆 You received a new achievement <b>Night &lt;Owl&gt;</b>! +50 points", IssueMessage(ChannelTelegram, award))
	assert.Equal(t, "🏆 You received a new achievement **Night <Owl>**! +50 points", IssueMessage(ChannelDiscord, award))
	assert.Contains(t, CancelMessage(ChannelTelegram, award), "Reason: <b>mistake</b>")
	assert.Contains(t, CancelMessage(ChannelTelegram, award), "Canceled by: Oleg Sidorov")
	assert.Contains(t, AnnouncementMessage(award), "**Student:** Anna Petrova")
}

func TestDispatcherRespectsSettings(t *testing.T) {
	q := NewMemoryQueue(10)
	d := NewDispatcher(q, "", zap.NewNop())
	award := sampleAward()
	award.Student.Settings = &models.UserSettings{ReceiveTelegramNotifications: false, ReceiveDiscordNotifications: true}

	d.AwardIssued(context.Background(), award)

	require.Equal(t, 1, q.Len())
	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ChannelDiscord, msg.Channel)
	assert.Equal(t, "99887766", msg.Recipient)
}

func TestDispatcherAnnouncement(t *testing.T) {
	q := NewMemoryQueue(10)
	d := NewDispatcher(q, "chan-1", zap.NewNop())
	award := sampleAward()
	award.Student.TelegramID = nil
	award.Student.DiscordID = nil

	d.AwardIssued(context.Background(), award)
	d.AwardCanceled(context.Background(), award)

	require.Equal(t, 1, q.Len())
	msg, _ := q.Dequeue(context.Background())
	assert.Equal(t, ChannelDiscordAnnouncement, msg.Channel)
	assert.Equal(t, "chan-1", msg.Recipient)
}

func TestDispatcherSwallowsQueueErrors(t *testing.T) {
	d := NewDispatcher(brokenQueue{}, "chan-1", zap.NewNop())

	assert.NotPanics(t, func() {
		d.AwardIssued(context.Background(), sampleAward())
		d.AwardCanceled(context.Background(), sampleAward())
	})
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), NewMessage(ChannelTelegram, "1", "a")))
	assert.ErrorIs(t, q.Enqueue(context.Background(), NewMessage(ChannelTelegram, "1", "b")), ErrQueueFull)
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2, err: errors.New("timeout")}
	w := testWorker(NewMemoryQueue(1), map[Channel]Sender{ChannelTelegram: sender}, 3)

	ok := w.Deliver(context.Background(), NewMessage(ChannelTelegram, "1", "hi"))

	assert.True(t, ok)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "hi", sender.sent[0].Text)
}

func TestWorkerStopsOnPermanentFailure(t *testing.T) {
	sender := &fakeSender{failures: 1, err: backoff.Permanent(errors.New("blocked"))}
	w := testWorker(NewMemoryQueue(1), map[Channel]Sender{ChannelTelegram: sender}, 5)

	ok := w.Deliver(context.Background(), NewMessage(ChannelTelegram, "1", "hi"))

	assert.False(t, ok)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 0, sender.failures)
}

func TestWorkerDropsUnknownChannel(t *testing.T) {
	w := testWorker(NewMemoryQueue(1), map[Channel]Sender{}, 1)
	assert.False(t, w.Deliver(context.Background(), NewMessage(ChannelDiscord, "1", "hi")))
}

func TestWorkerRun(t *testing.T) {
	q := NewMemoryQueue(5)
	sender := &fakeSender{}
	w := testWorker(q, map[Channel]Sender{ChannelDiscord: sender}, 1)
	require.NoError(t, q.Enqueue(context.Background(), NewMessage(ChannelDiscord, "u1", "one")))
	require.NoError(t, q.Enqueue(context.Background(), NewMessage(ChannelDiscord, "u2", "two")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWorkerAcksFinishedMessages(t *testing.T) {
	q := &ackingQueue{MemoryQueue: NewMemoryQueue(5)}
	sender := &fakeSender{}
	blocked := &fakeSender{failures: 1, err: backoff.Permanent(errors.New("blocked"))}
	w := testWorker(q, map[Channel]Sender{ChannelDiscord: sender, ChannelTelegram: blocked}, 1)
	ok := NewMessage(ChannelDiscord, "u1", "one")
	failed := NewMessage(ChannelTelegram, "u2", "two")
	require.NoError(t, q.Enqueue(context.Background(), ok))
	require.NoError(t, q.Enqueue(context.Background(), failed))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(q.ackedIDs()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{ok.ID, failed.ID}, q.ackedIDs())
	assert.Len(t, sender.sent, 1)
}

func TestWorkerRequeuesOnShutdown(t *testing.T) {
	q := NewMemoryQueue(5)
	sender := &hangingSender{calls: make(chan struct{}, 1)}
	w := testWorker(q, map[Channel]Sender{ChannelTelegram: sender}, 10)
	msg := NewMessage(ChannelTelegram, "1", "hi")
	require.NoError(t, q.Enqueue(context.Background(), msg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-sender.calls:
	case <-time.After(time.Second):
		t.Fatal("sender was never called")
	}
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, 1, q.Len())
	requeued, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msg.ID, requeued.ID)
	assert.Equal(t, "hi", requeued.Text)
}

func TestWorkerRequeuesDuringBackoff(t *testing.T) {
	q := NewMemoryQueue(5)
	sender := &fakeSender{failures: 1000, err: errors.New("timeout")}
	w := NewWorker(q, map[Channel]Sender{ChannelTelegram: sender}, 1000, zap.NewNop())
	w.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(20 * time.Millisecond) }
	require.NoError(t, q.Enqueue(context.Background(), NewMessage(ChannelTelegram, "1", "hi")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, q.Len())
	assert.Empty(t, sender.sent)
}
