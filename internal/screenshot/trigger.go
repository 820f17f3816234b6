package screenshot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sakif/linkstash/internal/event"
	"github.com/sakif/linkstash/internal/model"
)

// Trigger gives every freshly created bookmark exactly one initial capture
// attempt without the creator waiting for it. It subscribes to the
// bookmark.created topic and dispatches attempts as they arrive.
//
// Delivery is at-least-once: a redelivered message re-enters the
// orchestrator, whose processing transition makes the duplicate a benign
// last-write-wins race rather than a correctness problem.
type Trigger struct {
	subscriber message.Subscriber
	attempter  Attempter
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewTrigger creates a trigger consuming from sub.
func NewTrigger(sub message.Subscriber, attempter Attempter, logger *slog.Logger) *Trigger {
	return &Trigger{
		subscriber: sub,
		attempter:  attempter,
		logger:     logger,
	}
}

// Start subscribes and begins handling events. The handler goroutine exits
// when the subscription channel closes (context cancellation or the Pub/Sub
// shutting down).
func (t *Trigger) Start(ctx context.Context) error {
	messages, err := t.subscriber.Subscribe(ctx, event.TopicBookmarkCreated)
	if err != nil {
		return err
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for msg := range messages {
			t.handle(ctx, msg)
		}
	}()

	return nil
}

// Wait blocks until the handler goroutine has drained and exited.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// handle processes one created event. Messages are always acked; a failed
// capture is persisted on the bookmark by the orchestrator and recovered by
// the sweeper, so redelivery buys nothing.
func (t *Trigger) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	evt, err := event.ParseBookmarkCreated(msg)
	if err != nil {
		t.logger.Error("dropping malformed bookmark.created event",
			slog.String("messageID", msg.UUID),
			slog.String("error", err.Error()),
		)
		return
	}

	// Fire only for records that still need their first capture. Replayed
	// events for processed records, and partially written ones, no-op here.
	if evt.ScreenshotStatus != string(model.ScreenshotPending) || evt.URL == "" || evt.UserID == "" {
		t.logger.Debug("ignoring bookmark.created event",
			slog.String("bookmarkID", evt.BookmarkID),
			slog.String("status", evt.ScreenshotStatus),
		)
		return
	}

	res, err := t.attempter.Attempt(ctx, evt.BookmarkID, evt.URL, evt.UserID)
	if err != nil {
		t.logger.Error("initial capture attempt errored",
			slog.String("bookmarkID", evt.BookmarkID),
			slog.String("error", err.Error()),
		)
		return
	}

	t.logger.Info("initial capture attempt finished",
		slog.String("bookmarkID", evt.BookmarkID),
		slog.Bool("success", res.Success),
	)
}
