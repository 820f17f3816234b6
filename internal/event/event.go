// Package event defines the messages flowing over the in-process Pub/Sub.
//
// The bookmark service publishes; the screenshot trigger subscribes. Keeping
// the event shape here means neither side imports the other.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// TopicBookmarkCreated carries one message per freshly created bookmark.
const TopicBookmarkCreated = "bookmark.created"

// BookmarkCreated is the record snapshot as of creation. The trigger guards
// on ScreenshotStatus so replayed or stale messages for already-processed
// records are ignored.
type BookmarkCreated struct {
	BookmarkID       string `json:"bookmarkId"`
	UserID           string `json:"userId"`
	URL              string `json:"url"`
	ScreenshotStatus string `json:"screenshotStatus"`
}

// PublishBookmarkCreated marshals and publishes the event. Fire-and-forget
// from the creator's perspective: the subscriber's failures never propagate
// back here.
func PublishBookmarkCreated(pub message.Publisher, evt BookmarkCreated) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("event: marshaling bookmark.created: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := pub.Publish(TopicBookmarkCreated, msg); err != nil {
		return fmt.Errorf("event: publishing bookmark.created: %w", err)
	}
	return nil
}

// ParseBookmarkCreated unmarshals a received message.
func ParseBookmarkCreated(msg *message.Message) (BookmarkCreated, error) {
	var evt BookmarkCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return BookmarkCreated{}, fmt.Errorf("event: unmarshaling bookmark.created: %w", err)
	}
	return evt, nil
}
