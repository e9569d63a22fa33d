package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	b := New()
	sub, unsubscribe := b.Subscribe()
	defer unsubscribe()

	go b.Publish(TagScanStart, nil)

	select {
	case ev := <-sub.Events():
		require.Equal(t, TagScanStart, ev.Tag)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishBlocksUntilSubscriberReceives(t *testing.T) {
	b := New()
	sub, unsubscribe := b.Subscribe()
	defer unsubscribe()

	published := make(chan struct{})
	go func() {
		b.Publish(TagScanStart, nil)
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("Publish returned before the subscriber read the event")
	case <-time.After(50 * time.Millisecond):
	}

	<-sub.Events()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish did not return after the subscriber read the event")
	}
}

func TestPublishDoesNotBlockForeverAfterUnsubscribe(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe()
	unsubscribe()

	done := make(chan struct{})
	go func() {
		b.Publish(TagScanStart, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an unsubscribed reader")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	sub1, unsub1 := b.Subscribe()
	defer unsub1()
	sub2, unsub2 := b.Subscribe()
	defer unsub2()

	go b.Publish(TagNoteCreated, NotePayload{NoteID: 1})

	for _, sub := range []*Subscriber{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			require.Equal(t, TagNoteCreated, ev.Tag)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscriberCountTracksLiveSubscribers(t *testing.T) {
	b := New()
	require.Equal(t, 0, b.SubscriberCount())

	_, unsub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	unsub()
	require.Equal(t, 0, b.SubscriberCount())
}
