package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberPublishDropsOldestWhenFull(t *testing.T) {
	sub := newSubscriber(2)

	sub.publish(Frame{Seq: 1})
	sub.publish(Frame{Seq: 2})
	sub.publish(Frame{Seq: 3}) // ring full: seq 1 should be dropped

	first := <-sub.ch
	second := <-sub.ch

	assert.Equal(t, uint64(2), first.Seq)
	assert.Equal(t, uint64(3), second.Seq)
	assert.Equal(t, uint64(1), sub.droppedCount())
}

func TestSubscriberPublishNeverBlocks(t *testing.T) {
	sub := newSubscriber(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sub.publish(Frame{Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no consumer draining the ring")
	}
}
