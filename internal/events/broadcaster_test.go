package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster[ViewUpdate](4)
	a := b.Subscribe()
	c := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(ViewUpdate{Kind: KindPortfolio, CycleID: "c1"})

	require.Equal(t, "c1", (<-a).CycleID)
	require.Equal(t, KindPortfolio, (<-c).Kind)
}

func TestBroadcaster_DropsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch := b.Subscribe()

	b.Publish(1)
	b.Publish(2)

	require.Equal(t, 1, <-ch)
	require.Len(t, ch, 0)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster[int](0)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.Subscribers())
	b.Publish(1)
}
