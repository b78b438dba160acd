package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every subscriber", func(t *testing.T) {
		bus := NewBus()
		first, unsubFirst := bus.Subscribe()
		second, unsubSecond := bus.Subscribe()
		defer unsubFirst()
		defer unsubSecond()

		bus.Publish(New(UserRoom("u1"), TypeNotification, "hello"))

		for _, ch := range []<-chan Event{first, second} {
			select {
			case e := <-ch:
				require.Equal(t, "user:u1", e.Room)
				require.Equal(t, TypeNotification, e.Type)
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	})

	t.Run("unsubscribe closes the channel and is idempotent", func(t *testing.T) {
		bus := NewBus()
		ch, unsubscribe := bus.Subscribe()
		unsubscribe()
		unsubscribe()

		_, open := <-ch
		require.False(t, open)

		bus.Publish(New(TaskRoom("t1"), TypeTaskUpdate, nil))
	})

	t.Run("full subscribers lose events without blocking", func(t *testing.T) {
		bus := NewBus()
		_, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		for i := 0; i < subscriberBuffer+5; i++ {
			bus.Publish(New(UserRoom("u1"), TypeNotification, i))
		}
		require.EqualValues(t, 5, bus.Dropped())
	})

	t.Run("close ends every subscription", func(t *testing.T) {
		bus := NewBus()
		ch, unsubscribe := bus.Subscribe()

		bus.Close()
		bus.Close()
		unsubscribe()

		_, open := <-ch
		require.False(t, open)

		late, _ := bus.Subscribe()
		_, open = <-late
		require.False(t, open)

		bus.Publish(New(UserRoom("u1"), TypeNotification, nil))
		require.Zero(t, bus.Dropped())
	})
}

func TestRooms(t *testing.T) {
	t.Parallel()

	require.Equal(t, "task:42", TaskRoom("42"))
	require.True(t, IsTaskRoom("task:42"))
	require.False(t, IsTaskRoom("task:"))
	require.False(t, IsTaskRoom("user:42"))
}
