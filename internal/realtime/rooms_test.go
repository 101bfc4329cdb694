package realtime

import (
	"sync"
	"testing"
)

func TestRoomsBroadcast(t *testing.T) {
	rooms := NewRooms()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	c3 := newTestClient("c3")
	rooms.Join("AB12", c1)
	rooms.Join("AB12", c2)
	rooms.Join("ZZ99", c3)

	rooms.Broadcast("AB12", Event{Type: "ping"})

	if len(drain(c1)) != 1 || len(drain(c2)) != 1 {
		t.Fatal("room members did not receive the broadcast")
	}
	if len(drain(c3)) != 0 {
		t.Fatal("broadcast leaked into another room")
	}
}

func TestRoomsBroadcastExcept(t *testing.T) {
	rooms := NewRooms()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	rooms.Join("AB12", c1)
	rooms.Join("AB12", c2)

	rooms.BroadcastExcept("AB12", c1, Event{Type: "ping"})

	if len(drain(c1)) != 0 {
		t.Fatal("excluded client received the broadcast")
	}
	if len(drain(c2)) != 1 {
		t.Fatal("other client missed the broadcast")
	}
}

func TestRoomsLeaveDropsEmptyRoom(t *testing.T) {
	rooms := NewRooms()
	c1 := newTestClient("c1")
	rooms.Join("AB12", c1)
	if rooms.Count("AB12") != 1 {
		t.Fatalf("count = %d", rooms.Count("AB12"))
	}
	rooms.Leave("AB12", c1)
	if rooms.Count("AB12") != 0 {
		t.Fatal("room not emptied")
	}
	if _, ok := rooms.rooms["AB12"]; ok {
		t.Fatal("empty room map entry leaked")
	}
	// Leaving again is a no-op.
	rooms.Leave("AB12", c1)
}

func TestRoomsSlowClientDoesNotBlock(t *testing.T) {
	rooms := NewRooms()
	slow := &Client{ID: "slow", send: make(chan Event, 1)}
	rooms.Join("AB12", slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rooms.Broadcast("AB12", Event{Type: "ping"})
		}
		close(done)
	}()
	<-done

	// Only the buffered event survived; the rest were dropped.
	if got := len(drain(slow)); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
}

func TestRoomsConcurrentAccess(t *testing.T) {
	rooms := NewRooms()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestClient(string(rune('a' + i)))
			rooms.Join("AB12", c)
			rooms.Broadcast("AB12", Event{Type: "ping"})
			rooms.Leave("AB12", c)
		}(i)
	}
	wg.Wait()
	if rooms.Count("AB12") != 0 {
		t.Fatalf("count = %d, want 0", rooms.Count("AB12"))
	}
}
