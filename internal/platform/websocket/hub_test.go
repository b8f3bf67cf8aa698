package websocket

import (
	"testing"
)

func newTestClient(room, kind string) *Client {
	return &Client{
		ID:   "test-" + room + "-" + kind,
		Room: room,
		Kind: kind,
		Send: make(chan []byte, 8),
	}
}

func TestHub_RegisterAndCount(t *testing.T) {
	hub := NewHub()
	a := newTestClient("patient-1", "patient")
	b := newTestClient("patient-1", "doctor")
	c := newTestClient("patient-2", "patient")

	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("expected 3 clients, got %d", got)
	}
	if got := hub.RoomCount("patient-1"); got != 2 {
		t.Errorf("expected 2 clients in patient-1, got %d", got)
	}
	if got := hub.RoomCount("patient-2"); got != 1 {
		t.Errorf("expected 1 client in patient-2, got %d", got)
	}
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	a := newTestClient("patient-1", "patient")
	b := newTestClient("patient-1", "doctor")
	other := newTestClient("patient-2", "patient")

	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	hub.Broadcast("patient-1", []byte("hello"))

	for _, cl := range []*Client{a, b} {
		select {
		case msg := <-cl.Send:
			if string(msg) != "hello" {
				t.Errorf("unexpected message %q", msg)
			}
		default:
			t.Errorf("client %s did not receive broadcast", cl.ID)
		}
	}

	select {
	case msg := <-other.Send:
		t.Errorf("client in other room received %q", msg)
	default:
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	a := newTestClient("patient-1", "patient")
	hub.Register(a)
	hub.Unregister(a)

	if _, open := <-a.Send; open {
		t.Error("expected Send channel to be closed")
	}
	if got := hub.RoomCount("patient-1"); got != 0 {
		t.Errorf("expected empty room, got %d", got)
	}

	// Unregistering twice must not panic.
	hub.Unregister(a)
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	a := &Client{ID: "a", Room: "r", Send: make(chan []byte)} // unbuffered, never read
	hub.Register(a)

	// Must not block.
	hub.Broadcast("r", []byte("x"))
}
