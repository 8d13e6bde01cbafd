package telemetry

import (
	"net"
	"testing"
	"time"
)

func TestTCPPublisherFansOutToClient(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer listener.Close()

	pub := NewTCPPublisher(listener, nil)
	defer pub.Close()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	defer conn.Close()

	// Give the accept loop a moment to register the client.
	deadline := time.Now().Add(time.Second)
	for {
		pub.mu.Lock()
		n := len(pub.clients)
		pub.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	want := Snapshot{Mode: 2, ControlTime: 12.5}
	if err := pub.Publish(want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var codec CBORCodec
	got, err := codec.Decode(conn)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Mode != want.Mode || got.ControlTime != want.ControlTime {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTCPPublisherNoSubscriber(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer listener.Close()

	pub := NewTCPPublisher(listener, nil)
	defer pub.Close()

	if err := pub.Publish(Snapshot{}); err != ErrNoSubscriber {
		t.Fatalf("Publish() error = %v, want ErrNoSubscriber", err)
	}
}
