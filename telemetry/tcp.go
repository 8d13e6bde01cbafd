package telemetry

import (
	"log/slog"
	"net"
	"sync"
)

// TCPPublisher accepts any number of TCP clients and fans each
// published Snapshot out to all of them as length-prefixed CBOR frames.
// A client that falls behind misses snapshots rather than being allowed
// to block Publish, per the Publisher contract.
type TCPPublisher struct {
	log   *slog.Logger
	codec CBORCodec

	mu      sync.Mutex
	clients map[net.Conn]chan Snapshot
	closed  bool
}

// NewTCPPublisher starts accepting connections on listener in the
// background. Closing listener stops the accept loop.
func NewTCPPublisher(listener net.Listener, log *slog.Logger) *TCPPublisher {
	if log == nil {
		log = slog.Default()
	}
	p := &TCPPublisher{
		log:     log,
		clients: make(map[net.Conn]chan Snapshot),
	}
	go p.acceptLoop(listener)
	return p
}

func (p *TCPPublisher) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if !closed {
				p.log.Error("telemetry: accept failed", "error", err)
			}
			return
		}
		p.addClient(conn)
	}
}

func (p *TCPPublisher) addClient(conn net.Conn) {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	p.clients[conn] = ch
	p.mu.Unlock()

	p.log.Info("telemetry: client connected", "remote", conn.RemoteAddr())
	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.clients, conn)
			p.mu.Unlock()
			conn.Close()
		}()
		for s := range ch {
			if err := p.codec.Encode(conn, s); err != nil {
				p.log.Warn("telemetry: client write failed, dropping", "remote", conn.RemoteAddr(), "error", err)
				return
			}
		}
	}()
}

// Publish fans s out to every connected client without blocking: a
// client whose queue is already full for this tick is skipped rather
// than given a chance to stall the publish.
func (p *TCPPublisher) Publish(s Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.clients) == 0 {
		return ErrNoSubscriber
	}
	for _, ch := range p.clients {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

// Close disconnects every currently connected client. It does not close
// the listener: the accept loop keeps running until the caller closes it.
func (p *TCPPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	for conn, ch := range p.clients {
		close(ch)
		delete(p.clients, conn)
	}
	p.mu.Unlock()
	return nil
}
