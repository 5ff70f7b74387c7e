package transport

import (
	"net"
	"sync"
	"time"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/pkg/logging"
)

// subscriber is one connected PUB client. Every topic frame is written to
// every subscriber (filtering by topic is the EA's job, mirroring how a
// ZMQ SUB socket filters client-side) so PubServer itself stays topic
// agnostic.
type subscriber struct {
	conn net.Conn
	send chan []byte
}

const subscriberSendBuffer = 256

// PubServer is the broadcast half of the transport: a single-owner
// goroutine fans every published frame out to all connected subscribers,
// the same register/unregister/broadcast-channel shape as a websocket hub
// generalized to raw TCP.
type PubServer struct {
	addr     string
	listener net.Listener
	log      *logging.Logger
	metrics  *metrics.Counters

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte

	mu   sync.RWMutex
	subs map[*subscriber]bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewPubServer constructs a PubServer bound to addr; call Start to begin
// accepting connections and Run to drive the broadcast loop.
func NewPubServer(addr string, m *metrics.Counters) *PubServer {
	return &PubServer{
		addr:       addr,
		log:        logging.GetDefault().Component("pub"),
		metrics:    m,
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, 1024),
		subs:       make(map[*subscriber]bool),
		done:       make(chan struct{}),
	}
}

// Start opens the listener and begins accepting subscriber connections.
// Run must be started separately; until it runs, an accepted subscriber
// blocks the accept loop on registration.
func (p *PubServer) Start() error {
	l, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	p.listener = l
	go p.acceptLoop()
	p.log.Info("pub server listening", "addr", p.addr)
	return nil
}

func (p *PubServer) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
				p.log.Warn("pub accept failed", "err", err)
				return
			}
		}
		sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSendBuffer)}
		p.register <- sub
		go p.writePump(sub)
	}
}

func (p *PubServer) writePump(sub *subscriber) {
	defer sub.conn.Close()
	for frame := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if _, err := sub.conn.Write(frame); err != nil {
			p.unregister <- sub
			return
		}
	}
}

// Run drives the single-owner broadcast loop until stopped. Call it in
// its own goroutine.
func (p *PubServer) Run() {
	for {
		select {
		case <-p.done:
			p.mu.Lock()
			// Flush frames still queued in broadcast before closing.
			for pending := true; pending; {
				select {
				case frame := <-p.broadcast:
					for sub := range p.subs {
						select {
						case sub.send <- frame:
						default:
							p.metrics.IncReason("pub.dropped")
						}
					}
				default:
					pending = false
				}
			}
			for sub := range p.subs {
				close(sub.send)
			}
			p.subs = make(map[*subscriber]bool)
			p.mu.Unlock()
			return

		case sub := <-p.register:
			p.mu.Lock()
			p.subs[sub] = true
			p.mu.Unlock()

		case sub := <-p.unregister:
			p.mu.Lock()
			if p.subs[sub] {
				delete(p.subs, sub)
				close(sub.send)
			}
			p.mu.Unlock()

		case frame := <-p.broadcast:
			p.mu.RLock()
			for sub := range p.subs {
				select {
				case sub.send <- frame:
				default:
					p.log.Warn("subscriber send buffer full, dropping frame")
					p.metrics.IncReason("pub.dropped")
				}
			}
			p.mu.RUnlock()
		}
	}
}

// Publish enqueues a frame for fan-out to every subscriber and reports
// whether it was accepted. Never blocks: a full broadcast channel only
// happens under sustained overload and the caller (the publisher
// component) would rather skip and count the failure than stall the
// whole relay.
func (p *PubServer) Publish(frame []byte) bool {
	select {
	case p.broadcast <- frame:
		return true
	default:
		p.log.Warn("broadcast channel full, dropping frame")
		p.metrics.IncReason("pub.broadcast_full")
		return false
	}
}

// ListenAddr returns the address the server is bound to, useful when addr
// was passed as ":0" to pick an ephemeral port.
func (p *PubServer) ListenAddr() string {
	return p.listener.Addr().String()
}

// SubscriberCount reports how many clients are currently connected.
func (p *PubServer) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Stop closes the listener and every subscriber connection.
func (p *PubServer) Stop() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.listener != nil {
			err = p.listener.Close()
		}
	})
	return err
}
