package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tradecopy/relayd/internal/wire"
	"github.com/tradecopy/relayd/pkg/logging"
)

// InboundFrame is one decoded frame handed off from a PULL connection to
// the ingest loop.
type InboundFrame struct {
	Kind       wire.MessageKind
	Body       []byte
	RemoteAddr string
}

// PullServer accepts EA connections and decodes length-delimited frames
// off each one. The accept loop is rate limited to blunt a connection
// flood; once a connection is admitted, its frames are never dropped —
// backpressure on the inbound channel blocks the reader instead, and the
// kernel socket buffer absorbs the rest.
type PullServer struct {
	addr     string
	listener net.Listener
	log      *logging.Logger
	limiter  *rate.Limiter

	inbound chan InboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewPullServer constructs a PullServer. bufSize bounds the inbound
// channel; acceptRate/acceptBurst bound new-connection admission.
func NewPullServer(addr string, bufSize int, acceptRate rate.Limit, acceptBurst int) *PullServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &PullServer{
		addr:    addr,
		log:     logging.GetDefault().Component("pull"),
		limiter: rate.NewLimiter(acceptRate, acceptBurst),
		inbound: make(chan InboundFrame, bufSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start opens the listener and begins accepting connections.
func (p *PullServer) Start() error {
	l, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	p.listener = l
	p.wg.Add(1)
	go p.acceptLoop()
	p.log.Info("pull server listening", "addr", p.addr)
	return nil
}

// Inbound returns the channel of decoded frames. Handler goroutines should
// range over this channel until it closes on Stop.
func (p *PullServer) Inbound() <-chan InboundFrame {
	return p.inbound
}

// ListenAddrForTest returns the actual bound address, useful when Start
// was given a ":0" ephemeral port.
func (p *PullServer) ListenAddrForTest() string {
	return p.listener.Addr().String()
}

func (p *PullServer) acceptLoop() {
	defer p.wg.Done()
	for {
		if err := p.limiter.Wait(p.ctx); err != nil {
			return // context cancelled: shutting down
		}
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.ctx.Done():
				return
			default:
				p.log.Warn("pull accept failed", "err", err)
				return
			}
		}
		p.wg.Add(1)
		go p.readLoop(conn)
	}
}

func (p *PullServer) readLoop(conn net.Conn) {
	defer p.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	for {
		kind, body, err := wire.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, wire.ErrMalformedFrame) {
				p.log.Warn("malformed frame, closing connection", "remote", remote, "err", err)
			}
			return
		}

		select {
		case p.inbound <- InboundFrame{Kind: kind, Body: body, RemoteAddr: remote}:
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop closes the listener, cancels the accept loop, waits for every
// reader goroutine to drain, then closes the inbound channel.
func (p *PullServer) Stop() error {
	var err error
	p.closeOnce.Do(func() {
		p.cancel()
		if p.listener != nil {
			err = p.listener.Close()
		}
		p.wg.Wait()
		close(p.inbound)
	})
	return err
}
