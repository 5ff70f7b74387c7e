// Package ingest drains the PULL transport's decoded frames into the
// message handler. It is intentionally single-threaded: the handler's
// read-modify-write over the store is not internally synchronized against
// concurrent callers, so exactly one ingest worker must own it.
package ingest

import (
	"sync"

	"github.com/tradecopy/relayd/internal/handler"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Loop pulls frames off a PullServer and dispatches them to a Handler.
type Loop struct {
	pull    *transport.PullServer
	handler *handler.Handler
	log     *logging.Logger
	wg      sync.WaitGroup
}

// New returns an ingest loop over pull's inbound channel.
func New(pull *transport.PullServer, h *handler.Handler) *Loop {
	return &Loop{
		pull:    pull,
		handler: h,
		log:     logging.GetDefault().Component("ingest"),
	}
}

// Start begins draining frames in a single background goroutine. It
// returns immediately; call Wait to block until the loop exits (which
// happens once the PullServer's inbound channel is closed by Stop).
func (l *Loop) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.log.Info("ingest loop started")
		for frame := range l.pull.Inbound() {
			l.handler.Handle(frame)
		}
		l.log.Info("ingest loop stopped")
	}()
}

// Wait blocks until the loop has drained and exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}
