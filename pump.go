package softcan

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPumpClosed is returned by Pump.Send after Close.
var ErrPumpClosed = errors.New("softcan: pump closed")

// Pump drives a Node from a single background goroutine, which is the one
// place Send and Poll are allowed to interleave. Received frames fan out
// to any number of filtered subscribers; transmissions are queued and
// driven when the receiver is between frames.
//
// The poll interval must not exceed the node's bit time, or the receiver
// will miss samples. A nil logger disables frame logging.
type Pump struct {
	node   *Node
	every  time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	subs map[uint64]*pumpSub
	next uint64

	txCh    chan txRequest
	pending []txRequest
	stop    chan struct{}
	done    chan struct{}
}

type pumpSub struct {
	filter  FrameFilter
	ch      chan Frame
	dropped int
}

type txRequest struct {
	frame  Frame
	result chan error
}

// NewPump creates and starts a pump. The caller must have called Begin on
// the node; the pump owns it from here until Close.
func NewPump(node *Node, pollEvery time.Duration, logger *slog.Logger) *Pump {
	p := &Pump{
		node:   node,
		every:  pollEvery,
		logger: logger,
		subs:   make(map[uint64]*pumpSub),
		txCh:   make(chan txRequest),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Send queues a frame and blocks until it was driven onto the bus (nil) or
// failed (ErrBusOff, ErrArbitrationLost, ErrNoAck). Safe for concurrent
// use.
func (p *Pump) Send(f Frame) error {
	req := txRequest{frame: f, result: make(chan error, 1)}
	select {
	case p.txCh <- req:
	case <-p.stop:
		return ErrPumpClosed
	}
	select {
	case err := <-req.result:
		return err
	case <-p.stop:
		return ErrPumpClosed
	}
}

// Subscribe registers a subscriber. Frames matching the filter (nil
// matches all) are delivered to the returned channel; frames are dropped,
// not blocked on, when the channel is full. The cancel function closes the
// channel.
func (p *Pump) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &pumpSub{filter: filter, ch: make(chan Frame, buffer)}
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = s
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if cur, ok := p.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}
	return s.ch, cancel
}

// Close stops the pump, fails queued sends with ErrPumpClosed and closes
// all subscriber channels.
func (p *Pump) Close() error {
	select {
	case <-p.stop:
		return nil
	default:
	}
	close(p.stop)
	<-p.done
	p.mu.Lock()
	for id, s := range p.subs {
		close(s.ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()
	return nil
}

func (p *Pump) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	var f Frame
	for {
		select {
		case <-p.stop:
			for _, req := range p.pending {
				req.result <- ErrPumpClosed
			}
			p.pending = nil
			return
		case req := <-p.txCh:
			p.pending = append(p.pending, req)
		case <-ticker.C:
			switch p.node.Poll(&f) {
			case MessageOk:
				p.logFrame("softcan receive", f)
				p.dispatch(f)
			case FrameError:
				if p.logger != nil {
					p.logger.Warn("softcan receive error",
						"rec", p.node.REC(),
						"state", p.node.State().String(),
					)
				}
			}
			// Transmit only between frames; mid-reception the bus is busy.
			if len(p.pending) > 0 && p.node.rxState == rxIdle {
				req := p.pending[0]
				p.pending = p.pending[1:]
				err := p.node.Send(req.frame)
				if err == nil {
					p.logFrame("softcan send", req.frame)
				} else if p.logger != nil {
					p.logger.Error("softcan send error",
						"id", req.frame.ID,
						"error", err,
						"tec", p.node.TEC(),
						"state", p.node.State().String(),
					)
				}
				req.result <- err
			}
		}
	}
}

func (p *Pump) logFrame(msg string, f Frame) {
	if p.logger == nil {
		return
	}
	p.logger.Info(msg,
		"id", f.ID,
		"dlc", int(f.EffectiveDLC()),
		"data", f.Data[:f.EffectiveDLC()],
		"string", f.String(),
	)
}

func (p *Pump) dispatch(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		if s.filter != nil && !s.filter(f) {
			continue
		}
		select {
		case s.ch <- f:
		default:
			s.dropped++
			if p.logger != nil {
				p.logger.Warn("softcan subscriber overflow",
					"id", f.ID,
					"dropped", s.dropped,
				)
			}
		}
	}
}
