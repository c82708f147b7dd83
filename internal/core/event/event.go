// Package event implements the per-owner typed event loop shared by every
// listener and wallet manager. Each owner (system, network, manager,
// wallet, transfer) gets its own FIFO queue and dispatch goroutine so that
// all events for that owner are totally ordered; there is no ordering
// guarantee across owners.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klingon-exchange/walletcore/pkg/logging"
)

// Event is the unit dispatched through a Loop. Dispatch runs the handler;
// Destroy runs instead of Dispatch when the event is dropped (loop
// stopped) or after dispatch regardless of outcome, giving back any
// weak-held handles the event was carrying.
type Event struct {
	ID       string
	Kind     string
	Dispatch func()
	Destroy  func()
}

// NewEvent builds an Event with a fresh id.
func NewEvent(kind string, dispatch, destroy func()) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Dispatch: dispatch, Destroy: destroy}
}

// clamp bounds for the periodic sampling dispatcher.
const (
	MinSamplingPeriod = 10 * time.Second
	MaxSamplingPeriod = 60 * time.Second

	// ConfirmationPeriodFactor samples four times per confirmation period
	// (CWM_CONFIRMATION_PERIOD_FACTOR).
	ConfirmationPeriodFactor = 4
)

// SamplingPeriod derives the periodic-tick interval from a chain's
// confirmation period, clamped to [MinSamplingPeriod, MaxSamplingPeriod].
func SamplingPeriod(confirmationPeriod time.Duration) time.Duration {
	period := confirmationPeriod / ConfirmationPeriodFactor
	if period < MinSamplingPeriod {
		return MinSamplingPeriod
	}
	if period > MaxSamplingPeriod {
		return MaxSamplingPeriod
	}
	return period
}

// Loop is a single-threaded FIFO event dispatcher with an optional periodic
// timeout tick. Producers on arbitrary goroutines call Post; a single
// internal goroutine drains the queue in order.
type Loop struct {
	name   string
	queue  chan Event
	tick   *time.Ticker
	onTick func()
	stop   chan struct{}
	done   chan struct{}
	log    *logging.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewLoop creates a Loop. period <= 0 disables the periodic tick.
func NewLoop(name string, queueSize int, period time.Duration, onTick func()) *Loop {
	l := &Loop{
		name:   name,
		queue:  make(chan Event, queueSize),
		onTick: onTick,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		log:    logging.GetDefault().Component("event-loop").With("loop", name),
	}
	if period > 0 {
		l.tick = time.NewTicker(period)
	}
	return l
}

// Start launches the dispatch goroutine. Safe to call once; subsequent
// calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

func (l *Loop) run() {
	defer close(l.done)
	var tickC <-chan time.Time
	if l.tick != nil {
		tickC = l.tick.C
	}
	for {
		select {
		case <-l.stop:
			l.drain()
			return
		case ev := <-l.queue:
			l.dispatchOne(ev)
		case <-tickC:
			if l.onTick != nil {
				l.onTick()
			}
		}
	}
}

func (l *Loop) dispatchOne(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event dispatch panicked", "event", ev.Kind, "recover", r)
		}
		if ev.Destroy != nil {
			ev.Destroy()
		}
	}()
	if ev.Dispatch != nil {
		ev.Dispatch()
	}
}

// drain empties and destroys every pending event without dispatching —
// the required behavior when a loop is stopped.
func (l *Loop) drain() {
	for {
		select {
		case ev := <-l.queue:
			if ev.Destroy != nil {
				ev.Destroy()
			}
		default:
			return
		}
	}
}

// Post enqueues an event. If the loop has been stopped, the event is
// destroyed immediately instead of being queued.
func (l *Loop) Post(ev Event) {
	select {
	case <-l.stop:
		if ev.Destroy != nil {
			ev.Destroy()
		}
		return
	default:
	}
	select {
	case l.queue <- ev:
	case <-l.stop:
		if ev.Destroy != nil {
			ev.Destroy()
		}
	}
}

// Stop signals the dispatch goroutine to drain and exit, then blocks until
// it has. On a loop that was never started, Stop drains the queue itself
// and a later Start does nothing. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		if l.tick != nil {
			l.tick.Stop()
		}
		l.startOnce.Do(func() {
			l.drain()
			close(l.done)
		})
	})
	<-l.done
}
