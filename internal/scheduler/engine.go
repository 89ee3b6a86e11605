// Package scheduler multiplexes the app's recurring timers onto one owned
// engine with an explicit lifecycle, so nothing ticks after teardown.
package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidInterval = errors.New("scheduler: invalid tick interval")
	ErrAlreadyStarted  = errors.New("scheduler: engine already started")
	ErrDuplicateTick   = errors.New("scheduler: duplicate tick id")
)

// Standard tick ids. The guard tick drives the auto-stop check and the
// elapsed-time display; the nowline tick only moves the timeline marker.
const (
	TickGuard   = "guard"
	TickNowline = "nowline"
)

type Tick struct {
	ID string
	At time.Time
}

type Engine struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	out       chan Tick
	stopCh    chan struct{}
	wg        sync.WaitGroup
	started   bool
	stopped   bool
	dropped   uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		intervals: make(map[string]time.Duration),
		out:       make(chan Tick, bufferSize),
		stopCh:    make(chan struct{}),
	}
}

func (e *Engine) C() <-chan Tick {
	return e.out
}

// AddTick registers a recurring tick. Ticks must be registered before
// Start.
func (e *Engine) AddTick(id string, every time.Duration) error {
	if every <= 0 {
		return ErrInvalidInterval
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	if _, dup := e.intervals[id]; dup {
		return ErrDuplicateTick
	}
	e.intervals[id] = every
	return nil
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	for id, every := range e.intervals {
		e.wg.Add(1)
		go e.loop(id, every)
	}
	go func() {
		e.wg.Wait()
		close(e.out)
	}()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	e.wg.Wait()
}

// Dropped counts ticks discarded because the consumer lagged. A missed
// guard tick is harmless: the next one re-evaluates the same condition.
func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) loop(id string, every time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case at := <-ticker.C:
			select {
			case e.out <- Tick{ID: id, At: at}:
			default:
				atomic.AddUint64(&e.dropped, 1)
			}
		case <-e.stopCh:
			return
		}
	}
}
