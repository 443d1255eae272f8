package ws

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrLaneFull    = errors.New("too many pending updates for this game")
	ErrLanesClosed = errors.New("lanes are shut down")
)

// Lanes runs jobs one at a time per key in submission order. Each busy key gets its own
// goroutine which exits once the queue drains, so a slow job only delays its own key.
type Lanes struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	depth  int
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	queue []func()
}

func NewLanes(depth int) *Lanes {
	if depth < 1 {
		depth = 1
	}
	return &Lanes{
		lanes: make(map[string]*lane),
		depth: depth,
	}
}

// Submit queues job behind the pending work for key. It fails with ErrLaneFull when the
// lane already holds depth waiting jobs and with ErrLanesClosed after Shutdown.
func (l *Lanes) Submit(key string, job func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLanesClosed
	}

	ln, running := l.lanes[key]
	if !running {
		ln = &lane{}
		l.lanes[key] = ln
	}
	if len(ln.queue) >= l.depth {
		return ErrLaneFull
	}
	ln.queue = append(ln.queue, job)

	if !running {
		l.wg.Add(1)
		go l.drain(key, ln)
	}
	return nil
}

func (l *Lanes) drain(key string, ln *lane) {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		if len(ln.queue) == 0 {
			delete(l.lanes, key)
			l.mu.Unlock()
			return
		}
		job := ln.queue[0]
		ln.queue[0] = nil
		ln.queue = ln.queue[1:]
		l.mu.Unlock()

		run(key, job)
	}
}

func run(key string, job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("gameId", key).Msg("Lane job panicked")
		}
	}()
	job()
}

// Active returns the number of keys with queued or running work.
func (l *Lanes) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// Wait blocks until every submitted job has finished.
func (l *Lanes) Wait() {
	l.wg.Wait()
}

// Shutdown refuses further jobs and waits for the queued ones. It is safe to call more
// than once.
func (l *Lanes) Shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
}
