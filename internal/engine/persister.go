package engine

import (
	"sync"

	"github.com/himanishpuri/HotRandomPad/internal/selection"
)

// persister writes cursors to the store off the input path. Writes for
// one binding coalesce: only the latest cursor queued before a flush is
// written.
type persister struct {
	store  BindingStore
	onErr  func(error)
	mu     sync.Mutex
	queued map[string]selection.Cursor

	wake  chan struct{}
	flush chan chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newPersister(store BindingStore, onErr func(error)) *persister {
	p := &persister{
		store:  store,
		onErr:  onErr,
		queued: make(map[string]selection.Cursor),
		wake:   make(chan struct{}, 1),
		flush:  make(chan chan struct{}),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(id string, cur selection.Cursor) {
	if p.store == nil {
		return
	}
	p.mu.Lock()
	p.queued[id] = cur
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// discard drops everything queued and not yet being written.
func (p *persister) discard() {
	p.mu.Lock()
	p.queued = make(map[string]selection.Cursor)
	p.mu.Unlock()
}

// Flush blocks until everything queued so far has been written.
func (p *persister) Flush() {
	reply := make(chan struct{})
	select {
	case p.flush <- reply:
		<-reply
	case <-p.done:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.write()
		case reply := <-p.flush:
			p.write()
			close(reply)
		case <-p.quit:
			p.write()
			return
		}
	}
}

func (p *persister) write() {
	p.mu.Lock()
	batch := p.queued
	p.queued = make(map[string]selection.Cursor, len(batch))
	p.mu.Unlock()

	for id, cur := range batch {
		if err := p.store.PersistCursor(id, cur); err != nil && p.onErr != nil {
			p.onErr(err)
		}
	}
}

func (p *persister) Close() {
	p.once.Do(func() {
		close(p.quit)
		<-p.done
	})
}
