package bridge

import (
	"runtime/debug"
	"sync"

	"github.com/segmentio/ksuid"
	log "github.com/sirupsen/logrus"

	"github.com/keytap/keytap/pkg/acounter"
)

// router fans supervisor notifications out to subscribers. Every
// subscription gets its own buffered queue and pump goroutine so a
// slow observer can never stall the agent read loop. When a queue is
// full new events for that subscriber are dropped and counted.
type router struct {
	logger    *log.Entry
	queueSize int

	mu   sync.RWMutex
	subs map[Kind][]*subscription
	byID map[string]*subscription

	drops acounter.Type
}

type subscription struct {
	id      string
	kind    Kind
	handler Handler
	queue   chan Event
}

func newRouter(queueSize int) *router {
	return &router{
		logger:    log.WithField("component", "bridge.router"),
		queueSize: queueSize,
		subs:      map[Kind][]*subscription{},
		byID:      map[string]*subscription{},
	}
}

func (ref *router) subscribe(kind Kind, handler Handler) string {
	sub := &subscription{
		id:      ksuid.New().String(),
		kind:    kind,
		handler: handler,
		queue:   make(chan Event, ref.queueSize),
	}

	ref.mu.Lock()
	ref.subs[kind] = append(ref.subs[kind], sub)
	ref.byID[sub.id] = sub
	ref.mu.Unlock()

	go ref.pump(sub)

	return sub.id
}

func (ref *router) unsubscribe(id string) bool {
	ref.mu.Lock()
	defer ref.mu.Unlock()

	sub, found := ref.byID[id]
	if !found {
		return false
	}

	delete(ref.byID, id)

	list := ref.subs[sub.kind]
	for i, cur := range list {
		if cur == sub {
			ref.subs[sub.kind] = append(list[:i], list[i+1:]...)
			break
		}
	}

	//publish holds the read lock while enqueueing, so closing here
	//cannot race with a send
	close(sub.queue)
	return true
}

// publish enqueues the event for every subscriber of its kind in
// subscriber registration order without waiting for any handler
func (ref *router) publish(evt Event) {
	kind := evt.EventKind()

	ref.mu.RLock()
	defer ref.mu.RUnlock()

	for _, sub := range ref.subs[kind] {
		select {
		case sub.queue <- evt:
		default:
			ref.drops.Inc()
			ref.logger.WithFields(log.Fields{
				"kind":         kind,
				"subscription": sub.id,
			}).Warn("subscriber queue full, dropping event")
		}
	}
}

func (ref *router) pump(sub *subscription) {
	for evt := range sub.queue {
		ref.dispatch(sub, evt)
	}
}

func (ref *router) dispatch(sub *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			ref.logger.WithFields(log.Fields{
				"subscription": sub.id,
				"kind":         sub.kind,
				"panic":        r,
				"stack":        string(debug.Stack()),
			}).Error("subscriber handler panic")
		}
	}()

	sub.handler(evt)
}

func (ref *router) dropped() uint64 {
	return ref.drops.Value()
}
