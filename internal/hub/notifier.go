package hub

import "sync"

// notifier delivers listener callbacks one at a time, in the order they were
// posted, on a goroutine that holds no hub or server lock. A callback may
// therefore call back into the hub or server freely. post never blocks.
type notifier struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
	idle     *sync.Cond
}

func newNotifier() *notifier {
	n := &notifier{}
	n.idle = sync.NewCond(&n.mu)
	return n
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true
	n.mu.Unlock()

	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.draining = false
			n.idle.Broadcast()
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()

		fn()
	}
}

// wait blocks until every callback posted so far has returned. It must not be
// called from inside a callback.
func (n *notifier) wait() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for n.draining {
		n.idle.Wait()
	}
}
