package channelmanager

import "sync"

// WaitForChangeAlwaysBlock is the sentinel version value that makes
// WaitForChange block until the very next change or StopUpdates,
// regardless of the notifier's current version (spec.md §4.5).
const WaitForChangeAlwaysBlock = -1

// changeNotifier is a monotone version counter paired with a condition
// variable, giving WaitForChange its classical mutex+condvar blocking
// behaviour (spec.md §9: "There is none [coroutine control flow]... do not
// attempt async"). It shares the ChannelManager's own mutex rather than
// keeping one of its own, since every version bump happens while that lock
// is already held.
type changeNotifier struct {
	mu      *sync.Mutex
	cond    *sync.Cond
	version int
	stopped bool
}

func newChangeNotifier(mu *sync.Mutex) *changeNotifier {
	return &changeNotifier{mu: mu, cond: sync.NewCond(mu)}
}

// bump increments the version and wakes every waiter. Must be called with
// mu held.
func (c *changeNotifier) bump() {
	c.version++
	c.cond.Broadcast()
}

// stop marks the notifier terminal and wakes every waiter. Must be called
// with mu held.
func (c *changeNotifier) stop() {
	c.stopped = true
	c.cond.Broadcast()
}

// wait blocks until the version differs from known, StopUpdates has been
// called, or known is WaitForChangeAlwaysBlock and any bump occurs. Must be
// called with mu held; returns with mu held.
//
// Spurious wake-ups that change neither the version nor the stopped flag do
// not release the waiter, since cond.Wait is always re-checked against the
// loop condition below.
func (c *changeNotifier) wait(known int) {
	if c.stopped {
		return
	}
	if known == WaitForChangeAlwaysBlock {
		startVersion := c.version
		for !c.stopped && c.version == startVersion {
			c.cond.Wait()
		}
		return
	}
	for !c.stopped && c.version == known {
		c.cond.Wait()
	}
}

func (c *changeNotifier) currentVersion() int {
	return c.version
}
