package mqtt

import "log"

// pending is one publish deferred while the broker is unreachable. The
// payload is serialized up front so a replayed message carries the state
// as it was at publish time, not at reconnect time.
type pending struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// backlog queues deferred publishes oldest-first up to a fixed limit.
// When full, the oldest entry is discarded so a replay favors recent
// button state over stale history. Not safe for concurrent use; the
// publisher holds its own lock around it.
type backlog struct {
	limit   int
	queue   []pending
	dropped bool
}

func newBacklog(limit int) *backlog {
	return &backlog{limit: limit}
}

// add queues a deferred publish, discarding the oldest entry when the
// backlog is full.
func (b *backlog) add(p pending) {
	if len(b.queue) == b.limit {
		if !b.dropped {
			log.Printf("mqtt: backlog full (%d messages), dropping oldest", b.limit)
			b.dropped = true
		}
		copy(b.queue, b.queue[1:])
		b.queue[len(b.queue)-1] = p
		return
	}
	b.queue = append(b.queue, p)
}

// take returns the queued publishes oldest-first and empties the backlog.
func (b *backlog) take() []pending {
	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = nil
	b.dropped = false
	return out
}

func (b *backlog) size() int {
	return len(b.queue)
}
