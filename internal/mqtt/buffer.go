package mqtt

import (
	"log"
	"sync"
)

// bufferedMsg is a serialized message waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds at most capacity messages in publish order. When full the
// oldest message is dropped. A retained message replaces an older retained
// message on the same topic in place, since the broker keeps only the newest.
// The publisher serializes access with its mutex.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if msg.retained {
		for i := range r.msgs {
			if r.msgs[i].retained && r.msgs[i].topic == msg.topic {
				r.msgs[i] = msg
				return
			}
		}
	}
	if len(r.msgs) == r.capacity {
		if r.dropped == 0 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", r.capacity)
		}
		r.dropped++
		copy(r.msgs, r.msgs[1:])
		r.msgs = r.msgs[:len(r.msgs)-1]
	}
	r.msgs = append(r.msgs, msg)
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	if r.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", r.dropped)
	}
	out := make([]bufferedMsg, len(r.msgs))
	copy(out, r.msgs)
	r.msgs = r.msgs[:0]
	r.dropped = 0
	return out
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}

// outbox decides under one lock whether a message goes out now or waits in
// the buffer. It only reports online once a replay has left the buffer
// empty, so a message pushed while replaying is sent by the same replay.
type outbox struct {
	mu     sync.Mutex
	buf    *ringBuffer
	online bool
}

func newOutbox(capacity int) *outbox {
	return &outbox{buf: newRingBuffer(capacity)}
}

// offer buffers m and returns false while offline. It returns true when the
// caller should send m itself.
func (o *outbox) offer(m bufferedMsg) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.online {
		return true
	}
	o.buf.push(m)
	return false
}

// goOnline replays the buffer through send until it is empty, then marks
// the outbox online. It returns how many messages were replayed.
func (o *outbox) goOnline(send func(bufferedMsg)) int {
	n := 0
	for {
		o.mu.Lock()
		msgs := o.buf.drainAll()
		if len(msgs) == 0 {
			o.online = true
			o.mu.Unlock()
			return n
		}
		o.mu.Unlock()
		for _, m := range msgs {
			send(m)
		}
		n += len(msgs)
	}
}

func (o *outbox) goOffline() {
	o.mu.Lock()
	o.online = false
	o.mu.Unlock()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.len()
}
