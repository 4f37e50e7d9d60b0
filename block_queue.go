package wfb

import (
	"github.com/appetito/wifibroadcast-bridge-1/internal/utils/ringbuffer"
)

// blockQueue is the codec output queue. The codec cores are single-threaded
// state machines, so there is no locking here; ownership of a block moves to
// the caller on pop.
type blockQueue struct {
	ring ringbuffer.RingBuffer[*FECBlock]
}

func (q *blockQueue) push(b *FECBlock) {
	q.ring.PushBack(b)
}

// pop returns the next block, or nil when the queue is drained.
func (q *blockQueue) pop() *FECBlock {
	if q.ring.Empty() {
		return nil
	}
	return q.ring.PopFront()
}

func (q *blockQueue) len() int {
	return q.ring.Len()
}
