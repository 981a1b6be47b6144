package exchange

import "github.com/chazu/rjs/item"

// queue is a FIFO of items for one direction of one slot.
type queue struct {
	items []item.Item
}

func (q *queue) empty() bool { return len(q.items) == 0 }
func (q *queue) len() int    { return len(q.items) }

func (q *queue) push(it item.Item) { q.items = append(q.items, it) }

func (q *queue) pop() item.Item {
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return it
}

// drain removes and returns every queued item.
func (q *queue) drain() []item.Item {
	items := q.items
	q.items = nil
	return items
}

// prepend puts items in front of the queued ones, keeping their order.
func (q *queue) prepend(items []item.Item) {
	if len(items) == 0 {
		return
	}
	q.items = append(append(make([]item.Item, 0, len(items)+len(q.items)), items...), q.items...)
}

// remove drops it from the queue and reports whether it was queued.
func (q *queue) remove(it item.Item) bool {
	for i, queued := range q.items {
		if queued == it {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
