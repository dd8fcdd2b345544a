package book

import "github.com/shopspring/decimal"

// orderNode is the intrusive list element a resting order lives in. The
// order index maps order ids straight to nodes, which makes mid-queue
// cancels O(1): unlink, no scanning.
type orderNode struct {
	order *Order
	level *priceLevel
	prev  *orderNode
	next  *orderNode
}

// priceLevel is the FIFO queue of resting orders at one price, all on
// the same side. Orders enter at the tail and match from the head.
// volume caches the summed remaining quantity and is adjusted on every
// mutation so depth reads never walk the queue.
type priceLevel struct {
	price  decimal.Decimal
	head   *orderNode
	tail   *orderNode
	count  int
	volume decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price, volume: decimal.Zero}
}

func (l *priceLevel) empty() bool { return l.head == nil }

// pushBack appends a resting order at the tail of the queue.
func (l *priceLevel) pushBack(o *Order) *orderNode {
	n := &orderNode{order: o, level: l}
	if l.tail == nil {
		l.head = n
	} else {
		l.tail.next = n
		n.prev = l.tail
	}
	l.tail = n
	l.count++
	l.volume = l.volume.Add(o.Quantity)
	return n
}

// unlink removes an arbitrary node from the queue. Matching pops the
// head through here once a maker is fully filled; cancels unlink from
// anywhere in the queue.
func (l *priceLevel) unlink(n *orderNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.count--
	l.volume = l.volume.Sub(n.order.Quantity)
}

// reduce subtracts a fill of qty from the level's cached aggregate
// without touching the queue structure.
func (l *priceLevel) reduce(qty decimal.Decimal) {
	l.volume = l.volume.Sub(qty)
}
