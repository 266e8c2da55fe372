package cache

// lruNode links one cached key into the recency list. It carries the key so
// eviction can reach back into the entry map in O(1).
type lruNode[K comparable] struct {
	key  K
	prev *lruNode[K]
	next *lruNode[K]
}

// lruList orders keys by recency of use: head holds the most recently used
// key, tail the eviction candidate. Memory owns the locking; the list itself
// is unsynchronized.
type lruList[K comparable] struct {
	head *lruNode[K]
	tail *lruNode[K]
}

func newLRUList[K comparable]() *lruList[K] {
	return &lruList[K]{}
}

// PushFront inserts a key as most recently used and returns its node so the
// cache entry can hold onto it.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	node := &lruNode[K]{key: key, next: l.head}
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	return node
}

// MoveToFront re-marks an existing node as most recently used.
func (l *lruList[K]) MoveToFront(node *lruNode[K]) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
}

// Remove takes a node out of the list and clears its links.
func (l *lruList[K]) Remove(node *lruNode[K]) {
	if node == nil {
		return
	}
	l.unlink(node)
	node.prev = nil
	node.next = nil
}

// Oldest returns the least recently used key without unlinking it, or
// ok=false on an empty list.
func (l *lruList[K]) Oldest() (K, bool) {
	if l.tail == nil {
		var zero K
		return zero, false
	}
	return l.tail.key, true
}

// Clear drops every node.
func (l *lruList[K]) Clear() {
	l.head = nil
	l.tail = nil
}

// unlink detaches a node, leaving the node's own pointers for the caller.
func (l *lruList[K]) unlink(node *lruNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
}
