package cache

import (
	"container/list"
	"time"
)

// entry is a single cached value in the local tier
type entry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (e *entry) sizeBytes() int64 {
	return int64(len(e.key) + len(e.value))
}

// lru is the bounded local tier: least-recently-used eviction over both a
// byte budget and an entry count, with lazy TTL expiry. Not safe for
// concurrent use; the owning Service serializes access.
type lru struct {
	maxBytes   int64
	maxEntries int

	order     *list.List // front = most recently used
	items     map[string]*list.Element
	sizeBytes int64
	evictions int64
}

func newLRU(maxBytes int64, maxEntries int) *lru {
	return &lru{
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

// get returns the entry for key, promoting it to most recently used. Expired
// entries are evicted and reported as absent.
func (l *lru) get(key string, now time.Time) ([]byte, bool) {
	elem, ok := l.items[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	if e.expired(now) {
		l.remove(elem)
		return nil, false
	}

	l.order.MoveToFront(elem)
	return e.value, true
}

// set inserts or replaces the entry for key, then evicts LRU entries until
// both capacity limits hold again.
func (l *lru) set(key string, value []byte, ttl time.Duration, now time.Time) {
	e := &entry{
		key:       key,
		value:     value,
		createdAt: now,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	if elem, ok := l.items[key]; ok {
		old := elem.Value.(*entry)
		l.sizeBytes -= old.sizeBytes()
		elem.Value = e
		l.sizeBytes += e.sizeBytes()
		l.order.MoveToFront(elem)
	} else {
		elem := l.order.PushFront(e)
		l.items[key] = elem
		l.sizeBytes += e.sizeBytes()
	}

	l.evict(now)
}

// evict sweeps expired entries first, then drops least-recently-used entries
// until the byte and entry budgets are satisfied.
func (l *lru) evict(now time.Time) {
	for elem := l.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			l.remove(elem)
		}
		elem = prev
	}

	for (l.sizeBytes > l.maxBytes || l.order.Len() > l.maxEntries) && l.order.Len() > 0 {
		l.remove(l.order.Back())
	}
}

func (l *lru) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	l.order.Remove(elem)
	delete(l.items, e.key)
	l.sizeBytes -= e.sizeBytes()
	l.evictions++
}

func (l *lru) clear() {
	l.order.Init()
	l.items = make(map[string]*list.Element)
	l.sizeBytes = 0
}

func (l *lru) len() int {
	return l.order.Len()
}
