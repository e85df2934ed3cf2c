// Package pending maps short random IDs to submitted videos so callback
// buttons stay inside Telegram's 64-byte callback-data limit.
package pending

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/wapuda/virex/internal/config"
)

type Kind string

const (
	KindFile Kind = "file"
	KindURL  Kind = "url"
)

// Item is one submitted video waiting for the user to confirm processing.
type Item struct {
	Kind         Kind
	FileID       string // Telegram file_id, for KindFile
	FileUniqueID string
	URL          string // for KindURL
	SizeBytes    int64
	Duration     float64
	CreatedAt    time.Time
}

type Table struct {
	mu    sync.Mutex
	items map[string]Item
	now   func() time.Time
}

func NewTable(now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{items: make(map[string]Item), now: now}
}

// Put stores the item under a fresh 8-hex-char ID and returns the ID.
func (t *Table) Put(item Item) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	item.CreatedAt = t.now()
	for {
		id := newID()
		if _, taken := t.items[id]; taken {
			continue
		}
		t.items[id] = item
		return id
	}
}

// Get returns the item if it exists and has not expired. The item stays in
// the table so the user can retry other buttons on the same message.
func (t *Table) Get(id string) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok || t.expired(item) {
		delete(t.items, id)
		return Item{}, false
	}
	return item, true
}

// Consume returns and removes the item.
func (t *Table) Consume(id string) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok || t.expired(item) {
		delete(t.items, id)
		return Item{}, false
	}
	delete(t.items, id)
	return item, true
}

// Sweep drops expired entries and reports how many were removed.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, item := range t.items {
		if t.expired(item) {
			delete(t.items, id)
			removed++
		}
	}
	return removed
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Table) expired(item Item) bool {
	return t.now().Sub(item.CreatedAt) >= config.ShortIDTTL
}

func newID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failing means the host is broken
	}
	return hex.EncodeToString(b[:])
}
