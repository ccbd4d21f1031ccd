package conversation

import (
	"fmt"
	"sync"

	"github.com/huandu/go-clone"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ItemGrouping decides which item a non user_message record is folded into.
type ItemGrouping int

const (
	// GroupByTurn folds every record that follows a user message into the
	// last item, so that one item holds a whole turn: the user's input, any
	// workflow steps and the assistant's answer.
	GroupByTurn ItemGrouping = iota
	// GroupByID merges a record into the last item only when the ids match
	// and appends a new item otherwise.
	GroupByID
)

func (g ItemGrouping) String() string {
	switch g {
	case GroupByTurn:
		return "turn"
	case GroupByID:
		return "id"
	}
	return fmt.Sprintf("ItemGrouping(%d)", int(g))
}

// ParseItemGrouping parses "turn" or "id".
func ParseItemGrouping(s string) (ItemGrouping, error) {
	switch s {
	case "turn", "":
		return GroupByTurn, nil
	case "id":
		return GroupByID, nil
	}
	return GroupByTurn, fmt.Errorf("unknown item grouping %q (expected turn or id)", s)
}

// Thread is the reconstructed conversation. Items are kept in append order and
// are never removed or reordered.
//
// The last item is the active item: streaming updates always target it, the
// protocol only streams the most recently opened item. Use ActiveItem rather
// than indexing into Items.
//
// All mutations run under a single lock for their whole duration, readers get
// deep copies, so a Thread can be read from one goroutine while another one
// is applying stream events.
type Thread struct {
	mu sync.RWMutex

	id        string
	createdAt string
	status    map[string]any
	title     string
	metadata  map[string]any
	items     []*Item

	grouping ItemGrouping
	logger   zerolog.Logger
}

type ThreadOption func(*Thread)

func WithItemGrouping(g ItemGrouping) ThreadOption {
	return func(t *Thread) {
		t.grouping = g
	}
}

func WithThreadLogger(logger zerolog.Logger) ThreadOption {
	return func(t *Thread) {
		t.logger = logger
	}
}

func NewThread(options ...ThreadOption) *Thread {
	ret := &Thread{
		items:  []*Item{},
		logger: log.Logger,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// ThreadSnapshot is a point-in-time deep copy of a Thread.
type ThreadSnapshot struct {
	ID        string         `json:"id" yaml:"id"`
	CreatedAt string         `json:"created_at" yaml:"created_at"`
	Status    map[string]any `json:"status" yaml:"status,omitempty"`
	Title     string         `json:"title" yaml:"title"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata,omitempty"`
	Items     []Item         `json:"items" yaml:"items"`
}

// NewThreadFromSnapshot rebuilds a thread from a snapshot, e.g. to continue a
// saved conversation. Records streamed afterwards always open a new content
// segment in the restored active item.
func NewThreadFromSnapshot(snap ThreadSnapshot, options ...ThreadOption) *Thread {
	t := NewThread(options...)
	t.id = snap.ID
	t.createdAt = snap.CreatedAt
	t.status = cloneMap(snap.Status)
	t.title = snap.Title
	t.metadata = cloneMap(snap.Metadata)
	for i := range snap.Items {
		it := clone.Clone(snap.Items[i]).(Item)
		if it.Content == nil {
			it.Content = []ContentPart{}
		}
		if it.RawDeltas == nil {
			it.RawDeltas = []string{}
		}
		if it.SourceIDs == nil {
			it.SourceIDs = []string{}
		}
		it.segmentStart = len(it.Content)
		t.items = append(t.items, &it)
	}
	return t
}

// ApplyThreadFields copies the fields present in rec onto the thread. Absent
// fields are left untouched.
func (t *Thread) ApplyThreadFields(rec ThreadRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.ID.Apply(&t.id)
	rec.CreatedAt.Apply(&t.createdAt)
	rec.Status.Apply(&t.status)
	rec.Title.Apply(&t.title)
	rec.Metadata.Apply(&t.metadata)
}

// UpsertItem creates or updates an item from an item record and returns a
// copy of the affected item.
//
// A user_message always appends a new item, even when an item with the same
// id exists. Other records are merged according to the thread's grouping.
func (t *Thread) UpsertItem(rec ItemRecord) Item {
	item, _ := t.upsertItem(rec)
	return item
}

func (t *Thread) upsertItem(rec ItemRecord) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, created := t.targetFor(rec)
	if created {
		t.items = append(t.items, target)
		t.logger.Debug().
			Str("thread_id", t.id).
			Str("item_id", rec.ID.Value).
			Str("item_type", rec.Type.Value).
			Int("item_count", len(t.items)).
			Msg("appended item")
	}
	target.merge(rec, t.grouping == GroupByTurn)

	return target.copy(), created
}

// targetFor returns the item rec should be merged into, allocating a new one
// when needed. Must be called with the write lock held.
func (t *Thread) targetFor(rec ItemRecord) (*Item, bool) {
	if rec.Type.Value == ItemTypeUserMessage {
		return newItem(), true
	}
	last := t.last()
	if last == nil {
		return newItem(), true
	}
	switch t.grouping {
	case GroupByID:
		if last.ID == rec.ID.Value {
			return last, false
		}
		return newItem(), true
	case GroupByTurn:
	}
	return last, false
}

// ApplyItemUpdate applies a streaming update to the active item and returns a
// copy of it. The boolean is false when the thread has no items yet or the
// update kind is not understood; the thread is left unchanged in both cases.
//
// itemID is only checked: when present and unknown to the active item a
// warning is logged and the update is still applied to the active item.
func (t *Thread) ApplyItemUpdate(itemID Field[string], rec UpdateRecord) (Item, bool) {
	item, _, ok := t.applyItemUpdate(itemID, rec)
	return item, ok
}

func (t *Thread) applyItemUpdate(itemID Field[string], rec UpdateRecord) (Item, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.last()
	if target == nil {
		t.logger.Debug().
			Str("update_type", rec.Type.Value).
			Msg("ignoring item update, thread has no items")
		return Item{}, -1, false
	}

	if id, ok := itemID.Get(); ok && id != "" && !target.HasSource(id) {
		t.logger.Warn().
			Str("thread_id", t.id).
			Str("item_id", id).
			Str("active_item_id", target.ID).
			Str("update_type", rec.Type.Value).
			Msg("item update does not match the active item, applying to the active item")
	}

	idx, ok := target.applyUpdate(rec)
	if !ok {
		t.logger.Debug().
			Str("update_type", rec.Type.Value).
			Msg("ignoring unknown item update")
		return target.copy(), -1, false
	}

	return target.copy(), idx, true
}

// last returns the active item. Must be called with the lock held.
func (t *Thread) last() *Item {
	if len(t.items) == 0 {
		return nil
	}
	return t.items[len(t.items)-1]
}

func (t *Thread) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

func (t *Thread) CreatedAt() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.createdAt
}

func (t *Thread) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

func (t *Thread) Status() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneMap(t.status)
}

func (t *Thread) Metadata() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneMap(t.metadata)
}

// Len returns the number of items.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Items returns copies of all items in append order.
func (t *Thread) Items() []Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.copyItems()
}

// ActiveItem returns a copy of the item streaming updates are applied to.
func (t *Thread) ActiveItem() (Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last := t.last()
	if last == nil {
		return Item{}, false
	}
	return last.copy(), true
}

// Snapshot returns a consistent deep copy of the whole thread.
func (t *Thread) Snapshot() ThreadSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ThreadSnapshot{
		ID:        t.id,
		CreatedAt: t.createdAt,
		Status:    cloneMap(t.status),
		Title:     t.title,
		Metadata:  cloneMap(t.metadata),
		Items:     t.copyItems(),
	}
}

func (t *Thread) copyItems() []Item {
	ret := make([]Item, 0, len(t.items))
	for _, it := range t.items {
		ret = append(ret, it.copy())
	}
	return ret
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return clone.Clone(m).(map[string]any)
}
