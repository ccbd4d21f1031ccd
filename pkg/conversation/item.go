package conversation

import (
	"strings"

	"github.com/huandu/go-clone"
)

// Item is one entry of a thread: a user message, an assistant message or a
// workflow step. When a Thread groups items by turn, an Item accumulates the
// records of every entry of that turn and SourceIDs lists their ids in the
// order they were first seen.
//
// Items handed out by Thread are copies; mutating them has no effect on the
// thread.
type Item struct {
	ID               string         `json:"id" yaml:"id"`
	ThreadID         string         `json:"thread_id" yaml:"thread_id"`
	CreatedAt        string         `json:"created_at" yaml:"created_at"`
	Kind             string         `json:"type" yaml:"type"`
	Content          []ContentPart  `json:"content" yaml:"content"`
	Workflow         *WorkflowState `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	RawDeltas        []string       `json:"raw_deltas" yaml:"raw_deltas"`
	Attachments      []any          `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	QuotedText       string         `json:"quoted_text,omitempty" yaml:"quoted_text,omitempty"`
	InferenceOptions map[string]any `json:"inference_options,omitempty" yaml:"inference_options,omitempty"`
	SourceIDs        []string       `json:"source_ids" yaml:"source_ids"`

	// The open segment is the tail of Content that belongs to the record
	// currently streaming. Content snapshots and content indexes refer to it.
	segmentID    string
	segmentKind  string
	segmentStart int
}

func newItem() *Item {
	return &Item{
		Content:   []ContentPart{},
		RawDeltas: []string{},
		SourceIDs: []string{},
	}
}

// Text concatenates the text of all content parts.
func (it Item) Text() string {
	var sb strings.Builder
	for _, c := range it.Content {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// HasSource reports whether records with the given id were folded into the item.
func (it Item) HasSource(id string) bool {
	for _, s := range it.SourceIDs {
		if s == id {
			return true
		}
	}
	return false
}

// copy returns a deep copy without the segment bookkeeping.
func (it *Item) copy() Item {
	ret := clone.Clone(*it).(Item)
	ret.segmentID, ret.segmentKind, ret.segmentStart = "", "", 0
	return ret
}

// openSegment starts a new content segment when the record belongs to a
// different entry than the one currently open.
func (it *Item) openSegment(rec ItemRecord) {
	id, idSet := rec.ID.Value, rec.ID.Set && !rec.ID.Null
	kind, kindSet := rec.Type.Value, rec.Type.Set && !rec.Type.Null
	if (idSet && id != it.segmentID) || (kindSet && kind != it.segmentKind) {
		it.segmentStart = len(it.Content)
	}
	if idSet {
		it.segmentID = id
	}
	if kindSet {
		it.segmentKind = kind
	}
}

func (it *Item) merge(rec ItemRecord, segmented bool) {
	if segmented {
		it.openSegment(rec)
	}

	if id, ok := rec.ID.Get(); ok && !rec.ID.Null {
		if it.ID == "" {
			it.ID = id
		}
		if !it.HasSource(id) {
			it.SourceIDs = append(it.SourceIDs, id)
		}
	}
	rec.ThreadID.Apply(&it.ThreadID)
	rec.CreatedAt.Apply(&it.CreatedAt)
	rec.Type.Apply(&it.Kind)

	if content, ok := rec.Content.Get(); ok {
		head := it.Content[:it.segmentStart:it.segmentStart]
		it.Content = append(head, contentFromRecords(content)...)
	}

	if wf, ok := rec.Workflow.Get(); ok {
		if rec.Workflow.Null {
			it.Workflow = nil
		} else {
			it.Workflow = mergeWorkflow(it.Workflow, wf)
		}
	}

	rec.Attachments.Apply(&it.Attachments)
	rec.QuotedText.Apply(&it.QuotedText)
	rec.InferenceOptions.Apply(&it.InferenceOptions)
}

// partIndex resolves the content part an update refers to. content_index is
// relative to the open segment; without a usable index the most recently
// added part is used. It returns -1 when the item has no content.
func (it *Item) partIndex(rec UpdateRecord) int {
	if len(it.Content) == 0 {
		return -1
	}
	if idx, ok := rec.ContentIndex.Get(); ok && !rec.ContentIndex.Null && idx >= 0 {
		if i := it.segmentStart + idx; i < len(it.Content) {
			return i
		}
	}
	return len(it.Content) - 1
}

// applyUpdate applies a streaming update and reports whether it changed the
// item, along with the index of the content part it touched (-1 for workflow
// updates).
func (it *Item) applyUpdate(rec UpdateRecord) (int, bool) {
	switch rec.Kind() {
	case UpdateKindContentPartAdded:
		it.Content = append(it.Content, ContentFromRecord(rec.Content.Value))
		return len(it.Content) - 1, true

	case UpdateKindTextDelta:
		delta, ok := rec.Delta.Get()
		if !ok {
			return -1, false
		}
		it.RawDeltas = append(it.RawDeltas, delta)
		i := it.partIndex(rec)
		if i < 0 {
			it.Content = append(it.Content, ContentPart{Text: delta})
			return len(it.Content) - 1, true
		}
		it.Content[i].Text += delta
		return i, true

	case UpdateKindContentPartDone:
		i := it.partIndex(rec)
		if i < 0 {
			it.Content = append(it.Content, ContentFromRecord(rec.Content.Value))
			return len(it.Content) - 1, true
		}
		it.Content[i].Merge(rec.Content.Value)
		return i, true

	case UpdateKindWorkflow:
		it.Workflow = mergeWorkflow(it.Workflow, rec.workflowRecord())
		return -1, true

	case UpdateKindUnknown:
	}
	return -1, false
}
