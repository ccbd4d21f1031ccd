package conversation

// WorkflowState describes a non-conversational step sequence attached to an
// item: its kind, task list, run summary and whether it is shown expanded.
// Tasks, Summary and ResponseItems are opaque to the client.
type WorkflowState struct {
	Kind          string         `json:"type" yaml:"type"`
	Tasks         []any          `json:"tasks" yaml:"tasks,omitempty"`
	Summary       map[string]any `json:"summary" yaml:"summary,omitempty"`
	Expanded      *bool          `json:"expanded" yaml:"expanded,omitempty"`
	ResponseItems []any          `json:"response_items" yaml:"response_items,omitempty"`
}

// WorkflowFromRecord builds a workflow state from a full record. Fields absent
// from the record stay nil.
func WorkflowFromRecord(rec WorkflowRecord) *WorkflowState {
	w := &WorkflowState{}
	w.Merge(rec)
	return w
}

// Merge applies a partial update. Only fields present in rec are copied, so an
// update carrying tasks never resets a previously received summary or
// expanded flag. A present null clears the field.
func (w *WorkflowState) Merge(rec WorkflowRecord) {
	rec.Type.Apply(&w.Kind)
	rec.Tasks.Apply(&w.Tasks)
	rec.Summary.Apply(&w.Summary)
	if rec.Expanded.Set {
		if rec.Expanded.Null {
			w.Expanded = nil
		} else {
			v := rec.Expanded.Value
			w.Expanded = &v
		}
	}
	rec.ResponseItems.Apply(&w.ResponseItems)
}

func mergeWorkflow(w *WorkflowState, rec WorkflowRecord) *WorkflowState {
	if w == nil {
		return WorkflowFromRecord(rec)
	}
	w.Merge(rec)
	return w
}
