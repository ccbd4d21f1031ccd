package conversation

// ContentPart is one renderable fragment of an item's content. It has no
// identity of its own and is addressed by its position in Item.Content.
type ContentPart struct {
	Kind        string `json:"type" yaml:"type"`
	Text        string `json:"text" yaml:"text"`
	Annotations []any  `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// ContentFromRecord builds a part from the fields present in rec.
func ContentFromRecord(rec ContentRecord) ContentPart {
	var c ContentPart
	c.Merge(rec)
	return c
}

// Merge copies the fields present in rec onto c.
func (c *ContentPart) Merge(rec ContentRecord) {
	rec.Type.Apply(&c.Kind)
	rec.Text.Apply(&c.Text)
	rec.Annotations.Apply(&c.Annotations)
}

func contentFromRecords(recs []ContentRecord) []ContentPart {
	ret := make([]ContentPart, 0, len(recs))
	for _, r := range recs {
		ret = append(ret, ContentFromRecord(r))
	}
	return ret
}
