package serde

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/chatkit/pkg/conversation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ToYAML marshals a thread snapshot to YAML using snake_case keys.
func ToYAML(s conversation.ThreadSnapshot) ([]byte, error) {
	return yaml.Marshal(s)
}

// FromYAML unmarshals a thread snapshot from YAML.
//
// Opaque values (status, metadata, workflow tasks...) are decoded the way
// they are decoded from the stream, so numbers come back as float64 and a
// reloaded snapshot compares equal to the one that was saved.
func FromYAML(b []byte) (conversation.ThreadSnapshot, error) {
	var raw interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return conversation.ThreadSnapshot{}, errors.Wrap(err, "could not parse yaml snapshot")
	}
	if raw == nil {
		return conversation.ThreadSnapshot{}, errors.New("empty snapshot")
	}
	j, err := json.Marshal(raw)
	if err != nil {
		return conversation.ThreadSnapshot{}, errors.Wrap(err, "could not convert yaml snapshot")
	}
	return FromJSON(j)
}

// ToJSON marshals a thread snapshot to indented JSON.
func ToJSON(s conversation.ThreadSnapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func FromJSON(b []byte) (conversation.ThreadSnapshot, error) {
	var s conversation.ThreadSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return conversation.ThreadSnapshot{}, errors.Wrap(err, "could not parse json snapshot")
	}
	normalize(&s)
	return s, nil
}

// SaveSnapshotYAML writes a thread snapshot to a YAML file.
func SaveSnapshotYAML(path string, s conversation.ThreadSnapshot) error {
	data, err := ToYAML(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshotYAML reads a thread snapshot from a YAML file.
func LoadSnapshotYAML(path string) (conversation.ThreadSnapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return conversation.ThreadSnapshot{}, err
	}
	return FromYAML(b)
}

// LoadSnapshot reads a .json, .yaml or .yml snapshot file.
func LoadSnapshot(path string) (conversation.ThreadSnapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return conversation.ThreadSnapshot{}, err
		}
		return FromJSON(b)
	case ".yaml", ".yml":
		return LoadSnapshotYAML(path)
	}
	return conversation.ThreadSnapshot{}, errors.Errorf("unsupported snapshot file %s (expected .json, .yaml or .yml)", path)
}

// normalize makes empty lists non-nil, matching items built from the stream.
func normalize(s *conversation.ThreadSnapshot) {
	if s.Items == nil {
		s.Items = []conversation.Item{}
	}
	for i := range s.Items {
		it := &s.Items[i]
		if it.Content == nil {
			it.Content = []conversation.ContentPart{}
		}
		if it.RawDeltas == nil {
			it.RawDeltas = []string{}
		}
		if it.SourceIDs == nil {
			it.SourceIDs = []string{}
		}
	}
}
