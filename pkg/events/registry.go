package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// EventCodec decodes a JSON payload into a concrete Event instance.
type EventCodec func([]byte) (Event, error)

var (
	registryMu sync.RWMutex
	decoders   = map[string]EventCodec{}
)

// RegisterEventCodec registers a decoder for a custom event type name, so that
// NewEventFromJson can decode notifications published by other components on
// the same bus. It returns an error if a decoder is already registered.
func RegisterEventCodec(typeName string, dec EventCodec) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := decoders[typeName]; exists {
		return fmt.Errorf("decoder already registered for type %q", typeName)
	}
	decoders[typeName] = dec
	return nil
}

// RegisterEventFactory registers a decoder based on json.Unmarshal.
// The factory must return a pointer to a zero-value struct implementing Event.
func RegisterEventFactory(typeName string, factory func() Event) error {
	return RegisterEventCodec(typeName, func(b []byte) (Event, error) {
		ev := factory()
		if err := json.Unmarshal(b, ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
}

func lookupDecoder(typeName string) EventCodec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return decoders[typeName]
}
