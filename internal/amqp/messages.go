package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"kobo/internal/core"
)

// NewEvent creates an event stamped with the current time.
func NewEvent(kind core.EventKind, account core.AccountID, entityID string, version int64) core.Event {
	return core.Event{
		Kind:      kind,
		AccountID: account,
		EntityID:  entityID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// EncodeEvent converts the event to JSON bytes
func EncodeEvent(e core.Event) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses and checks an event body.
func DecodeEvent(data []byte) (core.Event, error) {
	var e core.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return core.Event{}, err
	}
	if !e.Kind.IsValid() {
		return core.Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if err := e.AccountID.Validate(); err != nil {
		return core.Event{}, err
	}
	return e, nil
}
