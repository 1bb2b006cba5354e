// Package feed carries message change events over Kafka or Redis pub/sub for stores that
// cannot stream their own changes.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
)

var ErrBadEvent = errors.New("malformed feed event")

func Encode(ev dataservice.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a wire event and rejects unknown types and inserts or updates without a
// record.
func Decode(b []byte) (dataservice.Event, error) {
	var ev dataservice.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	switch ev.Type {
	case dataservice.EventInsert, dataservice.EventUpdate:
		if ev.Record == nil {
			return ev, fmt.Errorf("%w: %s without record", ErrBadEvent, ev.Type)
		}
		if ev.ID == "" {
			ev.ID = ev.Record.ID
		}
		ev.Record.Normalize()
	case dataservice.EventDelete:
		if ev.ID == "" {
			return ev, fmt.Errorf("%w: delete without id", ErrBadEvent)
		}
	default:
		return ev, fmt.Errorf("%w: unknown type %q", ErrBadEvent, ev.Type)
	}
	return ev, nil
}
