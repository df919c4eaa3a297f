package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// Upcaster rewrites an announcement payload from one envelope schema version
// to the next.
type Upcaster interface {
	FromVersion() int
	ToVersion() int
	Upcast(payload json.RawMessage) (json.RawMessage, error)
}

// EventCodec decodes queued outbox payloads into the current envelope
// schema so rows written by older releases are still delivered.
type EventCodec struct {
	upcasters map[int]Upcaster
}

func NewEventCodec(upcasters ...Upcaster) *EventCodec {
	m := make(map[int]Upcaster, len(upcasters))
	for _, up := range upcasters {
		m[up.FromVersion()] = up
	}
	return &EventCodec{upcasters: m}
}

func (c *EventCodec) Decode(raw json.RawMessage) (domain.EventEnvelope, error) {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.EventEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return c.Normalize(envelope)
}

func (c *EventCodec) Normalize(envelope domain.EventEnvelope) (domain.EventEnvelope, error) {
	v := envelope.SchemaVersion
	if v > domain.CurrentEventSchemaVersion {
		return domain.EventEnvelope{}, fmt.Errorf("envelope %s has schema version %d, newest known is %d",
			envelope.EventID, v, domain.CurrentEventSchemaVersion)
	}
	payload := envelope.Payload
	for v < domain.CurrentEventSchemaVersion {
		up, ok := c.upcasters[v]
		if !ok {
			return domain.EventEnvelope{}, fmt.Errorf("missing upcaster from version %d", v)
		}
		next, err := up.Upcast(payload)
		if err != nil {
			return domain.EventEnvelope{}, fmt.Errorf("upcast %d->%d: %w", up.FromVersion(), up.ToVersion(), err)
		}
		payload = next
		v = up.ToVersion()
	}

	envelope.SchemaVersion = v
	envelope.Payload = payload
	return envelope, nil
}

// unversionedCronPayload lifts announcements queued before envelopes carried
// a schema version. Those payloads named the flow at the top level only.
type unversionedCronPayload struct{}

func (unversionedCronPayload) FromVersion() int { return 0 }
func (unversionedCronPayload) ToVersion() int   { return 1 }

func (unversionedCronPayload) Upcast(payload json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	if _, ok := m["flow_runner_args"]; !ok {
		if flow, ok := m["flow_name"]; ok {
			args, err := json.Marshal(map[string]json.RawMessage{"flow_name": flow})
			if err != nil {
				return nil, err
			}
			m["flow_runner_args"] = args
			delete(m, "flow_name")
		}
	}
	return json.Marshal(m)
}
