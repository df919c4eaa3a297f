package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

func TestEventCodecUpcastsUnversionedPayload(t *testing.T) {
	codec := NewEventCodec(unversionedCronPayload{})
	raw := json.RawMessage(`{"event_id":"e1","schema_version":0,"payload":{"id":"Netstat_1","flow_name":"Netstat"}}`)

	env, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentEventSchemaVersion, env.SchemaVersion)
	assert.JSONEq(t, `{"id":"Netstat_1","flow_runner_args":{"flow_name":"Netstat"}}`, string(env.Payload))
}

func TestEventCodecKeepsCurrentPayload(t *testing.T) {
	codec := NewEventCodec(unversionedCronPayload{})
	env, err := codec.Normalize(domain.EventEnvelope{SchemaVersion: 1, Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(env.Payload))
}

func TestEventCodecRejects(t *testing.T) {
	codec := NewEventCodec()

	_, err := codec.Normalize(domain.EventEnvelope{SchemaVersion: 0, Payload: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "missing upcaster")

	_, err = codec.Normalize(domain.EventEnvelope{EventID: "e9", SchemaVersion: domain.CurrentEventSchemaVersion + 1})
	assert.ErrorContains(t, err, "newest known")

	_, err = codec.Decode(json.RawMessage(`not json`))
	assert.ErrorContains(t, err, "decode envelope")
}
