package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

func TestFlowRegistryValidateArgs(t *testing.T) {
	reg, err := NewFlowRegistry(DefaultFlowSchemas, nil)
	require.NoError(t, err)

	assert.True(t, reg.Known("FileFinder"))
	assert.False(t, reg.Known("Nope"))
	assert.Contains(t, reg.Names(), "ListProcesses")

	assert.NoError(t, reg.ValidateArgs("FileFinder", json.RawMessage(`{"paths":["/etc/passwd"],"action":"HASH"}`)))
	assert.NoError(t, reg.ValidateArgs("Interrogate", nil))
	assert.NoError(t, reg.ValidateArgs("Interrogate", json.RawMessage(`null`)))

	err = reg.ValidateArgs("FileFinder", json.RawMessage(`{"action":"HASH"}`))
	var violation *domain.ErrArgsViolation
	require.True(t, errors.As(err, &violation), "expected args violation, got %v", err)
	assert.Equal(t, "FileFinder", violation.Flow)
	assert.NotEmpty(t, violation.Errors)

	err = reg.ValidateArgs("Nope", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrUnknownFlow)
	assert.Contains(t, err.Error(), "flow Nope not known by this implementation")
}

func TestFlowRegistryOverridesReplaceDefaults(t *testing.T) {
	reg, err := NewFlowRegistry(DefaultFlowSchemas, map[string]json.RawMessage{
		"Interrogate": json.RawMessage(`{"type":"object","required":["mode"]}`),
		"Custom":      json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	assert.True(t, reg.Known("Custom"))
	assert.Error(t, reg.ValidateArgs("Interrogate", json.RawMessage(`{"lightweight":true}`)))
	assert.NoError(t, reg.ValidateArgs("Interrogate", json.RawMessage(`{"mode":"full"}`)))
}

func TestNewFlowRegistryRejectsBrokenSchema(t *testing.T) {
	_, err := NewFlowRegistry(nil, map[string]json.RawMessage{"Bad": json.RawMessage(`{"type": 12}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad")
}
