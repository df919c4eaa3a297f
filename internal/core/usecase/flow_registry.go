package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// DefaultFlowSchemas are the argument schemas of the flows the console can
// schedule without extra configuration.
var DefaultFlowSchemas = map[string]json.RawMessage{
	"Interrogate": json.RawMessage(`{
		"type": "object",
		"properties": {"lightweight": {"type": "boolean"}},
		"additionalProperties": false
	}`),
	"ListProcesses": json.RawMessage(`{
		"type": "object",
		"properties": {
			"filename_regex": {"type": "string"},
			"fetch_binaries": {"type": "boolean"},
			"connection_states": {"type": "array", "items": {"type": "string"}}
		},
		"additionalProperties": false
	}`),
	"Netstat": json.RawMessage(`{
		"type": "object",
		"properties": {"listening_only": {"type": "boolean"}},
		"additionalProperties": false
	}`),
	"FileFinder": json.RawMessage(`{
		"type": "object",
		"properties": {
			"paths": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"pathtype": {"enum": ["OS", "TSK", "REGISTRY"]},
			"action": {"enum": ["STAT", "HASH", "DOWNLOAD"]}
		},
		"required": ["paths"],
		"additionalProperties": false
	}`),
	"CollectArtifacts": json.RawMessage(`{
		"type": "object",
		"properties": {
			"artifact_list": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"use_tsk": {"type": "boolean"}
		},
		"required": ["artifact_list"],
		"additionalProperties": false
	}`),
}

// FlowRegistry knows the argument schema of every flow that can be scheduled.
type FlowRegistry struct {
	schemas map[string]*santhosh.Schema
}

// NewFlowRegistry compiles the given schemas. Entries in overrides replace
// built-in definitions of the same name.
func NewFlowRegistry(base map[string]json.RawMessage, overrides map[string]json.RawMessage) (*FlowRegistry, error) {
	merged := make(map[string]json.RawMessage, len(base)+len(overrides))
	for name, schema := range base {
		merged[name] = schema
	}
	for name, schema := range overrides {
		merged[name] = schema
	}

	r := &FlowRegistry{schemas: make(map[string]*santhosh.Schema, len(merged))}
	for name, schema := range merged {
		compiled, err := compileSchema(name, schema)
		if err != nil {
			return nil, fmt.Errorf("compile %s args schema: %w", name, err)
		}
		r.schemas[name] = compiled
	}
	return r, nil
}

func (r *FlowRegistry) Known(name string) bool {
	_, ok := r.schemas[name]
	return ok
}

func (r *FlowRegistry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateArgs checks args against the flow's argument schema. Empty args
// are accepted. Returns *domain.ErrArgsViolation on mismatch.
func (r *FlowRegistry) ValidateArgs(flow string, args json.RawMessage) error {
	sch, ok := r.schemas[flow]
	if !ok {
		return fmt.Errorf("%w: flow %s not known by this implementation", domain.ErrUnknownFlow, flow)
	}
	if domain.NormalizeFlowArgs(args) == nil {
		return nil
	}

	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return &domain.ErrArgsViolation{Flow: flow, Errors: []string{"arguments are not valid json"}}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.ErrArgsViolation{Flow: flow, Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrArgsViolation{Flow: flow, Errors: []string{err.Error()}}
	}
	return nil
}

func compileSchema(name string, schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	url := name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
