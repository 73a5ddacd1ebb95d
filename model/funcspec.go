package model

import (
	"github.com/hupe1980/modelbridge/internal/util"
)

// FuncSpec describes the function a model is required to call: name, human
// description and a JSON Schema for the arguments. It is read-only data; the
// invocation-forcing directive is derived from it by each backend.
type FuncSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// NewFuncSpec creates a FuncSpec from an explicit JSON schema.
func NewFuncSpec(name, description string, parameters map[string]any) *FuncSpec {
	return &FuncSpec{Name: name, Description: description, Parameters: parameters}
}

// NewFuncSpecFromStruct derives the parameter schema from a Go struct via
// reflection. Field names follow json tags, `description` tags become
// property descriptions and pointer or omitempty fields are optional.
func NewFuncSpecFromStruct(name, description string, structType any) *FuncSpec {
	return &FuncSpec{Name: name, Description: description, Parameters: util.CreateSchema(structType)}
}

// ValidateArgs checks a decoded argument map against the parameter schema.
// It is a caller-side helper: Query itself never validates decoded arguments
// beyond JSON well-formedness.
func (fs *FuncSpec) ValidateArgs(args map[string]any) error {
	return util.ValidateParameters(args, fs.Parameters)
}
