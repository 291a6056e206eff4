package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yanqian/ai-helloworld/internal/domain/agent"
)

// SchemaValidator adapts github.com/santhosh-tekuri/jsonschema/v5 to
// agent.SchemaValidator. Schemas are registered by name up front (the
// parser/solver/action agent output shapes), then compiled lazily and
// cached on first use.
type SchemaValidator struct {
	mu      sync.Mutex
	raw     map[string]string
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator constructs a SchemaValidator from a set of named raw
// JSON Schema documents.
func NewSchemaValidator(rawSchemas map[string]string) *SchemaValidator {
	return &SchemaValidator{
		raw:     rawSchemas,
		schemas: make(map[string]*jsonschema.Schema, len(rawSchemas)),
	}
}

func (v *SchemaValidator) Validate(schemaName string, value any) error {
	schema, err := v.compiled(schemaName)
	if err != nil {
		return err
	}
	return schema.Validate(value)
}

func (v *SchemaValidator) compiled(schemaName string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if schema, ok := v.schemas[schemaName]; ok {
		return schema, nil
	}
	raw, ok := v.raw[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema validator: unknown schema %q", schemaName)
	}

	resourceID := schemaName + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceID, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema validator: add resource %q: %w", schemaName, err)
	}
	schema, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("schema validator: compile %q: %w", schemaName, err)
	}
	v.schemas[schemaName] = schema
	return schema, nil
}

var _ agent.SchemaValidator = (*SchemaValidator)(nil)
