package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings stay opaque: the schemas only type the keys the executor relies on
// and allow anything else.
var settingsSchemas = map[models.NodeType]*models.JSONSchema{
	models.NodeTypeWebhook: {
		Type: "object",
		Properties: map[string]*models.Property{
			"url":     {Type: "string", Description: "Endpoint the executor calls"},
			"method":  {Type: "string", Enum: []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
			"headers": {Type: "object"},
		},
	},
	models.NodeTypeLLM: {
		Type: "object",
		Properties: map[string]*models.Property{
			"model":  {Type: "string"},
			"prompt": {Type: "string"},
		},
	},
	models.NodeTypeCondition: {
		Type: "object",
		Properties: map[string]*models.Property{
			"expression": {Type: "string", Description: "Evaluated by the executor"},
		},
	},
}

var nodeTypeDescriptions = map[models.NodeType]string{
	models.NodeTypeTrigger:   "Entry point of the workflow",
	models.NodeTypeAction:    "Generic step performed by the executor",
	models.NodeTypeCondition: "Branches on an expression",
	models.NodeTypeWebhook:   "Calls an HTTP endpoint",
	models.NodeTypeLLM:       "Prompts a language model",
	models.NodeTypeEnd:       "Terminates a branch",
}

var (
	compiledSettingsSchemas = mustCompileSettingsSchemas()
	compiledRunContext      = mustCompile(&models.JSONSchema{Type: "object"})
)

func mustCompileSettingsSchemas() map[models.NodeType]*gojsonschema.Schema {
	compiled := make(map[models.NodeType]*gojsonschema.Schema, len(settingsSchemas))
	for nodeType, schema := range settingsSchemas {
		compiled[nodeType] = mustCompile(schema)
	}

	return compiled
}

func mustCompile(schema *models.JSONSchema) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}

	return compiled
}

// NodeTypes lists every node type with its settings schema.
func NodeTypes() []models.NodeTypeInfo {
	types := models.NodeTypes()
	infos := make([]models.NodeTypeInfo, 0, len(types))

	for _, nodeType := range types {
		infos = append(infos, models.NodeTypeInfo{
			Type:        nodeType,
			Description: nodeTypeDescriptions[nodeType],
			Schema:      settingsSchemas[nodeType],
		})
	}

	return infos
}

// ValidateGraph checks a submitted graph before anything is written: known
// node types, required fields, unique node ids, edges whose endpoints are in
// the same submission, and the typed settings keys. Every problem found is
// reported. Cycles, reachability and trigger count are not checked.
func ValidateGraph(graph *models.Graph) error {
	if graph == nil {
		return nil
	}

	var errs []error

	ids := make(map[string]struct{}, len(graph.Nodes))

	for i, node := range graph.Nodes {
		if node == nil {
			errs = append(errs, fmt.Errorf("%w: node %d is null", ErrInvalidGraph, i))

			continue
		}

		errs = append(errs, validateNode(i, node)...)

		if node.ID == "" {
			continue
		}

		if _, ok := ids[node.ID]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID))
		}

		ids[node.ID] = struct{}{}
	}

	for i, edge := range graph.Edges {
		if edge == nil {
			errs = append(errs, fmt.Errorf("%w: edge %d is null", ErrInvalidGraph, i))

			continue
		}

		if err := validate.Struct(edge); err != nil {
			errs = append(errs, fmt.Errorf("%w: edge %d: %s", ErrInvalidGraph, i, describe(err)))

			continue
		}

		for _, endpoint := range []string{edge.SourceNodeID, edge.TargetNodeID} {
			if _, ok := ids[endpoint]; !ok {
				errs = append(errs, fmt.Errorf("%w: edge %d references %s", ErrDanglingEdge, i, endpoint))
			}
		}
	}

	return errors.Join(errs...)
}

func validateNode(i int, node *models.Node) []error {
	var errs []error

	if err := validate.Struct(node); err != nil {
		errs = append(errs, fmt.Errorf("%w: node %d: %s", ErrInvalidGraph, i, describe(err)))
	}

	if node.Type != "" && !node.Type.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q on node %d", ErrUnknownNodeType, node.Type, i))

		return errs
	}

	schema, ok := compiledSettingsSchemas[node.Type]
	if !ok {
		return errs
	}

	settings := node.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(settings))
	if err != nil {
		return append(errs, fmt.Errorf("%w: node %d: %w", ErrInvalidSettings, i, err))
	}

	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Errorf("%w: node %d (%s): %s", ErrInvalidSettings, i, node.Type, desc.String()))
	}

	return errs
}

// ValidateRunContext accepts nil (treated as an empty object) or any JSON object.
func ValidateRunContext(runContext any) (map[string]any, error) {
	if runContext == nil {
		return map[string]any{}, nil
	}

	result, err := compiledRunContext.Validate(gojsonschema.NewGoLoader(runContext))
	if err != nil || !result.Valid() {
		return nil, NewValidationError("ValidateRunContext", "INVALID_RUN_CONTEXT", ErrInvalidRunContext.Error(), ErrInvalidRunContext)
	}

	object, ok := runContext.(map[string]any)
	if !ok {
		return nil, NewValidationError("ValidateRunContext", "INVALID_RUN_CONTEXT", ErrInvalidRunContext.Error(), ErrInvalidRunContext)
	}

	return object, nil
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
	}

	return strings.Join(parts, ", ")
}
