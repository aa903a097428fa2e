//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package tool

import (
	"reflect"
	"strings"
)

// Schema represents the structure of JSON Schema used for describing the
// query and output of a typed tool.
type Schema struct {
	//  Type Specifies the data type (e.g., "object", "array", "string", "number")
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of the arguments, each with its own schema
	Properties map[string]*Schema `json:"properties,omitempty"`
	// For array types, defines the schema of items in the array
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties: Controls whether properties not defined in Properties are allowed
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// GenerateJSONSchema generates a basic JSON schema from a reflect.Type. A
// nil type, as produced by an interface type parameter, yields nil.
func GenerateJSONSchema(t reflect.Type) *Schema {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Struct:
		schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			name, omitEmpty, ok := jsonName(field)
			if !ok {
				continue
			}
			schema.Properties[name] = generateFieldSchema(field.Type)
			// Required unless a pointer or omitempty.
			if field.Type.Kind() != reflect.Ptr && !omitEmpty {
				schema.Required = append(schema.Required, name)
			}
		}
		return schema
	default:
		return generateFieldSchema(t)
	}
}

// generateFieldSchema generates schema for a specific field type.
func generateFieldSchema(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{
			Type:  "array",
			Items: generateFieldSchema(t.Elem()),
		}
	case reflect.Map:
		return &Schema{
			Type:                 "object",
			AdditionalProperties: generateFieldSchema(t.Elem()),
		}
	case reflect.Ptr:
		elemSchema := generateFieldSchema(t.Elem())
		// Pointers are nullable
		elemSchema.Type = elemSchema.Type + ",null"
		return elemSchema
	case reflect.Struct:
		nested := &Schema{Type: "object", Properties: make(map[string]*Schema)}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if name, _, ok := jsonName(field); ok {
				nested.Properties[name] = generateFieldSchema(field.Type)
			}
		}
		return nested
	default:
		// Default to any type
		return &Schema{Type: "object"}
	}
}

func jsonName(field reflect.StructField) (name string, omitEmpty, ok bool) {
	if !field.IsExported() {
		return "", false, false
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	name = field.Name
	if tag != "" {
		if idx := strings.Index(tag, ","); idx != -1 {
			if idx > 0 {
				name = tag[:idx]
			}
			omitEmpty = strings.Contains(tag[idx:], "omitempty")
		} else {
			name = tag
		}
	}
	return name, omitEmpty, true
}
