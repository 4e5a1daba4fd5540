package document

import (
	"context"
	"fmt"
)

// Schema is a document type's property layout, normalized from the two wire
// shapes the management API answers with.
type Schema struct {
	ID         string
	Properties []Property
}

// Property is one named, typed field of a document type.
type Property struct {
	Alias       string
	EditorAlias string
}

// Find returns the property with the given alias.
func (s *Schema) Find(alias string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Alias == alias {
			return p, true
		}
	}
	return Property{}, false
}

// SchemaError indicates the document-type schema could not be fetched. This
// is fatal to a publish attempt: without the schema, neither the precise
// field mapping nor the fallback heuristics can be trusted to match server
// expectations.
type SchemaError struct {
	DocumentTypeID string
	Err            error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("document: failed to fetch document type %s: %v", e.DocumentTypeID, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// docTypeResponse covers both known response shapes: properties at the top
// level, or nested inside compositions. Decoding both and normalizing at the
// boundary replaces ad hoc optional-field probing.
type docTypeResponse struct {
	ID           string         `json:"id"`
	Properties   []wireProperty `json:"properties"`
	Compositions []struct {
		Properties []wireProperty `json:"properties"`
	} `json:"compositions"`
}

type wireProperty struct {
	Alias    string `json:"alias"`
	DataType struct {
		EditorAlias string `json:"editorAlias"`
	} `json:"dataType"`
}

func (r *docTypeResponse) normalize(docTypeID string) *Schema {
	wire := r.Properties
	if len(wire) == 0 {
		for _, comp := range r.Compositions {
			wire = append(wire, comp.Properties...)
		}
	}

	schema := &Schema{ID: docTypeID}
	if r.ID != "" {
		schema.ID = r.ID
	}
	for _, p := range wire {
		schema.Properties = append(schema.Properties, Property{
			Alias:       p.Alias,
			EditorAlias: p.DataType.EditorAlias,
		})
	}
	return schema
}

// fetchSchema retrieves the document-type schema. The schema is fetched per
// publish operation rather than cached since it may change between publishes.
func (a *Assembler) fetchSchema(ctx context.Context, docTypeID string) (*Schema, error) {
	var resp docTypeResponse
	err := a.client.Call(ctx, "GET", "/umbraco/management/api/v1/document-type/"+docTypeID, nil, &resp)
	if err != nil {
		return nil, &SchemaError{DocumentTypeID: docTypeID, Err: err}
	}
	return resp.normalize(docTypeID), nil
}
