// Package document assembles and submits content documents against a
// discovered document-type schema.
package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/yuin/goldmark"

	"github.com/umbraco-forge/umbpress/pkg/umbraco"
)

// Normalizer rewrites embedded image references in body text before assembly.
type Normalizer interface {
	Rewrite(ctx context.Context, body string) (string, error)
}

// Value is one alias → typed value entry of a creation payload.
type Value struct {
	EditorAlias string      `json:"editorAlias,omitempty"`
	EntityType  string      `json:"entityType,omitempty"`
	Alias       string      `json:"alias"`
	Value       interface{} `json:"value"`
	Culture     *string     `json:"culture"`
	Segment     *string     `json:"segment"`
}

// Variant is the localized presentation record of a document. Every field
// except the name is null for this single-locale use case.
type Variant struct {
	Culture                *string `json:"culture"`
	Segment                *string `json:"segment"`
	State                  *string `json:"state"`
	Name                   string  `json:"name"`
	PublishDate            *string `json:"publishDate"`
	CreateDate             *string `json:"createDate"`
	UpdateDate             *string `json:"updateDate"`
	ScheduledPublishDate   *string `json:"scheduledPublishDate"`
	ScheduledUnpublishDate *string `json:"scheduledUnpublishDate"`
}

// createDocumentRequest is the POST /document creation body.
type createDocumentRequest struct {
	ID           string       `json:"id"`
	Parent       *umbraco.Ref `json:"parent"`
	DocumentType umbraco.Ref  `json:"documentType"`
	Template     *umbraco.Ref `json:"template"`
	Values       []Value      `json:"values"`
	Variants     []Variant    `json:"variants"`
}

// CreateInput describes one document to publish.
type CreateInput struct {
	DocumentTypeID string
	Title          string
	Body           string

	// ParentID of "" or the literal sentinel "null" places the document at
	// the root.
	ParentID string

	TitleAlias   string
	ContentAlias string
}

// Assembler maps a document's title and body onto a document type's property
// schema and submits the finished document.
type Assembler struct {
	client     *umbraco.Client
	normalizer Normalizer
	logger     hclog.Logger

	now func() time.Time
}

// New creates an Assembler. normalizer may be nil when image migration is not
// wanted.
func New(client *umbraco.Client, normalizer Normalizer, logger hclog.Logger) *Assembler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Assembler{
		client:     client,
		normalizer: normalizer,
		logger:     logger.Named("document"),
		now:        time.Now,
	}
}

// Create publishes one document and returns its client-assigned id. Image
// migration failures are advisory and logged; schema and submission failures
// abort.
func (a *Assembler) Create(ctx context.Context, in CreateInput) (string, error) {
	body := in.Body
	if a.normalizer != nil {
		rewritten, err := a.normalizer.Rewrite(ctx, body)
		if err != nil {
			a.logger.Warn("some embedded images were not migrated", "error", err)
		}
		body = rewritten
	}

	schema, err := a.fetchSchema(ctx, in.DocumentTypeID)
	if err != nil {
		return "", err
	}

	values := a.assembleValues(schema, in, body)

	docID := uuid.NewString()
	title := in.Title
	if title == "" {
		title = "Untitled"
	}

	req := createDocumentRequest{
		ID:           docID,
		Parent:       resolveParent(in.ParentID),
		DocumentType: umbraco.Ref{ID: in.DocumentTypeID},
		Template:     nil,
		Values:       values,
		Variants: []Variant{
			{Name: title},
		},
	}

	a.logger.Info("creating document", "id", docID, "title", title,
		"document_type", in.DocumentTypeID)

	if err := a.client.Call(ctx, "POST", "/umbraco/management/api/v1/document", req, nil); err != nil {
		if umbraco.IsValidation(err) {
			return "", fmt.Errorf("document creation rejected; check that document type %q exists, "+
				"property aliases %q and %q are correct, and parent id %q is valid: %w",
				in.DocumentTypeID, in.TitleAlias, in.ContentAlias, in.ParentID, err)
		}
		return "", err
	}

	return docID, nil
}

// assembleValues maps the title and body onto the schema's aliases, using
// declared editor kinds when the aliases exist and fixed fallbacks when
// schema introspection left gaps, then fills allowlisted defaults for the
// remaining properties.
func (a *Assembler) assembleValues(schema *Schema, in CreateInput, body string) []Value {
	titleEditor := editorTextBox
	contentEditor := editorMarkdown

	if p, ok := schema.Find(in.TitleAlias); ok && p.EditorAlias != "" {
		titleEditor = p.EditorAlias
	} else if !ok {
		a.logger.Debug("title alias not in schema, using fallback editor", "alias", in.TitleAlias)
	}
	if p, ok := schema.Find(in.ContentAlias); ok && p.EditorAlias != "" {
		contentEditor = p.EditorAlias
	} else if !ok {
		a.logger.Debug("content alias not in schema, using fallback editor", "alias", in.ContentAlias)
	}

	values := []Value{
		{
			EditorAlias: titleEditor,
			Alias:       in.TitleAlias,
			Value:       in.Title,
		},
		{
			EditorAlias: contentEditor,
			Alias:       in.ContentAlias,
			Value:       renderBody(body, contentEditor),
		},
	}

	now := a.now()
	for _, p := range schema.Properties {
		if p.Alias == in.TitleAlias || p.Alias == in.ContentAlias {
			continue
		}
		provider, ok := propertyDefaults[p.Alias]
		if !ok {
			continue
		}
		if v, ok := provider(p, now); ok {
			values = append(values, v)
		}
	}

	return values
}

// renderBody converts the markdown body to HTML when the target property is a
// rich-text editor; markdown editors receive the body verbatim.
func renderBody(body, editorAlias string) interface{} {
	switch editorAlias {
	case editorRichText, editorTinyMCE:
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(body), &buf); err != nil {
			return body
		}
		return buf.String()
	default:
		return body
	}
}

// resolveParent maps the configured parent id onto a node reference. Empty,
// whitespace-only, and the literal placeholder "null" all mean the root.
func resolveParent(parentID string) *umbraco.Ref {
	trimmed := strings.TrimSpace(parentID)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return &umbraco.Ref{ID: trimmed}
}
