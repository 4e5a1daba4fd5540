package document

import "time"

// Editor aliases the assembler needs to know about.
const (
	editorTextBox   = "Umbraco.TextBox"
	editorMarkdown  = "Umbraco.MarkdownEditor"
	editorTrueFalse = "Umbraco.TrueFalse"
	editorDateTime  = "Umbraco.DateTime"
	editorRichText  = "Umbraco.RichText"
	editorTinyMCE   = "Umbraco.TinyMCE"
)

// defaultProvider produces a deterministic default value for a well-known
// optional property, or ok=false when the property should be left unset.
type defaultProvider func(p Property, now time.Time) (v Value, ok bool)

// propertyDefaults is the declarative allowlist of schema properties that
// receive a default when present. Everything else is left unset, relying on
// server-side defaults.
var propertyDefaults = map[string]defaultProvider{
	"isIndexable":           boolDefault(true),
	"isFollowable":          boolDefault(true),
	"hideFromTopNavigation": boolDefault(false),
	"umbracoNaviHide":       boolDefault(false),
	"hideFromXMLSitemap":    boolDefault(false),
	"articleDate":           articleDateDefault,
}

func boolDefault(v bool) defaultProvider {
	return func(p Property, _ time.Time) (Value, bool) {
		return Value{
			EditorAlias: editorTrueFalse,
			Alias:       p.Alias,
			Value:       v,
		}, true
	}
}

// articleDateDefault fills the current timestamp, truncated to whole seconds,
// only when the property really is a date-time editor.
func articleDateDefault(p Property, now time.Time) (Value, bool) {
	if p.EditorAlias != editorDateTime {
		return Value{}, false
	}
	return Value{
		EditorAlias: editorDateTime,
		EntityType:  "document-property-value",
		Alias:       p.Alias,
		Value:       now.Format("2006-01-02 15:04:05"),
	}, true
}
