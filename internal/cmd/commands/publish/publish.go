// Package publish implements `umbpress publish`, the one-way pipeline that
// pushes a local markdown note into the CMS.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/umbraco-forge/umbpress/internal/cmd/base"
	"github.com/umbraco-forge/umbpress/internal/config"
	"github.com/umbraco-forge/umbpress/pkg/content"
	"github.com/umbraco-forge/umbpress/pkg/document"
	"github.com/umbraco-forge/umbpress/pkg/media"
	"github.com/umbraco-forge/umbpress/pkg/source"
	"github.com/umbraco-forge/umbpress/pkg/umbraco"
)

type Command struct {
	*base.Command

	flagConfig  string
	flagParent  string
	flagDocType string
	flagDryRun  bool
}

func (c *Command) Synopsis() string {
	return "Publish a markdown note to the CMS"
}

func (c *Command) Help() string {
	return strings.TrimSpace(`
Usage: umbpress publish [options] <note.md>

  Publishes a markdown note (text plus embedded images) as a new content
  document. Embedded local images are migrated into the media library and
  their references rewritten before the document is created. Publishing is
  one-way: every run creates a new document.

Options:

  -config=<path>   Configuration file. Default: umbpress.hcl.
  -parent=<id>     Override the configured parent node id ("null" for root).
  -doctype=<id>    Override the configured document type id.
  -dry-run         Parse the note, report metadata and discovered image
                   references, and perform no network calls.
`)
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("publish")
	f.StringVar(&c.flagConfig, "config", "umbpress.hcl", "configuration file")
	f.StringVar(&c.flagParent, "parent", "", "parent node id override")
	f.StringVar(&c.flagDocType, "doctype", "", "document type id override")
	f.BoolVar(&c.flagDryRun, "dry-run", false, "parse only, no network calls")
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if len(f.Args()) != 1 {
		c.UI.Error("exactly one note path is required")
		c.UI.Output(c.Help())
		return 1
	}
	notePath := f.Args()[0]

	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}
	if c.flagParent != "" {
		cfg.Publish.ParentID = c.flagParent
	}
	if c.flagDocType != "" {
		cfg.Publish.DocumentTypeID = c.flagDocType
	}
	if err := cfg.Validate(); err != nil {
		c.UI.Error(fmt.Sprintf("invalid config: %v", err))
		return 1
	}

	vault := source.NewVault(afero.NewOsFs(), cfg.Vault.Path, c.Log)
	note, err := vault.Load(notePath)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading note: %v", err))
		return 1
	}

	if c.flagDryRun {
		return c.dryRun(note)
	}

	ctx := context.Background()
	docID, err := c.publish(ctx, cfg, vault, note)
	if err != nil {
		c.UI.Error(fmt.Sprintf("publish failed: %v", err))
		return 1
	}

	c.UI.Info(fmt.Sprintf("Published %q as document %s", note.Title, docID))
	return 0
}

func (c *Command) publish(ctx context.Context, cfg *config.Config, vault *source.Vault, note *source.Note) (string, error) {
	client, err := umbraco.New(umbraco.Config{
		BaseURL:      cfg.Umbraco.BaseURL,
		ClientID:     cfg.Umbraco.ClientID,
		ClientSecret: cfg.Umbraco.ClientSecret,
		Logger:       c.Log,
	})
	if err != nil {
		return "", err
	}

	migrator, err := media.New(media.Config{
		Client:     client,
		FolderName: cfg.Publish.MediaFolder,
		Logger:     c.Log,
	})
	if err != nil {
		return "", err
	}

	normalizer := content.New(migrator, vault.ResolverFor(note), c.Log)
	assembler := document.New(client, normalizer, c.Log)

	return assembler.Create(ctx, document.CreateInput{
		DocumentTypeID: cfg.Publish.DocumentTypeID,
		Title:          note.Title,
		Body:           note.Body,
		ParentID:       cfg.Publish.ParentID,
		TitleAlias:     cfg.Publish.TitleAlias,
		ContentAlias:   cfg.Publish.ContentAlias,
	})
}

func (c *Command) dryRun(note *source.Note) int {
	c.UI.Output(fmt.Sprintf("Note:   %s", note.Path))
	c.UI.Output(fmt.Sprintf("Title:  %s", note.Title))
	c.UI.Output(fmt.Sprintf("Status: %s", note.Status))
	if len(note.Tags) > 0 {
		c.UI.Output(fmt.Sprintf("Tags:   %s", strings.Join(note.Tags, ", ")))
	}
	if note.Featured {
		c.UI.Output("Featured: yes")
	}
	if note.Excerpt != "" {
		c.UI.Output(fmt.Sprintf("Excerpt: %s", note.Excerpt))
	}
	if note.FeatureImage != "" {
		c.UI.Output(fmt.Sprintf("Feature image: %s", note.FeatureImage))
	}

	refs := content.FindReferences(note.Body)
	if len(refs) == 0 {
		c.UI.Output("No embedded image references found.")
		return 0
	}

	c.UI.Output(fmt.Sprintf("Image references (%d):", len(refs)))
	for _, ref := range refs {
		kind := "local"
		if ref.External() {
			kind = "external, skipped"
		}
		c.UI.Output(fmt.Sprintf("  %s (%s)", ref.Target, kind))
	}
	return 0
}
