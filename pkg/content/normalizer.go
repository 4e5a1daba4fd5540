// Package content rewrites embedded image references in document body text to
// point at migrated media URLs.
//
// Two reference syntaxes are recognized: markdown images `![alt](path)` and
// wiki-style embeds `![[path]]` / `![[path|alt]]`. References to absolute
// http(s) URLs pass through unmodified. A reference that cannot be resolved
// or uploaded is left untouched; one broken image must not abort the whole
// document publish.
package content

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

var (
	markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	wikiImageRe     = regexp.MustCompile(`!\[\[([^\]|]+)(?:\|([^\]]*))?\]\]`)
)

// Resolver locates a referenced asset's raw bytes by its declared path or
// name, returning the bytes and the filename to upload under.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (data []byte, filename string, err error)
}

// Migrator is the slice of the media migrator the normalizer drives.
type Migrator interface {
	EnsureFolder(ctx context.Context) (string, error)
	UploadImage(ctx context.Context, data []byte, filename, folderID string) (string, error)
	MediaURL(ctx context.Context, mediaID string) (string, error)
}

// Reference is one embedded image reference found in body text.
type Reference struct {
	// Raw is the full matched substring.
	Raw string
	// Target is the declared path or name of the asset.
	Target string
	// Alt is the declared alt text, if any.
	Alt string

	start, end int
}

// External reports whether the reference points at an absolute URL and should
// be skipped.
func (r Reference) External() bool {
	return strings.HasPrefix(r.Target, "http://") || strings.HasPrefix(r.Target, "https://")
}

// FindReferences collects every image reference in body, in document order.
func FindReferences(body string) []Reference {
	var refs []Reference

	for _, m := range markdownImageRe.FindAllStringSubmatchIndex(body, -1) {
		refs = append(refs, Reference{
			Raw:    body[m[0]:m[1]],
			Alt:    body[m[2]:m[3]],
			Target: body[m[4]:m[5]],
			start:  m[0],
			end:    m[1],
		})
	}

	for _, m := range wikiImageRe.FindAllStringSubmatchIndex(body, -1) {
		ref := Reference{
			Raw:    body[m[0]:m[1]],
			Target: strings.TrimSpace(body[m[2]:m[3]]),
			start:  m[0],
			end:    m[1],
		}
		if m[4] >= 0 {
			ref.Alt = body[m[4]:m[5]]
		}
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].start < refs[j].start })

	// The two syntaxes can match overlapping spans, e.g. a wiki embed nested
	// inside a markdown target. Keep the earlier match and drop anything that
	// starts before it ends so the spans stay disjoint.
	out := refs[:0]
	end := 0
	for _, ref := range refs {
		if ref.start < end {
			continue
		}
		out = append(out, ref)
		end = ref.end
	}
	return out
}

// Normalizer drives the media migrator for each discovered reference.
type Normalizer struct {
	migrator Migrator
	resolver Resolver
	logger   hclog.Logger
}

// New creates a Normalizer.
func New(migrator Migrator, resolver Resolver, logger hclog.Logger) *Normalizer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Normalizer{
		migrator: migrator,
		resolver: resolver,
		logger:   logger.Named("content"),
	}
}

// Rewrite replaces each local image reference in body with a markdown image
// pointing at the migrated asset's URL. All matches are collected against the
// original text before any mutation. The returned error aggregates per-image
// failures and is advisory: the returned body is always usable.
func (n *Normalizer) Rewrite(ctx context.Context, body string) (string, error) {
	refs := FindReferences(body)
	if len(refs) == 0 {
		return body, nil
	}

	// The upload folder is resolved once per document, not per image.
	folderID, err := n.migrator.EnsureFolder(ctx)
	if err != nil {
		n.logger.Warn("upload folder unavailable, leaving image references untouched", "error", err)
		return body, &multierror.Error{Errors: []error{err}}
	}

	var (
		errs *multierror.Error
		out  strings.Builder
		pos  int
	)

	for _, ref := range refs {
		out.WriteString(body[pos:ref.start])
		pos = ref.end

		replacement, err := n.migrate(ctx, ref, folderID)
		if err != nil {
			n.logger.Warn("image migration failed, leaving reference untouched",
				"target", ref.Target, "error", err)
			errs = multierror.Append(errs, err)
			out.WriteString(ref.Raw)
			continue
		}
		out.WriteString(replacement)
	}
	out.WriteString(body[pos:])

	return out.String(), errs.ErrorOrNil()
}

func (n *Normalizer) migrate(ctx context.Context, ref Reference, folderID string) (string, error) {
	if ref.External() {
		return ref.Raw, nil
	}

	data, filename, err := n.resolver.Resolve(ctx, ref.Target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", ref.Target, err)
	}

	mediaID, err := n.migrator.UploadImage(ctx, data, filename, folderID)
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", filename, err)
	}

	mediaURL, err := n.migrator.MediaURL(ctx, mediaID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve URL for %q: %w", filename, err)
	}

	alt := ref.Alt
	if alt == "" {
		alt = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	n.logger.Debug("rewrote image reference", "target", ref.Target, "url", mediaURL)
	return fmt.Sprintf("![%s](%s)", alt, mediaURL), nil
}
