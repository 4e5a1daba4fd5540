// Package source loads markdown notes from a local vault and resolves their
// embedded image references to raw bytes.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Note is one authored document: its metadata and the body text after the
// frontmatter block.
type Note struct {
	Title        string
	Tags         []string
	Featured     bool
	Status       string
	Excerpt      string
	FeatureImage string
	Body         string

	// Path is the vault-relative path the note was loaded from.
	Path string
}

type noteFrontmatter struct {
	Title        string   `yaml:"title"`
	Tags         []string `yaml:"tags"`
	Featured     bool     `yaml:"featured"`
	Published    bool     `yaml:"published"`
	Excerpt      string   `yaml:"excerpt"`
	FeatureImage string   `yaml:"feature_image"`
}

// Vault reads notes and assets from a filesystem root.
type Vault struct {
	fs     afero.Fs
	root   string
	logger hclog.Logger
}

// NewVault creates a Vault rooted at root.
func NewVault(fsys afero.Fs, root string, logger hclog.Logger) *Vault {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Vault{
		fs:     fsys,
		root:   root,
		logger: logger.Named("source"),
	}
}

// Load reads and parses the note at path (relative to the vault root). The
// title falls back to the file basename when the frontmatter declares none.
func (v *Vault) Load(path string) (*Note, error) {
	full := filepath.Join(v.root, path)
	raw, err := afero.ReadFile(v.fs, full)
	if err != nil {
		return nil, fmt.Errorf("failed to read note %s: %w", path, err)
	}

	var fm noteFrontmatter
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter in %s: %w", path, err)
	}

	title := fm.Title
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	status := "draft"
	if fm.Published {
		status = "published"
	}

	return &Note{
		Title:        title,
		Tags:         fm.Tags,
		Featured:     fm.Featured,
		Status:       status,
		Excerpt:      fm.Excerpt,
		FeatureImage: fm.FeatureImage,
		Body:         string(body),
		Path:         path,
	}, nil
}

// ResolverFor returns a resolver for note's embedded references. References
// resolve first relative to the note's directory, then relative to the vault
// root, then by basename search across the vault. This mirrors shortest-path
// link resolution in common note-taking tools.
func (v *Vault) ResolverFor(note *Note) *NoteResolver {
	return &NoteResolver{
		vault: v,
		dir:   filepath.Dir(note.Path),
	}
}

// errStopWalk short-circuits the vault walk once a match is found.
var errStopWalk = fmt.Errorf("stop walk")

// NoteResolver locates a referenced asset's bytes by its declared path or
// name.
type NoteResolver struct {
	vault *Vault
	dir   string
}

// Resolve returns the referenced asset's bytes and its base filename.
func (r *NoteResolver) Resolve(_ context.Context, ref string) ([]byte, string, error) {
	clean := filepath.Clean(strings.TrimSpace(ref))
	name := filepath.Base(clean)

	candidates := []string{
		filepath.Join(r.vault.root, r.dir, clean),
		filepath.Join(r.vault.root, clean),
	}
	for _, candidate := range candidates {
		data, err := afero.ReadFile(r.vault.fs, candidate)
		if err == nil {
			return data, name, nil
		}
	}

	// Fall back to a basename search across the vault.
	var found string
	err := afero.Walk(r.vault.fs, r.vault.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if filepath.Base(path) == name {
			found = path
			return errStopWalk
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, "", fmt.Errorf("vault search for %q failed: %w", ref, err)
	}
	if found == "" {
		return nil, "", fmt.Errorf("asset %q not found in vault", ref)
	}

	data, err := afero.ReadFile(r.vault.fs, found)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read asset %s: %w", found, err)
	}
	return data, name, nil
}
