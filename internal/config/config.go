// Package config loads and validates the umbpress HCL configuration.
package config

import (
	"fmt"
	"net/url"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// EnvClientSecret names the environment variable consulted when the config
// file omits the client secret.
const EnvClientSecret = "UMBPRESS_CLIENT_SECRET"

// Config is the root umbpress configuration.
type Config struct {
	Umbraco *Umbraco `hcl:"umbraco,block"`
	Publish *Publish `hcl:"publish,block"`
	Vault   *Vault   `hcl:"vault,block"`
}

// Umbraco holds endpoint and credential settings. Credentials are immutable
// for the lifetime of a client built from them.
type Umbraco struct {
	BaseURL      string `hcl:"base_url"`
	ClientID     string `hcl:"client_id"`
	ClientSecret string `hcl:"client_secret,optional"`
}

// Publish holds the document-type mapping settings for publishing.
type Publish struct {
	DocumentTypeID string `hcl:"document_type_id"`

	// ParentID of "", "null", or whitespace publishes at the content root.
	ParentID string `hcl:"parent_id,optional"`

	TitleAlias   string `hcl:"title_alias"`
	ContentAlias string `hcl:"content_alias"`

	// MediaFolder is the media library folder receiving uploaded images.
	MediaFolder string `hcl:"media_folder,optional"`
}

// Vault locates the local notes directory used for image resolution.
type Vault struct {
	Path string `hcl:"path,optional"`
}

// Load reads and decodes the configuration file, applying environment
// fallbacks and defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration file path is required")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	var cfg Config
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	if cfg.Umbraco != nil && cfg.Umbraco.ClientSecret == "" {
		cfg.Umbraco.ClientSecret = os.Getenv(EnvClientSecret)
	}
	if cfg.Publish != nil && cfg.Publish.MediaFolder == "" {
		cfg.Publish.MediaFolder = "Obsidian"
	}
	if cfg.Vault == nil {
		cfg.Vault = &Vault{}
	}
	if cfg.Vault.Path == "" {
		cfg.Vault.Path = "."
	}

	return &cfg, nil
}

// Validate checks that everything a publish needs is present.
func (c *Config) Validate() error {
	if c.Umbraco == nil {
		return fmt.Errorf("umbraco block is required")
	}
	if c.Publish == nil {
		return fmt.Errorf("publish block is required")
	}

	if err := validation.ValidateStruct(c.Umbraco,
		validation.Field(&c.Umbraco.BaseURL, validation.Required, validation.By(validHTTPURL)),
		validation.Field(&c.Umbraco.ClientID, validation.Required),
		validation.Field(&c.Umbraco.ClientSecret, validation.Required),
	); err != nil {
		return fmt.Errorf("invalid umbraco config: %w", err)
	}

	if err := validation.ValidateStruct(c.Publish,
		validation.Field(&c.Publish.DocumentTypeID, validation.Required),
		validation.Field(&c.Publish.TitleAlias, validation.Required),
		validation.Field(&c.Publish.ContentAlias, validation.Required),
	); err != nil {
		return fmt.Errorf("invalid publish config: %w", err)
	}

	return nil
}

func validHTTPURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme")
	}
	return nil
}
