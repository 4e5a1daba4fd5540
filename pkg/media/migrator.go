// Package media migrates image assets into the CMS media library.
//
// Uploads are two-phase: bytes land as an anonymous temporary file addressed
// by a client-chosen key, then a permanent media node referencing that key is
// created. Re-uploading a same-named asset into the same folder reuses the
// existing node rather than failing. Dedup keys on the display name alone,
// so a same-named file with changed content silently reuses the stale asset.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/umbraco-forge/umbpress/pkg/umbraco"
)

const (
	// DefaultFolderName is the well-known media library folder that receives
	// every migrated asset.
	DefaultFolderName = "Obsidian"

	folderTypeName = "Folder"
	imageTypeName  = "Image"

	filePropertyAlias = "umbracoFile"
)

// ErrNoFileURL is returned by MediaURL when the media node carries no
// resolvable file URL.
var ErrNoFileURL = errors.New("media: no file URL in media item")

var errFolderNotVisible = errors.New("media: created folder not yet visible")

// Config contains configuration for the Migrator.
type Config struct {
	Client *umbraco.Client

	// FolderName overrides the upload folder display name.
	// Default: DefaultFolderName.
	FolderName string

	// SettleDelay is how long to wait before re-listing the media root to
	// verify a freshly created folder. Default: 1 second.
	SettleDelay time.Duration

	Logger hclog.Logger
}

// Migrator uploads image assets and resolves their retrievable URLs. The
// discovered folder and media-type ids are process-lifetime caches; the
// sequential execution model means no locking is needed.
type Migrator struct {
	client      *umbraco.Client
	folderName  string
	settleDelay time.Duration
	logger      hclog.Logger

	folderID     string
	folderTypeID string
	imageTypeID  string
}

// New creates a Migrator.
func New(cfg Config) (*Migrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("media: client is required")
	}
	if cfg.FolderName == "" {
		cfg.FolderName = DefaultFolderName
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Migrator{
		client:      cfg.Client,
		folderName:  cfg.FolderName,
		settleDelay: cfg.SettleDelay,
		logger:      cfg.Logger.Named("media"),
	}, nil
}

// createMediaRequest is the POST /media creation body.
type createMediaRequest struct {
	ID        string               `json:"id"`
	Parent    *umbraco.Ref         `json:"parent"`
	MediaType umbraco.Ref          `json:"mediaType"`
	Values    []mediaPropertyValue `json:"values"`
	Variants  []mediaCreateVariant `json:"variants"`
}

type mediaPropertyValue struct {
	Alias string      `json:"alias"`
	Value interface{} `json:"value"`
}

type mediaCreateVariant struct {
	Culture *string `json:"culture"`
	Segment *string `json:"segment"`
	Name    string  `json:"name"`
}

// mediaItemResponse is the GET /media/{id} shape, reduced to the properties
// this package reads.
type mediaItemResponse struct {
	Values []struct {
		Alias string      `json:"alias"`
		Value interface{} `json:"value"`
	} `json:"values"`
}

// fileValue is the shape of the umbracoFile property value. Older server
// versions populate url instead of src.
type fileValue struct {
	Src string `mapstructure:"src"`
	URL string `mapstructure:"url"`
}

// folderMediaTypeID resolves and caches the id of the "Folder" media type.
func (m *Migrator) folderMediaTypeID(ctx context.Context) (string, error) {
	if m.folderTypeID != "" {
		return m.folderTypeID, nil
	}

	var types umbraco.ItemCollection
	if err := m.client.Call(ctx, "GET", "/umbraco/management/api/v1/media-type/allowed-at-root", nil, &types); err != nil {
		return "", fmt.Errorf("failed to list root media types: %w", err)
	}

	for _, item := range types.Items {
		if item.Name == folderTypeName {
			m.folderTypeID = item.ID
			return item.ID, nil
		}
	}

	return "", fmt.Errorf("media type %q not found", folderTypeName)
}

// imageMediaTypeID resolves and caches the id of the "Image" media type,
// preferring the folder type's allowed-children list and falling back to the
// full media-type listing.
func (m *Migrator) imageMediaTypeID(ctx context.Context) (string, error) {
	if m.imageTypeID != "" {
		return m.imageTypeID, nil
	}

	if folderTypeID, err := m.folderMediaTypeID(ctx); err == nil {
		var allowed umbraco.ItemCollection
		err := m.client.Call(ctx, "GET",
			fmt.Sprintf("/umbraco/management/api/v1/media-type/%s/allowed-children", folderTypeID),
			nil, &allowed)
		if err == nil {
			for _, item := range allowed.Items {
				if item.Name == imageTypeName {
					m.imageTypeID = item.ID
					return item.ID, nil
				}
			}
		} else {
			m.logger.Debug("allowed-children lookup failed, trying full media-type list", "error", err)
		}
	}

	var types umbraco.ItemCollection
	if err := m.client.Call(ctx, "GET", "/umbraco/management/api/v1/media-type?skip=0&take=100", nil, &types); err != nil {
		return "", fmt.Errorf("failed to list media types: %w", err)
	}

	for _, item := range types.Items {
		if item.Name == imageTypeName {
			m.imageTypeID = item.ID
			return item.ID, nil
		}
	}

	return "", fmt.Errorf("media type %q not found", imageTypeName)
}

// EnsureFolder returns the id of the upload folder, creating it when no
// root-level node carries the well-known name. The id is cached for the
// process lifetime, so repeat calls are free and creation happens at most
// once.
func (m *Migrator) EnsureFolder(ctx context.Context) (string, error) {
	if m.folderID != "" {
		return m.folderID, nil
	}

	if id, ok := m.findRootFolder(ctx, ""); ok {
		m.logger.Debug("reusing existing upload folder", "id", id)
		m.folderID = id
		return id, nil
	}

	folderTypeID, err := m.folderMediaTypeID(ctx)
	if err != nil {
		return "", err
	}

	folderID := uuid.NewString()
	req := createMediaRequest{
		ID:        folderID,
		Parent:    nil,
		MediaType: umbraco.Ref{ID: folderTypeID},
		Values:    []mediaPropertyValue{},
		Variants: []mediaCreateVariant{
			{Culture: nil, Segment: nil, Name: m.folderName},
		},
	}

	m.logger.Info("creating upload folder", "name", m.folderName, "id", folderID)
	if err := m.client.Call(ctx, "POST", "/umbraco/management/api/v1/media", req, nil); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	// Creation is not guaranteed immediately visible to subsequent reads.
	// Re-list the root after a settle delay, allowing a single bounded retry,
	// before trusting the client-assigned id.
	verified := folderID
	check := func() error {
		if id, ok := m.findRootFolder(ctx, folderID); ok {
			verified = id
			return nil
		}
		return errFolderNotVisible
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.settleDelay), 1), ctx)
	if err := backoff.Retry(check, policy); err != nil {
		m.logger.Warn("created folder not visible after settle delay, trusting client id",
			"id", folderID)
	}

	m.folderID = verified
	return verified, nil
}

// findRootFolder scans the media root for the upload folder by id or name.
// Lookup failures are treated as not-found so the pipeline proceeds to
// create.
func (m *Migrator) findRootFolder(ctx context.Context, id string) (string, bool) {
	var root umbraco.ItemCollection
	if err := m.client.Call(ctx, "GET", "/umbraco/management/api/v1/tree/media/root", nil, &root); err != nil {
		m.logger.Debug("media root listing failed", "error", err)
		return "", false
	}

	for _, item := range root.Items {
		if (id != "" && item.ID == id) || item.DisplayName() == m.folderName {
			return item.ID, true
		}
	}
	return "", false
}

// UploadImage uploads data into folderID and returns the media id. When the
// folder already holds a child with the same display name, its id is returned
// and no bytes are transferred.
func (m *Migrator) UploadImage(ctx context.Context, data []byte, filename, folderID string) (string, error) {
	if existing, ok := m.findMediaByName(ctx, filename, folderID); ok {
		m.logger.Debug("media already exists, reusing", "filename", filename, "id", existing)
		return existing, nil
	}

	tempFileID, err := m.uploadTemporary(ctx, data, filename)
	if err != nil {
		return "", err
	}

	imageTypeID, err := m.imageMediaTypeID(ctx)
	if err != nil {
		return "", err
	}

	mediaID := uuid.NewString()
	req := createMediaRequest{
		ID:        mediaID,
		Parent:    &umbraco.Ref{ID: folderID},
		MediaType: umbraco.Ref{ID: imageTypeID},
		Values: []mediaPropertyValue{
			{
				Alias: filePropertyAlias,
				Value: map[string]string{"temporaryFileId": tempFileID},
			},
		},
		Variants: []mediaCreateVariant{
			{Culture: nil, Segment: nil, Name: filename},
		},
	}

	if err := m.client.Call(ctx, "POST", "/umbraco/management/api/v1/media", req, nil); err != nil {
		return "", fmt.Errorf("failed to create media item for %s: %w", filename, err)
	}

	m.logger.Info("uploaded image", "filename", filename, "id", mediaID)
	return mediaID, nil
}

// uploadTemporary stores data as a temporary file and returns the
// client-chosen key the permanent media node must reference.
func (m *Migrator) uploadTemporary(ctx context.Context, data []byte, filename string) (string, error) {
	tempFileID := uuid.NewString()
	path := "/umbraco/management/api/v1/temporary-file?id=" + url.QueryEscape(tempFileID)

	err := m.client.UploadMultipart(ctx, path, data, filename, MimeTypeFor(filename), tempFileID)
	if err != nil {
		return "", fmt.Errorf("failed to upload temporary file %s: %w", filename, err)
	}
	return tempFileID, nil
}

// findMediaByName checks folderID's children for a display-name match.
// Best-effort: any failure reads as not-found.
func (m *Migrator) findMediaByName(ctx context.Context, filename, folderID string) (string, bool) {
	var children umbraco.ItemCollection
	err := m.client.Call(ctx, "GET",
		"/umbraco/management/api/v1/tree/media/children?parentId="+url.QueryEscape(folderID),
		nil, &children)
	if err != nil {
		m.logger.Debug("children listing failed during dedup check", "error", err)
		return "", false
	}

	for _, item := range children.Items {
		if item.DisplayName() == filename {
			return item.ID, true
		}
	}
	return "", false
}

// MediaURL fetches the media node and extracts the retrievable URL from its
// file property.
func (m *Migrator) MediaURL(ctx context.Context, mediaID string) (string, error) {
	var item mediaItemResponse
	if err := m.client.Call(ctx, "GET", "/umbraco/management/api/v1/media/"+mediaID, nil, &item); err != nil {
		return "", fmt.Errorf("failed to fetch media item %s: %w", mediaID, err)
	}

	for _, v := range item.Values {
		if v.Alias != filePropertyAlias {
			continue
		}
		var fv fileValue
		if err := mapstructure.Decode(v.Value, &fv); err != nil {
			continue
		}
		if fv.Src != "" {
			return fv.Src, nil
		}
		if fv.URL != "" {
			return fv.URL, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoFileURL, mediaID)
}
