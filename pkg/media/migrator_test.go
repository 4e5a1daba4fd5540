package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbraco-forge/umbpress/pkg/umbraco"
)

const (
	folderTypeID = "mt-folder"
	imageTypeID  = "mt-image"
)

// fakeCMS is an in-memory stand-in for the media surface of the management
// API.
type fakeCMS struct {
	t *testing.T

	root     []umbraco.Item
	children map[string][]umbraco.Item
	fileURLs map[string]map[string]interface{}

	// pendingFolder simulates eventual consistency: a created folder becomes
	// visible in root listings only after visibleAfter further listings.
	pendingFolder *umbraco.Item
	visibleAfter  int
	rootListings  int

	// noAllowedChildren forces image-type discovery down the full-listing
	// fallback.
	noAllowedChildren bool

	tempUploads   int
	tempKeys      []string
	folderCreates int
	mediaCreates  int
	lastTempRef   string
}

type createRequest struct {
	ID        string       `json:"id"`
	Parent    *umbraco.Ref `json:"parent"`
	MediaType umbraco.Ref  `json:"mediaType"`
	Values    []struct {
		Alias string                 `json:"alias"`
		Value map[string]interface{} `json:"value"`
	} `json:"values"`
	Variants []struct {
		Name string `json:"name"`
	} `json:"variants"`
}

func newFakeCMS(t *testing.T) (*fakeCMS, *Migrator) {
	t.Helper()

	f := &fakeCMS{
		t:        t,
		children: map[string][]umbraco.Item{},
		fileURLs: map[string]map[string]interface{}{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(umbraco.TokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"t","token_type":"Bearer"}`)
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/media-type/allowed-at-root", func(w http.ResponseWriter, r *http.Request) {
		writeItems(w, []umbraco.Item{{ID: folderTypeID, Name: "Folder"}})
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/media-type/{id}/allowed-children", func(w http.ResponseWriter, r *http.Request) {
		if f.noAllowedChildren {
			writeItems(w, nil)
			return
		}
		writeItems(w, []umbraco.Item{{ID: imageTypeID, Name: "Image"}})
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/media-type", func(w http.ResponseWriter, r *http.Request) {
		writeItems(w, []umbraco.Item{
			{ID: folderTypeID, Name: "Folder"},
			{ID: imageTypeID, Name: "Image"},
		})
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/tree/media/root", func(w http.ResponseWriter, r *http.Request) {
		if f.pendingFolder != nil {
			f.rootListings++
			if f.rootListings > f.visibleAfter {
				f.root = append(f.root, *f.pendingFolder)
				f.pendingFolder = nil
			}
		}
		writeItems(w, f.root)
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/tree/media/children", func(w http.ResponseWriter, r *http.Request) {
		writeItems(w, f.children[r.URL.Query().Get("parentId")])
	})
	mux.HandleFunc("POST /umbraco/management/api/v1/temporary-file", func(w http.ResponseWriter, r *http.Request) {
		f.tempUploads++
		f.tempKeys = append(f.tempKeys, r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /umbraco/management/api/v1/media", func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Variants)

		if req.Parent == nil {
			f.folderCreates++
			f.pendingFolder = &umbraco.Item{
				ID:       req.ID,
				Variants: []umbraco.ItemVariant{{Name: req.Variants[0].Name}},
			}
			f.rootListings = 0
		} else {
			f.mediaCreates++
			if ref, ok := req.Values[0].Value["temporaryFileId"].(string); ok {
				f.lastTempRef = ref
			}
			f.children[req.Parent.ID] = append(f.children[req.Parent.ID], umbraco.Item{
				ID:   req.ID,
				Name: req.Variants[0].Name,
			})
			f.fileURLs[req.ID] = map[string]interface{}{
				"src": "/media/" + req.ID + "/" + req.Variants[0].Name,
			}
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /umbraco/management/api/v1/media/{id}", func(w http.ResponseWriter, r *http.Request) {
		value, ok := f.fileURLs[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"title":"Not Found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": []map[string]interface{}{
				{"alias": "umbracoFile", "value": value},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := umbraco.New(umbraco.Config{
		BaseURL:      srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	m, err := New(Config{
		Client:      client,
		SettleDelay: time.Millisecond,
	})
	require.NoError(t, err)

	return f, m
}

func writeItems(w http.ResponseWriter, items []umbraco.Item) {
	if items == nil {
		items = []umbraco.Item{}
	}
	json.NewEncoder(w).Encode(umbraco.ItemCollection{Total: len(items), Items: items})
}

func TestEnsureFolderReusesExisting(t *testing.T) {
	f, m := newFakeCMS(t)
	f.root = []umbraco.Item{
		{ID: "other", Name: "Products"},
		{ID: "f-1", Variants: []umbraco.ItemVariant{{Name: "Obsidian"}}},
	}

	id, err := m.EnsureFolder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "f-1", id)
	assert.Zero(t, f.folderCreates)
}

func TestEnsureFolderCreatesAndVerifies(t *testing.T) {
	f, m := newFakeCMS(t)
	f.visibleAfter = 1 // invisible on the first verification listing

	id, err := m.EnsureFolder(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.folderCreates)

	// The folder became visible on the bounded re-check and its id matches
	// the client-assigned one.
	require.Len(t, f.root, 1)
	assert.Equal(t, f.root[0].ID, id)
}

func TestEnsureFolderTrustsClientIDWhenNeverVisible(t *testing.T) {
	f, m := newFakeCMS(t)
	f.visibleAfter = 100 // never becomes visible within the bounded retry

	id, err := m.EnsureFolder(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.folderCreates)
}

func TestEnsureFolderIsIdempotent(t *testing.T) {
	f, m := newFakeCMS(t)

	ctx := context.Background()
	first, err := m.EnsureFolder(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		id, err := m.EnsureFolder(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, id)
	}
	assert.Equal(t, 1, f.folderCreates, "at most one creation across all calls")
}

func TestUploadImageDedup(t *testing.T) {
	f, m := newFakeCMS(t)
	f.children["f-1"] = []umbraco.Item{{ID: "m-existing", Name: "cat.png"}}

	id, err := m.UploadImage(context.Background(), []byte("bytes"), "cat.png", "f-1")
	require.NoError(t, err)
	assert.Equal(t, "m-existing", id)
	assert.Zero(t, f.tempUploads, "no binary transfer for a deduplicated asset")
	assert.Zero(t, f.mediaCreates)
}

func TestUploadImageTwoPhase(t *testing.T) {
	f, m := newFakeCMS(t)

	id, err := m.UploadImage(context.Background(), []byte("bytes"), "cat.png", "f-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, 1, f.tempUploads)
	assert.Equal(t, 1, f.mediaCreates)
	require.Len(t, f.tempKeys, 1)
	assert.Equal(t, f.tempKeys[0], f.lastTempRef,
		"permanent media node references the temporary key")
}

func TestUploadImageIdempotent(t *testing.T) {
	f, m := newFakeCMS(t)
	ctx := context.Background()

	first, err := m.UploadImage(ctx, []byte("bytes"), "cat.png", "f-1")
	require.NoError(t, err)

	second, err := m.UploadImage(ctx, []byte("bytes"), "cat.png", "f-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.tempUploads, "same name uploads bytes once")
}

func TestImageTypeDiscoveryFallback(t *testing.T) {
	f, m := newFakeCMS(t)
	f.noAllowedChildren = true

	_, err := m.UploadImage(context.Background(), []byte("bytes"), "cat.png", "f-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.mediaCreates)
}

func TestMediaURL(t *testing.T) {
	t.Run("extracts src", func(t *testing.T) {
		f, m := newFakeCMS(t)
		f.fileURLs["m-1"] = map[string]interface{}{"src": "/media/m-1/cat.png"}

		url, err := m.MediaURL(context.Background(), "m-1")
		require.NoError(t, err)
		assert.Equal(t, "/media/m-1/cat.png", url)
	})

	t.Run("falls back to url", func(t *testing.T) {
		f, m := newFakeCMS(t)
		f.fileURLs["m-1"] = map[string]interface{}{"url": "/media/m-1/cat.png"}

		url, err := m.MediaURL(context.Background(), "m-1")
		require.NoError(t, err)
		assert.Equal(t, "/media/m-1/cat.png", url)
	})

	t.Run("missing file property", func(t *testing.T) {
		f, m := newFakeCMS(t)
		f.fileURLs["m-1"] = map[string]interface{}{}

		_, err := m.MediaURL(context.Background(), "m-1")
		assert.ErrorIs(t, err, ErrNoFileURL)
	})

	t.Run("unknown media id", func(t *testing.T) {
		_, m := newFakeCMS(t)

		_, err := m.MediaURL(context.Background(), "nope")
		assert.Error(t, err)
	})
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.JPEG", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.webp", "image/webp"},
		{"a.svg", "image/svg+xml"},
		{"a.bmp", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeFor(tt.filename))
		})
	}
}
