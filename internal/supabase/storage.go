package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	storage "github.com/supabase-community/storage-go"

	"glenn-svanberg-backend/internal/apperr"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// ObjectInfo is the subset of bucket listing metadata the gallery needs.
type ObjectInfo struct {
	ID        string
	Name      string
	CreatedAt string
	UpdatedAt string
	Size      int64
	MimeType  string
}

func NewStorageClient(supabaseURL, anonKey, bucket string) (*StorageClient, error) {
	if supabaseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase URL and anon key are required")
	}

	baseURL := supabaseURL
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	client := storage.NewClient(baseURL+"/storage/v1", anonKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// List returns objects under prefix, newest first.
func (s *StorageClient) List(prefix string, limit int) ([]ObjectInfo, error) {
	if s == nil || s.client == nil {
		return nil, errUnavailable()
	}

	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: limit,
		SortByOptions: storage.SortBy{
			Column: "created_at",
			Order:  "desc",
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "failed to list files", err)
	}

	objects := make([]ObjectInfo, 0, len(files))
	for _, file := range files {
		info := ObjectInfo{
			ID:        file.Id,
			Name:      file.Name,
			CreatedAt: file.CreatedAt,
			UpdatedAt: file.UpdatedAt,
		}
		// The listing metadata shape is provider-defined; pull out the
		// fields the gallery uses and ignore the rest.
		if raw, err := json.Marshal(file.Metadata); err == nil {
			var meta struct {
				Size     int64  `json:"size"`
				Mimetype string `json:"mimetype"`
			}
			if json.Unmarshal(raw, &meta) == nil {
				info.Size = meta.Size
				info.MimeType = meta.Mimetype
			}
		}
		objects = append(objects, info)
	}

	return objects, nil
}

// Upload writes data under key. Overwrites are refused: a second upload to
// the same key fails rather than silently replacing the object.
func (s *StorageClient) Upload(key string, data []byte, contentType string) error {
	if s == nil || s.client == nil {
		return errUnavailable()
	}

	upsert := false
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, fmt.Sprintf("failed to upload %s", key), err)
	}

	return nil
}

// Download reads an object's bytes.
func (s *StorageClient) Download(key string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errUnavailable()
	}

	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, fmt.Sprintf("failed to download %s", key), err)
	}

	return data, nil
}

// PublicURL derives the unauthenticated object URL. No network round-trip:
// the URL shape is a stable contract of the storage provider.
func (s *StorageClient) PublicURL(key string) string {
	if s == nil || s.client == nil {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}

func errUnavailable() error {
	return apperr.Storage("storage not configured")
}

var (
	defaultOnce   sync.Once
	defaultClient *StorageClient
)

// Default returns the process-wide storage client, initialized once from the
// environment. With missing credentials it yields an unavailable client
// whose operations return a storage error, so importers never crash at init.
func Default() *StorageClient {
	defaultOnce.Do(func() {
		client, err := NewStorageClient(
			os.Getenv("SUPABASE_URL"),
			os.Getenv("SUPABASE_ANON_KEY"),
			bucketOrDefault(os.Getenv("SUPABASE_STORAGE_BUCKET")),
		)
		if err != nil {
			defaultClient = &StorageClient{}
			return
		}
		defaultClient = client
	})
	return defaultClient
}

func bucketOrDefault(bucket string) string {
	if bucket == "" {
		return "glennsvanberg"
	}
	return bucket
}
