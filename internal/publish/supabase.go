package publish

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// Backend is the subset of Supabase the publisher needs.
type Backend interface {
	// Upload stores data at path in bucket and returns its public URL.
	Upload(bucket, path string, data []byte) (string, error)
	Insert(table string, row any) error
	// FetchNote reads the note row with the given id. A missing row returns
	// ErrNoteNotFound.
	FetchNote(table, id string) (Note, error)
	// Download returns the stored object ref points at, either a storage
	// public URL or a "<bucket>/<path>" reference.
	Download(ref string) ([]byte, error)
}

// Note is the part of a notes row the podcast is built from.
type Note struct {
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
}

// ErrNoteNotFound is returned when no note row matches.
var ErrNoteNotFound = errors.New("note not found")

// postgrest reports zero rows for a single-object request with this code.
const noRowsCode = "PGRST116"

// SupabaseBackend talks to Supabase through the official SDK.
type SupabaseBackend struct {
	client *supabase.Client
}

// NewSupabaseBackend connects to the project at url with a service key.
func NewSupabaseBackend(url, key string) (*SupabaseBackend, error) {
	url = strings.TrimSpace(url)
	key = strings.TrimSpace(key)
	if url == "" || key == "" {
		return nil, errors.New("publish: supabase url and key are required")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return &SupabaseBackend{client: client}, nil
}

// Upload overwrites any object already at path.
func (b *SupabaseBackend) Upload(bucket, path string, data []byte) (string, error) {
	contentType := "audio/mpeg"
	upsert := true
	if _, err := b.client.Storage.UploadFile(bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	public := b.client.Storage.GetPublicUrl(bucket, path)
	return public.SignedURL, nil
}

func (b *SupabaseBackend) Insert(table string, row any) error {
	if _, _, err := b.client.From(table).Insert(row, true, "job_id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (b *SupabaseBackend) FetchNote(table, id string) (Note, error) {
	var note Note
	_, err := b.client.From(table).Select("file_path,title", "", false).Eq("id", id).Single().ExecuteTo(&note)
	if err != nil {
		if strings.Contains(err.Error(), noRowsCode) {
			return Note{}, ErrNoteNotFound
		}
		return Note{}, fmt.Errorf("select from %s: %w", table, err)
	}
	if strings.TrimSpace(note.FilePath) == "" {
		return Note{}, ErrNoteNotFound
	}
	return note, nil
}

func (b *SupabaseBackend) Download(ref string) ([]byte, error) {
	bucket, path, err := ParseObjectRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := b.client.Storage.DownloadFile(bucket, path)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s/%s: empty object", bucket, path)
	}
	return data, nil
}

// ParseObjectRef splits a storage object reference into bucket and path.
// It accepts the public, signed and authenticated URL forms Supabase hands
// out as well as a bare "<bucket>/<path>".
func ParseObjectRef(ref string) (bucket, path string, err error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		parsed, parseErr := url.Parse(ref)
		if parseErr != nil {
			return "", "", fmt.Errorf("parse object url: %w", parseErr)
		}
		const marker = "/storage/v1/object/"
		idx := strings.Index(parsed.Path, marker)
		if idx < 0 {
			return "", "", fmt.Errorf("%q is not a storage object url", ref)
		}
		ref = parsed.Path[idx+len(marker):]
		for _, access := range []string{"public/", "sign/", "authenticated/"} {
			if strings.HasPrefix(ref, access) {
				ref = strings.TrimPrefix(ref, access)
				break
			}
		}
	}
	bucket, path, found := strings.Cut(strings.TrimPrefix(ref, "/"), "/")
	if !found || bucket == "" || strings.Trim(path, "/") == "" {
		return "", "", fmt.Errorf("object reference %q needs a bucket and a path", ref)
	}
	return bucket, path, nil
}
