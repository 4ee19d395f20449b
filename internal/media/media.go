// Package media uploads listing images and videos to object storage.
package media

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Kind is the media list a file belongs to.
type Kind string

const (
	KindImages Kind = "images"
	KindVideos Kind = "videos"
)

// Kinds lists every media kind in submit order.
var Kinds = []Kind{KindImages, KindVideos}

// Valid reports whether k is a known media kind.
func (k Kind) Valid() bool {
	return k == KindImages || k == KindVideos
}

// File is a pending upload.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Size returns the payload length in bytes.
func (f File) Size() int {
	return len(f.Data)
}

// Uploader stores a file under key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, file File, key string) (string, error)
}

// Uploaded is a file that reached storage.
type Uploaded struct {
	File File
	URL  string
}

// FileError is a file that could not be stored.
type FileError struct {
	File File
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.File.Name, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Result reports a batch upload. Both lists keep input order.
type Result struct {
	Uploaded []Uploaded
	Failed   []FileError
}

// URLs returns the public URLs of the stored files.
func (r Result) URLs() []string {
	urls := make([]string, 0, len(r.Uploaded))
	for _, u := range r.Uploaded {
		urls = append(urls, u.URL)
	}
	return urls
}

// UploadAll uploads every file independently. A failed file never stops its
// siblings.
func UploadAll(ctx context.Context, uploader Uploader, kind Kind, files []File) Result {
	var result Result
	for _, file := range files {
		url, err := uploader.Upload(ctx, file, ObjectKey(kind, file.Name))
		if err != nil {
			result.Failed = append(result.Failed, FileError{File: file, Err: err})
			continue
		}
		result.Uploaded = append(result.Uploaded, Uploaded{File: file, URL: url})
	}
	return result
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName reduces a client file name to a storage-safe base name.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeName.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "file"
	}
	return name
}

// ObjectKey builds the storage key properties/<kind>/<uuid>-<name>.
func ObjectKey(kind Kind, name string) string {
	return fmt.Sprintf("properties/%s/%s-%s", kind, uuid.New().String(), SanitizeName(name))
}
