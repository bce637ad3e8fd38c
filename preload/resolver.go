package preload

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

// FileResolver implements PathResolver and FileReader against a
// github.com/viant/afs storage.Service, so the entry key namespace can live
// on local disk, in object storage, or behind any other afs-supported
// scheme without the preload builder caring which.
type FileResolver struct {
	Service storage.Service
	BaseURL string
}

// NewFileResolver builds a FileResolver rooted at baseURL (e.g.
// "file:///var/lib/scriptrpc/scripts" or "s3://bucket/scripts") using the
// default afs service, which dispatches by URL scheme.
func NewFileResolver(baseURL string) *FileResolver {
	return &FileResolver{Service: afs.New(), BaseURL: baseURL}
}

// Resolve joins entryKey onto BaseURL and confirms the result exists.
func (r *FileResolver) Resolve(ctx context.Context, entryKey string) (string, error) {
	target := path.Join(r.BaseURL, entryKey)
	exists, err := r.Service.Exists(ctx, target)
	if err != nil {
		return "", fmt.Errorf("check existence of %q: %w", target, err)
	}
	if !exists {
		return "", fmt.Errorf("entry key %q not found under %q", entryKey, r.BaseURL)
	}
	return target, nil
}

// ReadFile downloads path's full contents.
func (r *FileResolver) ReadFile(ctx context.Context, path string) ([]byte, error) {
	reader, err := r.Service.OpenURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
