package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/verdict/pkg/schema"
)

// extensions tried, in order, for keys given without one.
var extensions = []string{".json", ".yaml", ".yml"}

// Filesystem serves decisions stored as files under a root directory. The
// key is the slash-separated path relative to the root; the extension may
// be omitted.
type Filesystem struct {
	root string
	fsys fs.FS
}

// NewFilesystem creates a loader rooted at dir.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{root: dir, fsys: os.DirFS(dir)}
}

// NewFS creates a loader over an arbitrary file system, such as an embed.FS.
func NewFS(fsys fs.FS) *Filesystem {
	return &Filesystem{fsys: fsys}
}

// Root returns the directory backing the loader, or "" for NewFS loaders.
func (f *Filesystem) Root() string { return f.root }

// Load implements capability.Loader.
func (f *Filesystem) Load(ctx context.Context, key string) (*schema.DecisionContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := f.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrLoader, "failed to read decision %s", key).WithCause(err)
	}

	content, err := Decode(data, FormatOf(name))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrLoader, "decision %s: %v", key, err).WithCause(err)
	}
	return content, nil
}

// Keys lists every decision file under the root, extension included.
func (f *Filesystem) Keys() ([]string, error) {
	var keys []string
	err := fs.WalkDir(f.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if isDecisionFile(p) {
			keys = append(keys, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *Filesystem) resolve(key string) (string, error) {
	name := path.Clean(strings.TrimPrefix(filepath.ToSlash(key), "/"))
	if key == "" || !fs.ValidPath(name) || name == "." {
		return "", schema.NewErrorf(schema.ErrLoader, "invalid decision key: %q", key)
	}

	if isDecisionFile(name) {
		if _, err := fs.Stat(f.fsys, name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", NotFound(key)
			}
			return "", schema.NewErrorf(schema.ErrLoader, "failed to stat decision %s", key).WithCause(err)
		}
		return name, nil
	}

	for _, ext := range extensions {
		if _, err := fs.Stat(f.fsys, name+ext); err == nil {
			return name + ext, nil
		}
	}
	return "", NotFound(key)
}

func isDecisionFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
