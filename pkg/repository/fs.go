package repository

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
)

// revisionFile holds the repository revision counter under the root.
const revisionFile = ".revision"

// FS is a filesystem-backed Repository rooted at a directory. Individual
// objects are written with a temp-file-then-rename swap so a crash never
// leaves a torn blob, and the batch revision check is serialized under a
// process-local lock. Multi-process writers must coordinate externally.
type FS struct {
	root string
	mu   sync.Mutex
}

// NewFS opens (creating if needed) a filesystem repository at root.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", root, err)
	}
	return &FS{root: root}, nil
}

func (f *FS) abs(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

// Get reads one object.
func (f *FS) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(f.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("blob", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}

// List walks the tree and returns metadata for every object under prefix.
func (f *FS) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		path := filepath.ToSlash(rel)
		if path == revisionFile || !strings.HasPrefix(path, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, ObjectInfo{Path: path, Size: info.Size(), ModTime: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO("list", prefix, err)
	}
	return infos, nil
}

// PutBatch writes all puts under the revision check. Each object lands via
// rename; the revision counter advances only after every object is durable.
func (f *FS) PutBatch(_ context.Context, puts []Put, expected Revision) (Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.readRevision()
	if err != nil {
		return "", err
	}
	if expected != AnyRevision && expected != current {
		return "", errors.NewConflictError("", string(expected), string(current))
	}

	for _, p := range puts {
		if err := f.writeAtomic(p.Path, p.Data); err != nil {
			return "", err
		}
	}

	next, err := f.bumpRevision(current)
	if err != nil {
		return "", err
	}
	return next, nil
}

// Delete removes objects. Missing paths are not an error.
func (f *FS) Delete(_ context.Context, paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(f.abs(p)); err != nil && !os.IsNotExist(err) {
			return errors.WrapIO("delete", p, err)
		}
	}
	return nil
}

// Revision returns the current revision.
func (f *FS) Revision(_ context.Context) (Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readRevision()
}

func (f *FS) readRevision() (Revision, error) {
	data, err := os.ReadFile(filepath.Join(f.root, revisionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Revision("0"), nil
		}
		return "", errors.WrapIO("read", revisionFile, err)
	}
	return Revision(strings.TrimSpace(string(data))), nil
}

func (f *FS) bumpRevision(current Revision) (Revision, error) {
	n, err := strconv.ParseUint(string(current), 10, 64)
	if err != nil {
		return "", errors.NewFatalError("repository", "corrupt revision marker", err)
	}
	next := Revision(strconv.FormatUint(n+1, 10))
	if err := f.writeAtomic(revisionFile, []byte(next)); err != nil {
		return "", err
	}
	return next, nil
}

func (f *FS) writeAtomic(path string, data []byte) error {
	dst := f.abs(path)
	if err := os.MkdirAll(filepath.Dir(dst), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".staged-*")
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.WrapIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.WrapIO("write", path, err)
	}
	if err := os.Chmod(tmp.Name(), constants.FilePermissions); err != nil {
		os.Remove(tmp.Name())
		return errors.WrapIO("write", path, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return errors.WrapIO("write", path, err)
	}
	return nil
}
