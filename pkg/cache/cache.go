// Package cache keeps a local copy of every remote file that's read, so that
// each remote file is transferred at most once per cache directory. Remote
// files are immutable once published, so entries never expire.
package cache

import (
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/metrics"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Opener opens remote files.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// Transport serves remote files from the local cache, transferring them on
// first access. It isn't safe for concurrent use, except that concurrent
// materializations of the same path are collapsed into one transfer.
type Transport struct {
	remote   Opener
	root     string
	metrics  *metrics.Recorder
	inFlight singleflight.Group
}

// New creates a Transport that caches files from remote under root.
func New(remote Opener, root string, recorder *metrics.Recorder) *Transport {
	return &Transport{remote: remote, root: root, metrics: recorder}
}

// LocalPath returns where remotePath is cached. The remote path is kept
// relative to the cache root, so absolute and relative remote paths map to
// the same entry.
func (t *Transport) LocalPath(remotePath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

// Materialize ensures remotePath is in the cache, and returns the local path.
func (t *Transport) Materialize(remotePath string) (string, error) {
	localPath := t.LocalPath(remotePath)
	_, err, _ := t.inFlight.Do(localPath, func() (interface{}, error) {
		return nil, t.materialize(remotePath, localPath)
	})
	if err != nil {
		return "", errors.WithContext(err, "materialize "+remotePath)
	}
	return localPath, nil
}

func (t *Transport) materialize(remotePath, localPath string) error {
	// Empty files are left over from interrupted transfers, so they're
	// fetched again.
	if fi, err := fs.Stat(localPath); err == nil && fi.Size() > 0 {
		log.WithField("path", remotePath).Debug("Cache hit")
		t.metrics.CacheHit()
		return nil
	}
	t.metrics.CacheMiss()

	dir := filepath.Dir(localPath)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "create cache directory")
	}

	in, err := t.remote.Open(remotePath)
	if err != nil {
		return errors.WithContext(err, "open remote")
	}
	defer in.Close()

	// Write to a temporary file so that a partial transfer is never
	// mistaken for a cached copy.
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(localPath)+".part")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}

	n, err := io.Copy(tmp, in)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fs.Remove(tmp.Name())
		return errors.WithContext(err, "copy")
	}

	if err := fs.Rename(tmp.Name(), localPath); err != nil {
		fs.Remove(tmp.Name())
		return errors.WithContext(err, "rename")
	}

	log.WithFields(log.Fields{
		"path":  remotePath,
		"bytes": n,
	}).Info("Downloaded")
	t.metrics.BytesTransferred(n)
	return nil
}

// Open materializes remotePath and opens the cached copy.
func (t *Transport) Open(remotePath string) (afero.File, error) {
	localPath, err := t.Materialize(remotePath)
	if err != nil {
		return nil, err
	}
	return fs.Open(localPath)
}

// Decompress calls fn with the uncompressed contents of f. name is used to
// detect the compression: zip archives must contain exactly one entry, and
// fn receives the entry's name. Uncompressed files are passed through.
func Decompress(f afero.File, name string, fn func(r io.Reader, name string) error) error {
	switch {
	case strings.HasSuffix(name, ".zip"):
		fi, err := f.Stat()
		if err != nil {
			return errors.WithContext(err, "stat")
		}

		archive, err := zip.NewReader(f, fi.Size())
		if err != nil {
			return errors.WithContext(err, "read zip")
		}

		if len(archive.File) != 1 {
			return errors.ArchiveShapeError{Path: name, Entries: len(archive.File)}
		}

		entry := archive.File[0]
		inner, err := entry.Open()
		if err != nil {
			return errors.WithContext(err, "open zip entry")
		}
		defer inner.Close()
		return fn(inner, path.Base(entry.Name))

	case strings.HasSuffix(name, ".gz"):
		inner, err := gzip.NewReader(f)
		if err != nil {
			return errors.WithContext(err, "read gzip")
		}
		defer inner.Close()
		return fn(inner, strings.TrimSuffix(name, ".gz"))

	default:
		return fn(f, name)
	}
}
