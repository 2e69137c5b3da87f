// Package remote provides access to the server that publishes the analytics
// files.
package remote

import (
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"

	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/period"
)

// Client is a session with the remote server. Implementations aren't safe
// for concurrent use.
type Client interface {
	ReadDir(dir string) ([]os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Close() error
}

// File describes a remote file.
type File struct {
	// Path is the full remote path.
	Path    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time

	// Period is the time range covered by the file, as encoded in its name.
	Period period.Period
}

// Name returns the base name of the file.
func (f File) Name() string {
	return path.Base(f.Path)
}

// periodField is the index of the period in a dot-separated filename, e.g.
// MI4.CMPNY.CMPNY.WDAI_UDAI.202101.monthly.0001.txt.zip.
const periodField = 4

// ParseFilePeriod parses the period embedded in a filename.
func ParseFilePeriod(name string) (period.Period, error) {
	fields := strings.Split(name, ".")
	if len(fields) <= periodField {
		return period.Period{}, errors.ParseError{
			Input:    name,
			Expected: "a dot-separated filename with the period in field 5",
		}
	}
	return period.ParseToken(fields[periodField])
}

// Describe builds the File for an entry of dir.
func Describe(dir string, info os.FileInfo) (File, error) {
	p, err := ParseFilePeriod(info.Name())
	if err != nil {
		return File{}, err
	}

	return File{
		Path:    path.Join(dir, info.Name()),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Period:  p,
	}, nil
}

// IsNotExist returns whether err means that a remote path doesn't exist.
func IsNotExist(err error) bool {
	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
		return true
	}

	var statusErr *sftp.StatusError
	return errors.As(err, &statusErr) && statusErr.FxCode() == sftp.ErrSSHFxNoSuchFile
}

// fsClient serves files from a local filesystem.
type fsClient struct {
	fs afero.Fs
}

// NewFsClient returns a Client that reads from fs instead of a server. It's
// used for trees that have already been mirrored or mounted locally.
func NewFsClient(fs afero.Fs) Client {
	return fsClient{fs}
}

func (c fsClient) ReadDir(dir string) ([]os.FileInfo, error) {
	return afero.ReadDir(c.fs, dir)
}

func (c fsClient) Open(path string) (io.ReadCloser, error) {
	return c.fs.Open(path)
}

func (c fsClient) Close() error {
	return nil
}
