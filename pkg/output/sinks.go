package output

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/rmasync/pkg/cache"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/remote"
)

// RawConcat writes the body of every file to a single stream. The header
// line is written once, and every later file must have the same header.
type RawConcat struct {
	opener Opener
	out    io.Writer
	closer io.Closer
	header *string
}

// NewRawConcat creates a RawConcat that writes to out.
func NewRawConcat(opener Opener, out io.Writer) *RawConcat {
	return &RawConcat{opener: opener, out: out}
}

func newFileConcat(opener Opener, out io.WriteCloser) *RawConcat {
	return &RawConcat{opener: opener, out: out, closer: out}
}

// CopyFile appends the body of f to the output.
func (s *RawConcat) CopyFile(f remote.File) (Result, error) {
	var written int64
	err := openDecompressed(s.opener, f, func(r io.Reader, _ string) error {
		in := bufio.NewReader(r)
		header, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.WithContext(err, "read header")
		}
		header = strings.TrimSuffix(header, "\n")

		// Empty files have nothing to contribute, and mustn't fix the
		// header for the files that follow.
		if header == "" {
			log.WithField("path", f.Path).Debug("Skipping empty file")
			return nil
		}

		if s.header == nil {
			n, err := io.WriteString(s.out, header+"\n")
			written += int64(n)
			if err != nil {
				return errors.WithContext(err, "write header")
			}
			s.header = &header
		} else if *s.header != header {
			return errors.HeaderMismatchError{Path: f.Path, Last: *s.header, This: header}
		}

		n, err := io.Copy(s.out, in)
		written += n
		return errors.WithContext(err, "copy")
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Files: 1, Bytes: written}, nil
}

// Empty returns the zero Result.
func (s *RawConcat) Empty() Result {
	return Result{}
}

// Close closes the output file. Standard output is left open.
func (s *RawConcat) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *RawConcat) sink() {}

// DirectoryCopy copies every file into a directory under its own name.
// Archives are unwrapped, so the local name is the name of the archive
// entry.
type DirectoryCopy struct {
	opener Opener
	dir    string
}

// NewDirectoryCopy creates a DirectoryCopy that writes into dir.
func NewDirectoryCopy(opener Opener, dir string) *DirectoryCopy {
	return &DirectoryCopy{opener: opener, dir: dir}
}

// CopyFile copies f into the output directory.
func (s *DirectoryCopy) CopyFile(f remote.File) (Result, error) {
	var result Result
	err := openDecompressed(s.opener, f, func(r io.Reader, name string) error {
		dst := filepath.Join(s.dir, path.Base(name))
		out, err := fs.Create(dst)
		if err != nil {
			return errors.WithContext(err, "create")
		}

		n, err := io.Copy(out, r)
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return errors.WithContext(err, "copy")
		}

		result = Result{Files: 1, Bytes: n, Written: []string{dst}}
		return nil
	})
	return result, err
}

// Empty returns the zero Result.
func (s *DirectoryCopy) Empty() Result {
	return Result{}
}

// Close is a no-op. Each file is closed after it's copied.
func (s *DirectoryCopy) Close() error {
	return nil
}

func (s *DirectoryCopy) sink() {}

// Listing reports matched files without transferring them.
type Listing struct {
	out io.Writer
}

// NewListing creates a Listing that prints to out.
func NewListing(out io.Writer) *Listing {
	return &Listing{out: out}
}

// CopyFile prints the attributes of f.
func (s *Listing) CopyFile(f remote.File) (Result, error) {
	_, err := fmt.Fprintf(s.out, "%s %12d %s %s (%s)\n",
		f.Mode, f.Size, f.ModTime.UTC().Format("2006-01-02 15:04"), f.Path, f.Period)
	if err != nil {
		return Result{}, errors.WithContext(err, "print")
	}
	return Result{Files: 1, Listing: []remote.File{f}}, nil
}

// Empty returns the zero Result.
func (s *Listing) Empty() Result {
	return Result{}
}

// Close is a no-op.
func (s *Listing) Close() error {
	return nil
}

func (s *Listing) sink() {}

func openDecompressed(opener Opener, f remote.File, fn func(io.Reader, string) error) error {
	log.WithField("path", f.Path).Debug("Reading file")
	in, err := opener.Open(f.Path)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer in.Close()

	return cache.Decompress(in, f.Name(), fn)
}
