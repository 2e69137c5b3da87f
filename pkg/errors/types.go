package errors

import (
	"fmt"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ParseError is returned when user input such as a date or an enumeration
// name can't be parsed. It's raised before any remote I/O happens.
type ParseError struct {
	Input    string
	Expected string
}

func (err ParseError) Error() string {
	return fmt.Sprintf("can't parse %q. Expecting %s", err.Input, err.Expected)
}

// TemplateError is returned when the remote directory layout can't be
// detected.
type TemplateError struct {
	Reason string
}

func (err TemplateError) Error() string {
	return fmt.Sprintf("detect directory structure: %s", err.Reason)
}

// HeaderMismatchError is returned when concatenated files don't share the
// same header line.
type HeaderMismatchError struct {
	Path string
	Last string
	This string
}

func (err HeaderMismatchError) Error() string {
	return fmt.Sprintf("header mismatch in %s.\nLast: %q\nThis: %q",
		err.Path, err.Last, err.This)
}

// ArchiveShapeError is returned when a zip archive doesn't contain exactly
// one entry.
type ArchiveShapeError struct {
	Path    string
	Entries int
}

func (err ArchiveShapeError) Error() string {
	return fmt.Sprintf("must be exactly 1 entry in zip archive %s, found %d",
		err.Path, err.Entries)
}

// AuthError is returned when the private key can't be loaded, or when the
// server rejects it.
type AuthError struct {
	Cause error
}

func (err AuthError) Error() string {
	return fmt.Sprintf("authentication setup failed: %s", err.Cause)
}

func (err AuthError) Unwrap() error {
	return err.Cause
}
