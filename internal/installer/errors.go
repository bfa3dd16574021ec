package installer

import (
	"errors"
	"fmt"
)

// IncompatibleWheelError is returned when none of a wheel's compatibility
// tags intersect the target environment's supported tag set.
type IncompatibleWheelError struct {
	OS   string
	Arch string
}

func (e *IncompatibleWheelError) Error() string {
	return fmt.Sprintf("wheel is not compatible with %s/%s", e.OS, e.Arch)
}

// ErrInvalidWheel covers structural violations in a wheel archive: an
// unreadable METADATA or METADATA version, a missing or malformed RECORD,
// or a dist-info locator failure other than the specific
// MismatchedName/MismatchedVersion cases below. The WHEEL file is not read,
// so its contents are not validated.
var ErrInvalidWheel = errors.New("invalid wheel")

// RecordMismatchError is returned when a placed file's bytes do not match
// the hash or size declared for it in RECORD.
type RecordMismatchError struct {
	Path      string
	WantHash  string
	GotHash   string
	WantSize  uint64
	GotSize   uint64
	SizeWrong bool
	HashWrong bool
}

func (e *RecordMismatchError) Error() string {
	switch {
	case e.HashWrong && e.SizeWrong:
		return fmt.Sprintf("%s: hash and size mismatch (want %s/%d, got %s/%d)", e.Path, e.WantHash, e.WantSize, e.GotHash, e.GotSize)
	case e.HashWrong:
		return fmt.Sprintf("%s: hash mismatch (want %s, got %s)", e.Path, e.WantHash, e.GotHash)
	default:
		return fmt.Sprintf("%s: size mismatch (want %d, got %d)", e.Path, e.WantSize, e.GotSize)
	}
}

// MismatchedNameError is returned when the dist-info's declared package
// name disagrees with the wheel filename's name.
type MismatchedNameError struct {
	FromFilename string
	FromMetadata string
}

func (e *MismatchedNameError) Error() string {
	return fmt.Sprintf("filename declares name %q but metadata declares %q", e.FromFilename, e.FromMetadata)
}

// MismatchedVersionError is returned when the dist-info's declared version
// disagrees with the wheel filename's version.
type MismatchedVersionError struct {
	FromFilename string
	FromMetadata string
}

func (e *MismatchedVersionError) Error() string {
	return fmt.Sprintf("filename declares version %q but metadata declares %q", e.FromFilename, e.FromMetadata)
}

// ErrBrokenVenv is returned when the target Layout's directories do not
// exist or are not writable.
var ErrBrokenVenv = errors.New("target environment is missing or not writable")
