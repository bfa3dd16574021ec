package uninstaller

import "errors"

// ErrMissingRecord is returned when a dist-info directory has no RECORD
// file; without it there is no reliable list of what to remove, so
// uninstallation refuses rather than guessing from a directory walk.
var ErrMissingRecord = errors.New("RECORD file is missing")
