// Package launchers embeds the native Windows launcher stubs used to start
// entry-point scripts. Absence of a blob for a given (arch, kind) pair is a
// compile-time guard: only x86_64 is built in, so requests for any other
// architecture are rejected at runtime by the caller before this package is
// ever consulted for them.
package launchers

import _ "embed"

// ConsoleAMD64 and GUIAMD64 are the x86_64 launcher stub bytes, selected by
// entry-point kind. The caller appends the Python payload (shebang +
// prelude) as the trailing bytes of the final executable; the launcher
// reads its own tail at startup to discover the script it should run.
//
// These are placeholder stand-ins for the real pypa/distlib-derived
// launcher stubs, which are prebuilt binary artefacts fetched at build time
// upstream rather than compiled from source available in this repository.
// See DESIGN.md for the rationale; swapping these two files for the real
// stubs is the only remaining step to produce working native launchers.
var (
	//go:embed console_amd64.bin
	ConsoleAMD64 []byte

	//go:embed gui_amd64.bin
	GUIAMD64 []byte
)
