package wheel

import (
	"bytes"
	"fmt"
	"net/mail"
)

// Metadata is the subset of a dist-info METADATA file's header block this
// package needs to cross-check against the wheel filename. METADATA is an
// RFC 822-style header block (PEP 566), which net/mail already knows how to
// tokenize; only Name and Version are read here.
type Metadata struct {
	Name    string
	Version string
}

// ParseMetadata reads a dist-info METADATA file's header block and extracts
// its declared name and version.
func ParseMetadata(data []byte) (Metadata, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: parsing METADATA headers: %v", ErrMalformed, err)
	}

	name := msg.Header.Get("Name")
	version := msg.Header.Get("Version")

	if name == "" || version == "" {
		return Metadata{}, fmt.Errorf("%w: METADATA missing Name or Version header", ErrMalformed)
	}

	return Metadata{Name: name, Version: version}, nil
}
