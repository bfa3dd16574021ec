// Package wheel parses wheel filenames and locates the dist-info directory
// inside a wheel archive or an installed tree.
package wheel

import (
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/bilusteknoloji/pipg/internal/resolver"
)

// Tag is a single PEP 425 compatibility tag triple.
type Tag struct {
	Python   string // e.g. "cp312", "py3"
	ABI      string // e.g. "cp312", "none"
	Platform string // e.g. "manylinux_2_17_x86_64", "any"
}

// Filename is a parsed wheel filename:
//
//	{name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Filename struct {
	Name    string // PEP 503 normalized
	Version pep440.Version
	Build   string // optional build tag, empty if absent
	Tags    []Tag  // cartesian product of the dotted python/abi/platform fields
}

// Parse decomposes a wheel filename into its structured components.
// Rejects anything that doesn't have 5 or 6 dash-separated components.
func Parse(filename string) (Filename, error) {
	base := strings.TrimSuffix(filename, ".whl")
	if base == filename {
		return Filename{}, fmt.Errorf("%w: %q: missing .whl suffix", ErrMalformed, filename)
	}

	parts := strings.Split(base, "-")
	if len(parts) != 5 && len(parts) != 6 {
		return Filename{}, fmt.Errorf("%w: %q: expected 5 or 6 dash-separated components, got %d", ErrMalformed, filename, len(parts))
	}

	name := resolver.NormalizeName(parts[0])

	version, err := pep440.Parse(parts[1])
	if err != nil {
		return Filename{}, fmt.Errorf("%w: %q: invalid version %q: %v", ErrMalformed, filename, parts[1], err)
	}

	build := ""

	pythonIdx := 2
	if len(parts) == 6 {
		build = parts[2]
		pythonIdx = 3
	}

	tags := expandTags(parts[pythonIdx], parts[pythonIdx+1], parts[pythonIdx+2])

	return Filename{
		Name:    name,
		Version: version,
		Build:   build,
		Tags:    tags,
	}, nil
}

// expandTags expands the dotted python/abi/platform fields into the
// cartesian product of compatibility tag triples.
func expandTags(pythonField, abiField, platField string) []Tag {
	pythons := strings.Split(pythonField, ".")
	abis := strings.Split(abiField, ".")
	plats := strings.Split(platField, ".")

	tags := make([]Tag, 0, len(pythons)*len(abis)*len(plats))

	for _, py := range pythons {
		for _, abi := range abis {
			for _, plat := range plats {
				tags = append(tags, Tag{Python: py, ABI: abi, Platform: plat})
			}
		}
	}

	return tags
}

// CompatibleWith reports whether any of the filename's tags intersect the
// target environment's supported tag set.
func (f Filename) CompatibleWith(supported []Tag) bool {
	for _, want := range f.Tags {
		for _, have := range supported {
			if want == have {
				return true
			}
		}
	}

	return false
}

// String re-renders the filename. Name normalization means this may not be
// byte-identical to the original string, but is equal modulo normalization.
func (f Filename) String() string {
	var b strings.Builder

	b.WriteString(f.Name)
	b.WriteByte('-')
	b.WriteString(f.Version.String())

	if f.Build != "" {
		b.WriteByte('-')
		b.WriteString(f.Build)
	}

	pythons := uniqueField(f.Tags, func(t Tag) string { return t.Python })
	abis := uniqueField(f.Tags, func(t Tag) string { return t.ABI })
	plats := uniqueField(f.Tags, func(t Tag) string { return t.Platform })

	b.WriteByte('-')
	b.WriteString(strings.Join(pythons, "."))
	b.WriteByte('-')
	b.WriteString(strings.Join(abis, "."))
	b.WriteByte('-')
	b.WriteString(strings.Join(plats, "."))
	b.WriteString(".whl")

	return b.String()
}

// uniqueField extracts an ordered, deduplicated list of one field across tags.
func uniqueField(tags []Tag, get func(Tag) string) []string {
	seen := make(map[string]bool)

	var out []string

	for _, t := range tags {
		v := get(t)
		if !seen[v] {
			seen[v] = true

			out = append(out, v)
		}
	}

	return out
}
