package resfs

import (
	"strings"
)

// Path is an address of the form "entry_point:relative/path".
//
// Backslashes are replaced with forward slashes when the Path is built and the
// offset of the first colon is recorded once. Only the first colon separates the
// entry point; later colons belong to the path part. A Path without a colon has
// no entry point but is still usable as a bare relative string.
//
// Path is a value type. Two paths are equal when their normalized strings are.
// The zero value is the empty path.
type Path struct {
	str string
	sep int // offset of the first colon plus one; 0 when there is none
}

// NewPath parses s. Parsing never fails.
func NewPath(s string) Path {
	s = strings.ReplaceAll(s, `\`, "/")
	return Path{str: s, sep: strings.IndexByte(s, ':') + 1}
}

// String returns the normalized address.
func (p Path) String() string {
	return p.str
}

// IsEmpty reports whether the path holds no address at all.
func (p Path) IsEmpty() bool {
	return p.str == ""
}

// IsValid reports whether the path carries an entry point separator.
func (p Path) IsValid() bool {
	return p.sep > 0
}

// EntryPoint returns the mount name before the first colon, or "" when the
// path has none.
func (p Path) EntryPoint() string {
	if p.sep == 0 {
		return ""
	}
	return p.str[:p.sep-1]
}

// PathPart returns everything after the first colon, or the whole string when
// there is no colon. Colons directly following the separator are dropped, so
// the result never starts with one.
func (p Path) PathPart() string {
	if p.sep == 0 {
		return p.str
	}
	return strings.TrimLeft(p.str[p.sep:], ":")
}

// Name returns the last segment of the path part.
func (p Path) Name() string {
	part := p.PathPart()
	if i := strings.LastIndexByte(part, '/'); i >= 0 {
		return part[i+1:]
	}
	return part
}

// Stem returns Name without its extension.
func (p Path) Stem() string {
	name := p.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Extension returns the suffix of Name starting at its last dot, including the
// dot, or "" when Name has no dot.
func (p Path) Extension() string {
	name := p.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// Parent returns the path with its last segment removed. The entry point is
// preserved: the parent of "res:file.txt" is "res:". The parent of a bare
// segment without entry point is the empty path.
func (p Path) Parent() Path {
	part := p.PathPart()
	i := strings.LastIndexByte(part, '/')
	if i < 0 {
		if p.sep == 0 {
			return Path{}
		}
		return NewPath(p.str[:p.sep])
	}
	if p.sep == 0 {
		return NewPath(part[:i])
	}
	return NewPath(p.str[:p.sep] + part[:i])
}

// Join appends child as a new segment. No separator is inserted when the path
// is empty or ends with the entry point colon.
func (p Path) Join(child string) Path {
	if p.str == "" || strings.HasSuffix(p.str, ":") {
		return NewPath(p.str + child)
	}
	return NewPath(p.str + "/" + child)
}

// JoinPath appends the path part of child.
func (p Path) JoinPath(child Path) Path {
	return p.Join(child.PathPart())
}

// WithEntryPoint returns the same path part under a different entry point.
func (p Path) WithEntryPoint(entryPoint string) Path {
	return NewPath(entryPoint + ":" + p.PathPart())
}

// Compare orders paths by their normalized strings.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.str, other.str)
}

// Less reports whether p sorts before other.
func (p Path) Less(other Path) bool {
	return p.str < other.str
}

// IsNative reports whether the string looks like a native absolute location
// rather than an address: a drive letter followed by ":/" ("C:/Users/x"), or a
// colon-less string starting with "/".
func (p Path) IsNative() bool {
	if p.sep == 0 {
		return strings.HasPrefix(p.str, "/")
	}
	if p.sep != 2 || !isASCIILetter(p.str[0]) {
		return false
	}
	return strings.HasPrefix(p.str[2:], "/")
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
