package resfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// Entry describes a directory entry visited by Find.
type Entry struct {
	// Path is the full address of the entry.
	Path Path
	// Rel is the entry's path relative to the directory Find started from.
	Rel string
	// Depth is 1 for immediate children.
	Depth int
	IsDir bool
}

// ============================================================================
// Selector Interface
// ============================================================================

// Selector filters entries visited by Find.
//
// Example usage:
//
//	// All textures below res:textures
//	paths, err := reg.Find(ctx, resfs.NewPath("res:textures"), resfs.Glob("*.png"), true)
//
//	// Composed selector
//	sel := resfs.And(resfs.DataFiles(reg), resfs.Not(resfs.Match("**/_*")))
type Selector interface {
	// Match returns true if the file should be included in results.
	Match(e *Entry) bool

	// TraverseDescendants returns true if a directory should be descended into.
	// Only called for directories.
	TraverseDescendants(e *Entry) bool
}

// ============================================================================
// Find
// ============================================================================

// Find enumerates the files below dir accepted by selector. Directories are
// descended into when recursive is set and the selector allows it. Results
// are in traversal order.
func (r *Registry) Find(ctx context.Context, dir Path, selector Selector, recursive bool) ([]Path, error) {
	if selector == nil {
		selector = All()
	}

	var results []Path
	if err := r.find(ctx, dir, "", 1, selector, recursive, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Registry) find(ctx context.Context, dir Path, rel string, depth int, selector Selector, recursive bool, results *[]Path) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	it, err := r.List(ctx, dir)
	if err != nil {
		return err
	}
	// Drain before descending so only one directory handle is open at a time.
	names, err := it.Collect()
	if err != nil {
		return err
	}

	for _, name := range names {
		e := &Entry{
			Path:  dir.Join(name),
			Rel:   joinRel(rel, name),
			Depth: depth,
		}
		e.IsDir = r.IsDir(ctx, e.Path)

		if e.IsDir {
			if recursive && selector.TraverseDescendants(e) {
				if err := r.find(ctx, e.Path, e.Rel, depth+1, selector, recursive, results); err != nil {
					return err
				}
			}
			continue
		}
		if selector.Match(e) {
			*results = append(*results, e.Path)
		}
	}
	return nil
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}

// ============================================================================
// Built-in Selectors
// ============================================================================

type allSelector struct{}

func (allSelector) Match(*Entry) bool               { return true }
func (allSelector) TraverseDescendants(*Entry) bool { return true }

// All returns a selector that matches every file.
func All() Selector {
	return allSelector{}
}

type globSelector struct {
	g glob.Glob
}

// Glob matches entry names against a shell pattern: *, ?, [abc], {a,b}.
// An invalid pattern matches nothing; use ParseGlob to report it.
//
//	Glob("*.png")
//	Glob("{block,item}_*.json")
func Glob(pattern string) Selector {
	sel, err := ParseGlob(pattern)
	if err != nil {
		return FuncSelector(func(*Entry) bool { return false })
	}
	return sel
}

// ParseGlob is like Glob but returns an error for an invalid pattern.
func ParseGlob(pattern string) (Selector, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return &globSelector{g: g}, nil
}

func (s *globSelector) Match(e *Entry) bool             { return s.g.Match(e.Path.Name()) }
func (s *globSelector) TraverseDescendants(*Entry) bool { return true }

type matchSelector struct {
	pattern string
}

// Match matches the entry path relative to the Find root against a pattern
// that may contain "**" to span directories.
//
//	Match("blocks/**/*.json")
func Match(pattern string) Selector {
	return &matchSelector{pattern: strings.TrimPrefix(pattern, "/")}
}

// ParseMatch is like Match but returns an error for an invalid pattern.
func ParseMatch(pattern string) (Selector, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid match pattern %q", pattern)
	}
	return &matchSelector{pattern: pattern}, nil
}

func (s *matchSelector) Match(e *Entry) bool {
	ok, err := doublestar.Match(s.pattern, e.Rel)
	return err == nil && ok
}

func (s *matchSelector) TraverseDescendants(*Entry) bool { return true }

type depthSelector struct {
	maxDepth int
}

// Depth limits matches to maxDepth levels. Depth 1 = immediate children only.
func Depth(maxDepth int) Selector {
	return &depthSelector{maxDepth: maxDepth}
}

func (s *depthSelector) Match(e *Entry) bool               { return e.Depth <= s.maxDepth }
func (s *depthSelector) TraverseDescendants(e *Entry) bool { return e.Depth < s.maxDepth }

// Extensions matches files whose extension is one of exts.
func Extensions(exts ...string) Selector {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[ext] = true
	}
	return FuncSelector(func(e *Entry) bool { return set[e.Path.Extension()] })
}

// DataFiles matches files the registry can decode with ReadStructured.
func DataFiles(r *Registry) Selector {
	return FuncSelector(func(e *Entry) bool { return r.IsDataFile(e.Path) })
}

// ============================================================================
// Composable Selectors (And, Or, Not)
// ============================================================================

type andSelector struct {
	selectors []Selector
}

// And matches only if ALL selectors match.
func And(selectors ...Selector) Selector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(e *Entry) bool {
	for _, sel := range s.selectors {
		if !sel.Match(e) {
			return false
		}
	}
	return true
}

func (s *andSelector) TraverseDescendants(e *Entry) bool {
	for _, sel := range s.selectors {
		if !sel.TraverseDescendants(e) {
			return false
		}
	}
	return true
}

type orSelector struct {
	selectors []Selector
}

// Or matches if ANY selector matches.
func Or(selectors ...Selector) Selector {
	return &orSelector{selectors: selectors}
}

func (s *orSelector) Match(e *Entry) bool {
	for _, sel := range s.selectors {
		if sel.Match(e) {
			return true
		}
	}
	return false
}

func (s *orSelector) TraverseDescendants(e *Entry) bool {
	for _, sel := range s.selectors {
		if sel.TraverseDescendants(e) {
			return true
		}
	}
	return false
}

type notSelector struct {
	selector Selector
}

// Not inverts a selector's match result.
func Not(selector Selector) Selector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(e *Entry) bool             { return !s.selector.Match(e) }
func (s *notSelector) TraverseDescendants(*Entry) bool { return true }

// ============================================================================
// FuncSelector
// ============================================================================

type funcSelector struct {
	matchFn func(*Entry) bool
}

// FuncSelector creates a selector from a custom match function. It
// descends into every directory.
func FuncSelector(fn func(*Entry) bool) Selector {
	return &funcSelector{matchFn: fn}
}

func (s *funcSelector) Match(e *Entry) bool             { return s.matchFn(e) }
func (s *funcSelector) TraverseDescendants(*Entry) bool { return true }
