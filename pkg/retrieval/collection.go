package retrieval

import "strings"

// PrincipalID identifies a caller for permission checks.
type PrincipalID string

// Collection is a path-addressed node in the retrieval permission tree (spec.md §3
// "Collection (retrieval)").
type Collection struct {
	Path        string
	ParentPath  string // empty means root
	QueryableBy map[PrincipalID]struct{}
	IsLeaf      bool
	Metadata    map[string]string
}

// UserAuthorization is the caller identity used to filter search results, mirrored
// from spec.md §4.4's UserAuthorization{principalIds, isAdmin}.
type UserAuthorization struct {
	PrincipalIDs []PrincipalID
	IsAdmin      bool
}

// Tree indexes Collections by path for Effective permission resolution.
type Tree struct {
	byPath map[string]*Collection
}

// NewTree builds a Tree from a flat set of Collections.
func NewTree(collections []*Collection) *Tree {
	t := &Tree{byPath: make(map[string]*Collection, len(collections))}
	for _, c := range collections {
		t.byPath[c.Path] = c
	}
	return t
}

// Add inserts or replaces a Collection in the tree.
func (t *Tree) Add(c *Collection) { t.byPath[c.Path] = c }

// Get returns the Collection at path, if present.
func (t *Tree) Get(path string) (*Collection, bool) {
	c, ok := t.byPath[path]
	return c, ok
}

// Effective computes the effective queryable set at path: the recursive
// set-intersection of the node's own QueryableBy with its parent's effective set
// (spec.md §3's Collection invariant). An empty set at any node means "public at
// that node," but intersection still propagates downward: a child can never grant
// a principal absent from its parent's non-empty effective set.
//
// Effective returns (set, isPublic). isPublic is true when the effective set is
// empty, meaning every principal may query it.
func (t *Tree) Effective(path string) (map[PrincipalID]struct{}, bool) {
	c, ok := t.byPath[path]
	if !ok {
		return nil, true // unknown collections are treated as public
	}

	own := c.QueryableBy
	if c.ParentPath == "" {
		return own, len(own) == 0
	}

	parentSet, parentPublic := t.Effective(c.ParentPath)
	if len(own) == 0 {
		return parentSet, parentPublic
	}
	if parentPublic {
		return own, len(own) == 0
	}

	intersection := make(map[PrincipalID]struct{})
	for p := range own {
		if _, ok := parentSet[p]; ok {
			intersection[p] = struct{}{}
		}
	}
	return intersection, len(intersection) == 0
}

// Visible reports whether auth may see a chunk stored under collectionPath, per
// spec.md §4.4's permission filter: isAdmin ∨ (effective(C) = ∅ ∨ effective(C) ∩
// principalIds ≠ ∅).
func (t *Tree) Visible(collectionPath string, auth UserAuthorization) bool {
	if auth.IsAdmin {
		return true
	}
	if collectionPath == "" {
		return true
	}

	effective, isPublic := t.Effective(collectionPath)
	if isPublic {
		return true
	}
	for _, p := range auth.PrincipalIDs {
		if _, ok := effective[p]; ok {
			return true
		}
	}
	return false
}

// ParentPathOf returns the parent path implied by a "/"-separated path, or "" for
// a root-level path.
func ParentPathOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
