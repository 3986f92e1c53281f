package retrieval

import "testing"

// buildS6Tree reproduces scenario S6: /docs/secret queryableBy={7}, child
// /docs/secret/public queryableBy=∅.
func buildS6Tree() *Tree {
	return NewTree([]*Collection{
		{
			Path:        "/docs/secret",
			ParentPath:  "",
			QueryableBy: map[PrincipalID]struct{}{"7": {}},
		},
		{
			Path:        "/docs/secret/public",
			ParentPath:  "/docs/secret",
			QueryableBy: map[PrincipalID]struct{}{},
			IsLeaf:      true,
		},
	})
}

func TestEffective_ChildInheritsParentRestriction(t *testing.T) {
	tree := buildS6Tree()

	effective, isPublic := tree.Effective("/docs/secret/public")
	if isPublic {
		t.Fatal("child with empty own set should inherit the parent's restriction, not become public")
	}
	if _, ok := effective["7"]; !ok {
		t.Errorf("expected effective set to contain principal 7, got %v", effective)
	}
	if len(effective) != 1 {
		t.Errorf("expected effective set of size 1, got %v", effective)
	}
}

func TestVisible_S6(t *testing.T) {
	tree := buildS6Tree()

	principal9 := UserAuthorization{PrincipalIDs: []PrincipalID{"9"}}
	principal7 := UserAuthorization{PrincipalIDs: []PrincipalID{"7"}}

	if tree.Visible("/docs/secret", principal9) {
		t.Error("principal 9 should not see /docs/secret")
	}
	if tree.Visible("/docs/secret/public", principal9) {
		t.Error("principal 9 should not see /docs/secret/public")
	}
	if !tree.Visible("/docs/secret", principal7) {
		t.Error("principal 7 should see /docs/secret")
	}
	if !tree.Visible("/docs/secret/public", principal7) {
		t.Error("principal 7 should see /docs/secret/public")
	}
}

func TestVisible_AdminBypassesAllRestrictions(t *testing.T) {
	tree := buildS6Tree()
	admin := UserAuthorization{IsAdmin: true}

	if !tree.Visible("/docs/secret", admin) {
		t.Error("admin should see every collection regardless of QueryableBy")
	}
}

func TestVisible_UnknownCollectionIsPublic(t *testing.T) {
	tree := buildS6Tree()
	anyone := UserAuthorization{PrincipalIDs: []PrincipalID{"42"}}

	if !tree.Visible("/does/not/exist", anyone) {
		t.Error("an unknown collection should be treated as public")
	}
}

func TestVisible_EmptyPathIsAlwaysVisible(t *testing.T) {
	tree := buildS6Tree()
	if !tree.Visible("", UserAuthorization{}) {
		t.Error("an empty collection path should always be visible")
	}
}

func TestEffective_RootWithEmptyOwnSetIsPublic(t *testing.T) {
	tree := NewTree([]*Collection{
		{Path: "/open", QueryableBy: map[PrincipalID]struct{}{}},
	})
	_, isPublic := tree.Effective("/open")
	if !isPublic {
		t.Error("a root collection with an empty QueryableBy should be public")
	}
}

func TestEffective_IntersectionNarrowsAcrossGenerations(t *testing.T) {
	tree := NewTree([]*Collection{
		{Path: "/a", QueryableBy: map[PrincipalID]struct{}{"1": {}, "2": {}}},
		{Path: "/a/b", ParentPath: "/a", QueryableBy: map[PrincipalID]struct{}{"2": {}, "3": {}}},
	})

	effective, isPublic := tree.Effective("/a/b")
	if isPublic {
		t.Fatal("expected a non-public effective set")
	}
	if len(effective) != 1 {
		t.Fatalf("expected exactly principal 2 to survive the intersection, got %v", effective)
	}
	if _, ok := effective["2"]; !ok {
		t.Errorf("expected principal 2 in the intersection, got %v", effective)
	}
}

func TestParentPathOf(t *testing.T) {
	cases := map[string]string{
		"/docs/secret/public": "/docs/secret",
		"/docs":               "",
		"":                    "",
	}
	for path, want := range cases {
		if got := ParentPathOf(path); got != want {
			t.Errorf("ParentPathOf(%q) = %q, want %q", path, got, want)
		}
	}
}
