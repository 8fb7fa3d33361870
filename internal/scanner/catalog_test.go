package scanner

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_SortsAndDropsNested(t *testing.T) {
	cat := NewCatalog([]string{"/h"}, []Artifact{
		{Path: "/h/b/node_modules", Category: "javascript.directories", Size: 10},
		{Path: "/h/.gradle/caches", Category: "java.caches", Size: 5},
		{Path: "/h/.gradle", Category: "java.directories", Size: 50},
		{Path: "/h/a/target", Category: "rust.directories", Size: 30},
		{Path: "/h/b/node_modules", Category: "javascript.directories", Size: 10},
		{Path: "/h/.gradlex", Category: "x", Size: 1},
	}, nil)

	assert.Equal(t, []string{"/h/.gradle", "/h/.gradlex", "/h/a/target", "/h/b/node_modules"}, cat.Paths())
	assert.Equal(t, int64(91), cat.TotalSize())
	assert.NotContains(t, cat.Totals, "java.caches")
	assert.Equal(t, Total{Count: 1, Bytes: 50}, cat.Totals["java.directories"])

	// Siblings that sort between a directory and its children.
	cat = NewCatalog(nil, []Artifact{
		{Path: "/r/a/b", Category: "x", Size: 5},
		{Path: "/r/a.swp", Category: "x", Size: 3},
		{Path: "/r/a-old", Category: "x", Size: 2},
		{Path: "/r/a", Category: "x", Size: 10},
	}, nil)
	assert.Equal(t, []string{"/r/a", "/r/a-old", "/r/a.swp"}, cat.Paths())
	assert.Equal(t, Total{Count: 3, Bytes: 15}, cat.Totals["x"])
}

func TestCatalog_TopAndCategories(t *testing.T) {
	cat := NewCatalog(nil, []Artifact{
		{Path: "/h/a", Category: "x", Size: 10},
		{Path: "/h/b", Category: "y", Size: 30},
		{Path: "/h/c", Category: "x", Size: 25},
		{Path: "/h/d", Category: "z", Size: 30},
	}, nil)

	top := cat.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, "/h/b", top[0].Path)
	assert.Equal(t, "/h/d", top[1].Path)
	assert.Equal(t, "/h/c", top[2].Path)
	assert.Len(t, cat.Top(10), 4)

	assert.Equal(t, []string{"x", "y", "z"}, cat.Categories())
	assert.Len(t, cat.ByCategory("x"), 2)
}

func TestMerge(t *testing.T) {
	a := NewCatalog([]string{"/h/w"}, []Artifact{{Path: "/h/w/node_modules", Category: "c", Size: 1}}, []Warning{{Path: "/h/w/x", Kind: Unreadable}})
	b := NewCatalog([]string{"/h"}, []Artifact{{Path: "/h/w/node_modules", Category: "c", Size: 1}, {Path: "/h/z/target", Category: "d", Size: 2}}, nil)

	m := Merge(a, nil, b)
	assert.Equal(t, []string{"/h", "/h/w"}, m.Roots)
	assert.Equal(t, []string{"/h/w/node_modules", "/h/z/target"}, m.Paths())
	assert.Len(t, m.Warnings, 1)
}

func TestWarning_JSON(t *testing.T) {
	w := Warning{Path: "/h/x", Kind: PermissionDenied, Err: errors.New("denied")}
	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/h/x","kind":"permission_denied","error":"denied"}`, string(data))
	assert.Equal(t, "permission_denied: /h/x: denied", w.Error())
}

func TestKnownCaches(t *testing.T) {
	locs := KnownCaches("/home/u")
	require.NotEmpty(t, locs)
	assert.Equal(t, "/home/u/.npm/_cacache", locs[0].Path)
	cats := CacheCategories(locs)
	assert.Contains(t, cats, "go.caches")
	assert.Contains(t, cats, "rust.caches")
	assert.Len(t, cats, len(uniq(cats)))
}

func uniq(s []string) map[string]bool {
	m := make(map[string]bool)
	for _, v := range s {
		m[v] = true
	}
	return m
}
