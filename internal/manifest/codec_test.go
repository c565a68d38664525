package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/page"
)

func buildTree(t *testing.T, fsys fstest.MapFS) *page.Tree {
	t.Helper()
	tree, err := page.Build(fsys, ".")
	require.NoError(t, err)
	require.NoError(t, tree.PromoteIndex())
	return tree
}

func TestFromTree(t *testing.T) {
	tree := buildTree(t, fstest.MapFS{
		"guide/index.md": {Data: []byte("# Guide")},
		"guide/intro.md": {Data: []byte("# Intro")},
		"ref/api.md":     {Data: []byte("# API")},
	})

	m := FromTree(tree)
	assert.Equal(t, "", m.ID.Value())
	assert.True(t, m.ID.IsSet())
	assert.Equal(t, ".html", m.Path.Value())
	require.Equal(t, []string{"guide", "ref"}, childIDs(m))

	guide := m.Children[0]
	assert.Equal(t, "guide.html", guide.Path.Value())
	assert.True(t, guide.HasContent.Value())
	require.Len(t, guide.Children, 1)
	intro := guide.Children[0]
	assert.Equal(t, "guide-intro", intro.ID.Value())
	assert.Equal(t, "guide/intro.html", intro.Path.Value())
	assert.Equal(t, "intro", intro.Name.Value())
	assert.NotNil(t, intro.Children)

	ref := m.Children[1]
	assert.False(t, ref.HasContent.Value())
	assert.True(t, ref.HasContent.IsSet())
}

func TestRoundTrip(t *testing.T) {
	tree := buildTree(t, fstest.MapFS{
		"a.md":       {Data: []byte("a")},
		"b/c.md":     {Data: []byte("c")},
		"b/d/e.md":   {Data: []byte("e")},
		"b/index.md": {Data: []byte("b")},
	})

	original := FromTree(tree)
	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	var check func(n Node, r page.Ref)
	check = func(n Node, r page.Ref) {
		assert.Equal(t, tree.ID(r), n.ID.Value())
		assert.Equal(t, tree.LocalURL(r), n.Path.Value())
		assert.Equal(t, tree.Node(r).Name, n.Name.Value())
		assert.Equal(t, tree.Node(r).HasContent(), n.HasContent.Value())
		require.NotNil(t, n.Children)
		require.Len(t, n.Children, len(tree.Node(r).Children))
		for i, c := range tree.Node(r).Children {
			check(n.Children[i], c)
		}
	}
	check(decoded, tree.Root())
}

func TestEncode_LeavesHaveChildren(t *testing.T) {
	data, err := Encode(Node{ID: Some("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","children":[]}`, string(data))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasPath := raw["path"]
	assert.False(t, hasPath, "unset fields are omitted")
}

func TestDecode_NormalizesMissingChildren(t *testing.T) {
	n, err := Decode([]byte(`{"id":"r","children":[{"id":"a"},{"id":"b","children":null}]}`))
	require.NoError(t, err)
	require.Len(t, n.Children, 2)
	assert.NotNil(t, n.Children[0].Children)
	assert.NotNil(t, n.Children[1].Children)
}

func TestDecode_ToleratesComments(t *testing.T) {
	n, err := Decode([]byte(`{
		// merged by hand
		"id": "r",
		"children": [
			{"id": "a", "name": "A",},
		],
	}`))
	require.NoError(t, err)
	assert.Equal(t, "A", n.Children[0].Name.Value())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"id": 3}`))
	assert.Error(t, err)
}

func TestExtraFieldsRoundTrip(t *testing.T) {
	n, err := Decode([]byte(`{"id":"r","weight":2,"tags":["a"],"gone":null}`))
	require.NoError(t, err)
	assert.Len(t, n.Extra, 2)

	data, err := Encode(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"r","children":[],"tags":["a"],"weight":2}`, string(data))
}

func TestWriteReadAndLoadDir(t *testing.T) {
	dir := t.TempDir()
	a := Node{ID: Some("a"), Name: Some("A")}
	require.NoError(t, WriteFile(filepath.Join(dir, FileName("mod-a")), a))
	require.NoError(t, WriteFile(filepath.Join(dir, FileName("mod-b")), Node{ID: Some("b")}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("skip"), 0o644))

	loaded, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"mod-a.json", "mod-b.json"}, SortedKeys(loaded))
	assert.Equal(t, "A", loaded["mod-a.json"].Name.Value())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeManifestDecode))
}

func TestFindAndFirstContent(t *testing.T) {
	n := mustDecode(t, `{"id":"","children":[
		{"id":"cat","hasContent":false,"children":[{"id":"cat-doc","path":"cat/doc.html","hasContent":true}]},
		{"id":"top","path":"top.html","hasContent":true}
	]}`)
	require.NotNil(t, n.Find("top"))
	assert.Nil(t, n.Find("missing"))
	first := n.FirstContent()
	require.NotNil(t, first)
	assert.Equal(t, "cat/doc.html", first.Path.Value())
}
