package restree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddBuildsNestedDirectories(t *testing.T) {
	t.Parallel()

	tree := New()
	tree.Add("assets/img/logo.png", "/src/assets/img/logo.png")
	tree.Add("assets/readme.txt", "/src/assets/readme.txt")

	require.Len(t, tree.Root.Directories, 1)
	assets := tree.Root.Directories[0]
	require.Equal(t, "assets", assets.Name)
	require.Len(t, assets.Files, 1)
	require.Len(t, assets.Directories, 1)
	require.Equal(t, "img", assets.Directories[0].Name)
	require.Len(t, assets.Directories[0].Files, 1)
}

func TestStableIDDisambiguatesCollisions(t *testing.T) {
	t.Parallel()

	tree := New()
	tree.Add("a/logo.png", "/src/a/logo.png")
	tree.Add("b/logo.png", "/src/b/logo.png")

	idA := tree.Root.Directories[0].Files[0].ID
	idB := tree.Root.Directories[1].Files[0].ID
	require.NotEqual(t, idA, idB)
}

func TestFileGUIDIsDeterministic(t *testing.T) {
	t.Parallel()

	treeA := New()
	treeA.Add("assets/logo.png", "/src/logo.png")
	treeB := New()
	treeB.Add("assets/logo.png", "/src/logo.png")

	require.Equal(t, treeA.Root.Directories[0].Files[0].GUID, treeB.Root.Directories[0].Files[0].GUID)
}

func TestFlattenDepthDescending(t *testing.T) {
	t.Parallel()

	tree := New()
	tree.Add("assets/img/logo.png", "/src/logo.png")

	flat := FlattenDepthDescending(tree.Root)
	require.True(t, len(flat) >= 3)
	// Deepest directory first, root last.
	require.Equal(t, "img", flat[0].Name)
	require.Equal(t, "", flat[len(flat)-1].Name)
}
