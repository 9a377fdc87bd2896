package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// buildZip assembles an in-memory zip archive from entry name to content.
func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtract_AllComponents(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string][]byte{
		"parcels.shp": []byte("shp-data"),
		"parcels.shx": []byte("shx-data"),
		"parcels.dbf": []byte("dbf-data"),
		"parcels.prj": []byte("GEOGCS[...]"),
		"parcels.cpg": []byte("UTF-8"),
	})

	cs, cleanup, err := Extract(domain.Archive{Name: "parcels.zip", Bytes: data}, t.TempDir())
	defer cleanup()
	require.NoError(t, err)

	assert.Equal(t, "parcels", cs.BaseName)
	assert.False(t, cs.Degraded)
	assert.FileExists(t, cs.Shape)
	assert.FileExists(t, cs.Index)
	assert.FileExists(t, cs.Attributes)
	assert.FileExists(t, cs.Projection)
	assert.FileExists(t, cs.CodePage)
}

func TestExtract_NestedDirectoryAndMixedCase(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string][]byte{
		"export/Roads.SHP": []byte("shp-data"),
		"export/Roads.SHX": []byte("shx-data"),
		"export/Roads.DBF": []byte("dbf-data"),
	})

	cs, cleanup, err := Extract(domain.Archive{Name: "roads.zip", Bytes: data}, t.TempDir())
	defer cleanup()
	require.NoError(t, err)

	assert.Equal(t, "roads", cs.BaseName)
	assert.FileExists(t, cs.Shape)
	assert.Empty(t, cs.Projection)
}

func TestExtract_MissingIndex(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string][]byte{
		"parcels.shp": []byte("shp-data"),
		"parcels.dbf": []byte("dbf-data"),
	})

	_, cleanup, err := Extract(domain.Archive{Name: "parcels.zip", Bytes: data}, t.TempDir())
	defer cleanup()

	var missing *domain.MissingComponentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "shx", missing.Component)
}

func TestExtract_NoShapefile(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string][]byte{"readme.txt": []byte("nothing here")})

	_, cleanup, err := Extract(domain.Archive{Name: "junk.zip", Bytes: data}, t.TempDir())
	defer cleanup()

	var missing *domain.MissingComponentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "shp", missing.Component)
}

func TestExtract_EmptyAttributeTableIsDegraded(t *testing.T) {
	t.Parallel()

	data := buildZip(t, map[string][]byte{
		"pts.shp": []byte("shp-data"),
		"pts.shx": []byte("shx-data"),
		"pts.dbf": nil, // zero-length
	})

	cs, cleanup, err := Extract(domain.Archive{Name: "pts.zip", Bytes: data}, t.TempDir())
	defer cleanup()
	require.NoError(t, err)

	assert.True(t, cs.Degraded)
	assert.Empty(t, cs.Attributes)
}

func TestExtract_NotAZip(t *testing.T) {
	t.Parallel()

	_, cleanup, err := Extract(domain.Archive{Name: "x.zip", Bytes: []byte("plain text")}, t.TempDir())
	defer cleanup()

	var unreadable *domain.UnreadableShapefileError
	require.ErrorAs(t, err, &unreadable)
}

func TestExtract_TraversalEntriesIgnored(t *testing.T) {
	t.Parallel()

	scratch := t.TempDir()
	data := buildZip(t, map[string][]byte{
		"../../evil.shp": []byte("escape attempt"),
		"a/b/c/deep.shp": []byte("too deep"),
		"ok.shp":         []byte("shp-data"),
		"ok.shx":         []byte("shx-data"),
	})

	cs, cleanup, err := Extract(domain.Archive{Name: "mixed.zip", Bytes: data}, scratch)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, "ok", cs.BaseName)

	_, err = os.Stat(filepath.Join(filepath.Dir(scratch), "evil.shp"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_CleanupRemovesScratch(t *testing.T) {
	t.Parallel()

	scratch := t.TempDir()
	data := buildZip(t, map[string][]byte{
		"a.shp": []byte("shp-data"),
		"a.shx": []byte("shx-data"),
	})

	cs, cleanup, err := Extract(domain.Archive{Name: "a.zip", Bytes: data}, scratch)
	require.NoError(t, err)
	cleanup()

	_, err = os.Stat(cs.Shape)
	assert.True(t, os.IsNotExist(err))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	scratch := t.TempDir()
	old := filepath.Join(scratch, "old-job")
	fresh := filepath.Join(scratch, "fresh-job")
	require.NoError(t, os.Mkdir(old, 0o750))
	require.NoError(t, os.Mkdir(fresh, 0o750))

	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := Sweep(scratch, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
}

func TestSweep_MissingRootIsNoop(t *testing.T) {
	t.Parallel()

	removed, err := Sweep(filepath.Join(t.TempDir(), "nope"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
