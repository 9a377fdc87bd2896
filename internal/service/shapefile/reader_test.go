package shapefile

import (
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// writePointFixture writes a point shapefile with a string, an integer and a
// float attribute, returning its component set.
func writePointFixture(t *testing.T, points []shp.Point) *domain.ComponentSet {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pts.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 25),
		shp.NumberField("COUNT", 10),
		shp.FloatField("SCORE", 10, 3),
	}))
	for i := range points {
		w.Write(&points[i])
		require.NoError(t, w.WriteAttribute(i, 0, "site"))
		require.NoError(t, w.WriteAttribute(i, 1, i+1))
		require.NoError(t, w.WriteAttribute(i, 2, float64(i)+0.5))
	}
	w.Close()

	return &domain.ComponentSet{
		Shape:      path,
		Index:      filepath.Join(dir, "pts.shx"),
		Attributes: filepath.Join(dir, "pts.dbf"),
		BaseName:   "pts",
	}
}

func TestRead_PointsWithAttributes(t *testing.T) {
	t.Parallel()

	cs := writePointFixture(t, []shp.Point{{X: 10, Y: 20}, {X: 30, Y: 40}, {X: 50, Y: 60}})

	ds, err := Read(cs)
	require.NoError(t, err)

	assert.Equal(t, "pts", ds.Name)
	assert.Equal(t, domain.GeometryPoint, ds.Family)
	assert.Equal(t, []string{"NAME", "COUNT", "SCORE"}, ds.FieldNames)
	require.Len(t, ds.Records, 3)

	assert.Equal(t, orb.Point{10, 20}, ds.Records[0].Geometry)
	assert.Equal(t, "site", ds.Records[0].Fields["NAME"])
	assert.Equal(t, int64(1), ds.Records[0].Fields["COUNT"])
	assert.InDelta(t, 0.5, ds.Records[0].Fields["SCORE"], 1e-9)

	// Every record carries the full field set.
	for _, rec := range ds.Records {
		assert.Len(t, rec.Fields, 3)
	}
}

func TestRead_DegradedSynthesizesIdentity(t *testing.T) {
	t.Parallel()

	cs := writePointFixture(t, []shp.Point{{X: 1, Y: 2}, {X: 3, Y: 4}})
	cs.Attributes = ""
	cs.Degraded = true

	ds, err := Read(cs)
	require.NoError(t, err)

	assert.Equal(t, []string{domain.SyntheticIDField}, ds.FieldNames)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, int64(0), ds.Records[0].Fields[domain.SyntheticIDField])
	assert.Equal(t, int64(1), ds.Records[1].Fields[domain.SyntheticIDField])
}

func TestRead_Polyline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "roads.shp")
	w, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("ROAD", 10)}))
	line := shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}}})
	w.Write(line)
	require.NoError(t, w.WriteAttribute(0, 0, "a1"))
	w.Close()

	ds, err := Read(&domain.ComponentSet{
		Shape:      path,
		Index:      filepath.Join(dir, "roads.shx"),
		Attributes: filepath.Join(dir, "roads.dbf"),
		BaseName:   "roads",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.GeometryLine, ds.Family)
	require.Len(t, ds.Records, 1)
	ls, ok := ds.Records[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, ls, 3)
}

func TestRead_PolygonRingClosed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "zones.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("ZONE", 10)}))
	// Open ring: first point not repeated at the end.
	ring := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}}))
	w.Write(&ring)
	require.NoError(t, w.WriteAttribute(0, 0, "z1"))
	w.Close()

	ds, err := Read(&domain.ComponentSet{
		Shape:      path,
		Index:      filepath.Join(dir, "zones.shx"),
		Attributes: filepath.Join(dir, "zones.dbf"),
		BaseName:   "zones",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.GeometryPolygon, ds.Family)
	p, ok := ds.Records[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, p, 1)
	assert.Equal(t, p[0][0], p[0][len(p[0])-1], "ring must be closed")
}

func TestRead_EmptyDataset(t *testing.T) {
	t.Parallel()

	cs := writePointFixture(t, nil)

	_, err := Read(cs)
	var empty *domain.EmptyDatasetError
	require.ErrorAs(t, err, &empty)
}

func TestRead_Garbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.shp")
	require.NoError(t, os.WriteFile(path, []byte("this is not a shapefile"), 0o640))

	_, err := Read(&domain.ComponentSet{Shape: path, Index: path, BaseName: "bad"})
	var unreadable *domain.UnreadableShapefileError
	require.ErrorAs(t, err, &unreadable)
}

func TestConvertAttribute(t *testing.T) {
	t.Parallel()

	intField := shp.NumberField("N", 10)
	floatField := shp.FloatField("F", 10, 2)
	strField := shp.StringField("S", 20)

	assert.Equal(t, int64(42), convertAttribute(intField, "42"))
	assert.Nil(t, convertAttribute(intField, "   "))
	assert.InDelta(t, 3.14, convertAttribute(floatField, "3.14"), 1e-9)
	assert.Equal(t, "hello", convertAttribute(strField, " hello \x00"))
	assert.Nil(t, convertAttribute(strField, ""))
}
