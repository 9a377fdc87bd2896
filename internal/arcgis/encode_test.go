package arcgis

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

func TestGeoJSONCollection_ExcludesTransportColumn(t *testing.T) {
	t.Parallel()

	ds := testDataset()
	ds.FieldNames = append(ds.FieldNames, domain.WKTField)
	for i := range ds.Records {
		ds.Records[i].Fields[domain.WKTField] = "POINT(0 0)"
	}

	raw, err := geoJSONCollection(ds)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Contains(t, fc.Features[0].Properties, "name")
	assert.NotContains(t, fc.Features[0].Properties, domain.WKTField)
}

func TestCSVTable(t *testing.T) {
	t.Parallel()

	ds := testDataset()
	ds.FieldNames = append(ds.FieldNames, domain.WKTField)
	ds.Records[0].Fields[domain.WKTField] = "POINT(1 2)"
	ds.Records[1].Fields[domain.WKTField] = "POINT(3 4)"

	raw, err := csvTable(ds)
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "name,"+domain.WKTField)
	assert.Contains(t, out, "POINT(1 2)")
	assert.Contains(t, out, "POINT(3 4)")
}

func TestCSVTable_RequiresWKTColumn(t *testing.T) {
	t.Parallel()

	_, err := csvTable(testDataset())
	assert.True(t, domain.Recoverable(err))
}

func TestEsriGeometry(t *testing.T) {
	t.Parallel()

	point, err := esriGeometry(orb.Point{10, 20})
	require.NoError(t, err)
	assert.Equal(t, 10.0, point["x"])
	assert.Equal(t, 20.0, point["y"])

	line, err := esriGeometry(orb.LineString{{0, 0}, {1, 1}})
	require.NoError(t, err)
	assert.Contains(t, line, "paths")

	poly, err := esriGeometry(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	require.NoError(t, err)
	assert.Contains(t, poly, "rings")

	// MultiPolygon flattens to one ring list.
	mp, err := esriGeometry(orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
	})
	require.NoError(t, err)
	assert.Len(t, mp["rings"], 2)
}

func TestEsriFeatures(t *testing.T) {
	t.Parallel()

	raw, err := esriFeatures(testDataset(), 0, 2)
	require.NoError(t, err)

	var features []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &features))
	require.Len(t, features, 2)
	assert.Contains(t, features[0], "geometry")
	assert.Equal(t, "a", features[0]["attributes"].(map[string]interface{})["name"])
}

func TestGeometryTypeMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "esriGeometryPoint", esriGeometryType(domain.GeometryPoint))
	assert.Equal(t, "esriGeometryPolyline", esriGeometryType(domain.GeometryLine))
	assert.Equal(t, "esriGeometryPolygon", esriGeometryType(domain.GeometryPolygon))

	assert.Equal(t, domain.GeometryPoint, familyFromEsri("esriGeometryMultipoint"))
	assert.Equal(t, domain.GeometryLine, familyFromEsri("esriGeometryPolyline"))
	assert.Equal(t, domain.GeometryPolygon, familyFromEsri("esriGeometryPolygon"))
	assert.Equal(t, domain.GeometryFamily(""), familyFromEsri("weird"))
}
