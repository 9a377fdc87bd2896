package arcgis

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// geoJSONCollection renders the dataset as a GeoJSON FeatureCollection for
// the direct spatial transport. The transport-only WKT column is excluded —
// it exists for the flat-table strategy.
func geoJSONCollection(ds *domain.FeatureDataset) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, rec := range ds.Records {
		f := geojson.NewFeature(rec.Geometry)
		for _, name := range ds.AttributeFields() {
			f.Properties[name] = rec.Fields[name]
		}
		fc.Append(f)
	}
	raw, err := json.Marshal(fc)
	if err != nil {
		return nil, domain.ErrTransport("encode feature collection: %v", err)
	}
	return raw, nil
}

// csvTable renders the WKT-augmented flat table for the CSV-mediated
// transport. The native geometry column is replaced by the wkt_geometry
// field the normalizer derived.
func csvTable(ds *domain.FeatureDataset) ([]byte, error) {
	if !ds.HasField(domain.WKTField) {
		return nil, domain.ErrTransport("flat-table transport requires the %s field", domain.WKTField)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.FieldNames); err != nil {
		return nil, domain.ErrTransport("write csv header: %v", err)
	}
	row := make([]string, len(ds.FieldNames))
	for _, rec := range ds.Records {
		for i, name := range ds.FieldNames {
			row[i] = formatCSVValue(rec.Fields[name])
		}
		if err := w.Write(row); err != nil {
			return nil, domain.ErrTransport("write csv row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, domain.ErrTransport("flush csv: %v", err)
	}
	return buf.Bytes(), nil
}

func formatCSVValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// esriFeatures renders the dataset as esri-JSON features for addFeatures.
func esriFeatures(ds *domain.FeatureDataset, from, to int) ([]byte, error) {
	features := make([]map[string]interface{}, 0, to-from)
	for _, rec := range ds.Records[from:to] {
		geom, err := esriGeometry(rec.Geometry)
		if err != nil {
			return nil, err
		}
		attrs := make(map[string]interface{}, len(ds.FieldNames))
		for _, name := range ds.AttributeFields() {
			attrs[name] = rec.Fields[name]
		}
		features = append(features, map[string]interface{}{
			"geometry":   geom,
			"attributes": attrs,
		})
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, domain.ErrTransport("encode esri features: %v", err)
	}
	return raw, nil
}

var wgs84Ref = map[string]interface{}{"wkid": domain.EPSGWGS84}

// esriGeometry converts an orb geometry into its esri-JSON representation.
func esriGeometry(g orb.Geometry) (map[string]interface{}, error) {
	switch v := g.(type) {
	case orb.Point:
		return map[string]interface{}{"x": v[0], "y": v[1], "spatialReference": wgs84Ref}, nil
	case orb.MultiPoint:
		return map[string]interface{}{"points": pointPairs(v), "spatialReference": wgs84Ref}, nil
	case orb.LineString:
		return map[string]interface{}{"paths": [][][]float64{pointPairs(v)}, "spatialReference": wgs84Ref}, nil
	case orb.MultiLineString:
		paths := make([][][]float64, len(v))
		for i, ls := range v {
			paths[i] = pointPairs(ls)
		}
		return map[string]interface{}{"paths": paths, "spatialReference": wgs84Ref}, nil
	case orb.Polygon:
		rings := make([][][]float64, len(v))
		for i, r := range v {
			rings[i] = pointPairs(r)
		}
		return map[string]interface{}{"rings": rings, "spatialReference": wgs84Ref}, nil
	case orb.MultiPolygon:
		var rings [][][]float64
		for _, poly := range v {
			for _, r := range poly {
				rings = append(rings, pointPairs(r))
			}
		}
		return map[string]interface{}{"rings": rings, "spatialReference": wgs84Ref}, nil
	default:
		return nil, domain.ErrTransport("unsupported geometry %T for esri encoding", g)
	}
}

func pointPairs[T ~[]orb.Point](pts T) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p[0], p[1]}
	}
	return out
}

// esriGeometryType maps a geometry family to the portal's type name.
func esriGeometryType(f domain.GeometryFamily) string {
	switch f {
	case domain.GeometryPoint:
		return "esriGeometryPoint"
	case domain.GeometryLine:
		return "esriGeometryPolyline"
	default:
		return "esriGeometryPolygon"
	}
}

// familyFromEsri maps the portal's geometry type name to a family.
func familyFromEsri(s string) domain.GeometryFamily {
	switch strings.ToLower(strings.TrimPrefix(s, "esriGeometry")) {
	case "point", "multipoint":
		return domain.GeometryPoint
	case "polyline", "line":
		return domain.GeometryLine
	case "polygon", "envelope":
		return domain.GeometryPolygon
	default:
		return ""
	}
}
