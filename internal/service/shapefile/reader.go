// Package shapefile loads geometry and attributes from validated shapefile
// components into a FeatureDataset.
package shapefile

import (
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// Read produces a FeatureDataset from a validated component set.
//
// The primary strategy reads geometry and attributes together. When the
// attribute table is absent or empty (ComponentSet.Degraded), a single
// integer identity field is synthesized so every record still has at least
// one attribute. Structural errors fail with UnreadableShapefile and are
// never retried here — retries belong to the publication stage.
func Read(cs *domain.ComponentSet) (*domain.FeatureDataset, error) {
	r, err := shp.Open(cs.Shape)
	if err != nil {
		return nil, domain.ErrUnreadable("open %s: %v", cs.BaseName, err)
	}
	defer r.Close() //nolint:errcheck

	family, ok := familyOf(r.GeometryType)
	if !ok {
		return nil, domain.ErrUnreadable("unsupported shape type %d", r.GeometryType)
	}

	ds := &domain.FeatureDataset{
		Name:   cs.BaseName,
		Family: family,
	}

	var fields []shp.Field
	if !cs.Degraded && cs.Attributes != "" {
		fields = r.Fields()
		for _, f := range fields {
			ds.FieldNames = append(ds.FieldNames, strings.TrimSpace(f.String()))
		}
	}
	if len(ds.FieldNames) == 0 {
		// Degraded archive: synthesize the identity field.
		ds.FieldNames = []string{domain.SyntheticIDField}
	}

	for r.Next() {
		n, shape := r.Shape()
		geom, err := toOrb(shape)
		if err != nil {
			return nil, err
		}

		rec := domain.Record{
			Geometry: geom,
			Fields:   make(map[string]interface{}, len(ds.FieldNames)),
		}
		if len(fields) > 0 {
			for j, f := range fields {
				name := strings.TrimSpace(f.String())
				rec.Fields[name] = convertAttribute(f, r.ReadAttribute(n, j))
			}
		} else {
			rec.Fields[domain.SyntheticIDField] = int64(n)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := r.Err(); err != nil {
		return nil, domain.ErrUnreadable("read %s: %v", cs.BaseName, err)
	}

	if len(ds.Records) == 0 {
		return nil, &domain.EmptyDatasetError{}
	}
	return ds, nil
}

// familyOf maps a shapefile geometry type to its family. A shapefile holds
// exactly one shape type, which guarantees the dataset invariant.
func familyOf(t shp.ShapeType) (domain.GeometryFamily, bool) {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM, shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return domain.GeometryPoint, true
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return domain.GeometryLine, true
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return domain.GeometryPolygon, true
	default:
		return "", false
	}
}

// toOrb converts a go-shp shape into an orb geometry.
func toOrb(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(v.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(v.Points), nil
	case *shp.MultiPointM:
		return multiPoint(v.Points), nil
	case *shp.PolyLine:
		return lineGeometry(v.Parts, v.Points), nil
	case *shp.PolyLineZ:
		return lineGeometry(v.Parts, v.Points), nil
	case *shp.PolyLineM:
		return lineGeometry(v.Parts, v.Points), nil
	case *shp.Polygon:
		return polygonGeometry(v.Parts, v.Points), nil
	case *shp.PolygonZ:
		return polygonGeometry(v.Parts, v.Points), nil
	case *shp.PolygonM:
		return polygonGeometry(v.Parts, v.Points), nil
	default:
		return nil, domain.ErrUnreadable("unsupported shape %T", s)
	}
}

func multiPoint(points []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// lineGeometry returns a LineString for a single part and a MultiLineString
// otherwise.
func lineGeometry(parts []int32, points []shp.Point) orb.Geometry {
	lines := splitParts(parts, points)
	if len(lines) == 1 {
		return orb.LineString(lines[0])
	}
	mls := make(orb.MultiLineString, len(lines))
	for i, l := range lines {
		mls[i] = orb.LineString(l)
	}
	return mls
}

func polygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	rings := splitParts(parts, points)
	poly := make(orb.Polygon, len(rings))
	for i, r := range rings {
		poly[i] = closedRing(r)
	}
	return poly
}

// splitParts slices the flat point array into per-part point lists.
func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	if len(parts) == 0 {
		parts = []int32{0}
	}
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		seg := make([]orb.Point, 0, end-int(start))
		for _, p := range points[start:end] {
			seg = append(seg, orb.Point{p.X, p.Y})
		}
		out = append(out, seg)
	}
	return out
}

// closedRing builds an orb.Ring, closing it if the source ring is open.
func closedRing(pts []orb.Point) orb.Ring {
	ring := orb.Ring(pts)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// convertAttribute types a raw DBF value by its field descriptor.
// C=string, N=numeric (integer when precision is 0), F=float, L=logical,
// D=date (kept as its yyyymmdd string).
func convertAttribute(f shp.Field, raw string) interface{} {
	val := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if val == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return n
			}
		}
		if x, err := strconv.ParseFloat(val, 64); err == nil {
			return x
		}
		return val
	case 'F':
		if x, err := strconv.ParseFloat(val, 64); err == nil {
			return x
		}
		return val
	case 'L':
		switch val {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return nil
	default:
		return val
	}
}
