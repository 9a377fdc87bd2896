// Package normalize ensures a dataset's geometries share the standard
// geographic reference (WGS84) and derives transport representations.
package normalize

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/wroge/wgs84"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

var (
	epsgAuthorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	utmZoneRe       = regexp.MustCompile(`UTM[_ ]Zone[_ ](\d{1,2})([NS])`)
)

// DetectCRS resolves the dataset's EPSG code from its .prj component.
// Returns 0 when no CRS is declared. The pipeline treats 0 as a hard
// MissingCRS failure — an unknown source reference is never assumed to be
// WGS84.
func DetectCRS(cs *domain.ComponentSet) (int, error) {
	if cs.Projection == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(cs.Projection)
	if err != nil {
		return 0, err
	}
	return parsePrjWKT(string(raw)), nil
}

// parsePrjWKT extracts an EPSG code from ESRI projection WKT. The last
// AUTHORITY clause identifies the whole CRS; well-known names cover the
// .prj files ESRI writes without authority tags.
func parsePrjWKT(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if m := epsgAuthorityRe.FindAllStringSubmatch(s, -1); len(m) > 0 {
		if code, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			return code
		}
	}

	if strings.Contains(s, "Web_Mercator") || strings.Contains(s, "Pseudo-Mercator") ||
		strings.Contains(s, "Pseudo_Mercator") {
		return domain.EPSGWebMercator
	}

	if m := utmZoneRe.FindStringSubmatch(s); m != nil && strings.Contains(s, "WGS_1984") {
		zone, _ := strconv.Atoi(m[1])
		if zone >= 1 && zone <= 60 {
			if m[2] == "N" {
				return 32600 + zone
			}
			return 32700 + zone
		}
	}

	if strings.HasPrefix(s, "GEOGCS") &&
		(strings.Contains(s, "GCS_WGS_1984") || strings.Contains(s, "WGS 84") || strings.Contains(s, "WGS_1984")) {
		return domain.EPSGWGS84
	}

	return 0
}

// ToWGS84 reprojects every geometry in the dataset to EPSG:4326 in place.
// A dataset already in WGS84 passes through untouched, which makes the
// operation idempotent. A dataset with no declared CRS fails with
// MissingCRS; an unsupported source reference fails with ReprojectionFailed.
func ToWGS84(ds *domain.FeatureDataset) error {
	if ds.CRSCode == 0 {
		return &domain.MissingCRSError{}
	}
	if ds.CRSCode == domain.EPSGWGS84 {
		return nil
	}

	epsg := wgs84.EPSG()
	from := epsg.Code(ds.CRSCode)
	if from == nil {
		return domain.ErrReprojection("unsupported source reference EPSG:%d", ds.CRSCode)
	}
	transform := wgs84.Transform(from, wgs84.LonLat())

	for i := range ds.Records {
		ds.Records[i].Geometry = mapPoints(ds.Records[i].Geometry, func(p orb.Point) orb.Point {
			lon, lat, _ := transform(p[0], p[1], 0)
			return orb.Point{lon, lat}
		})
	}
	ds.CRSCode = domain.EPSGWGS84
	return nil
}

// AugmentWKT derives a well-known-text string per geometry and appends it
// as the wkt_geometry field, leaving the native geometry intact. The two
// representations coexist; the publication strategy selector decides which
// to use.
func AugmentWKT(ds *domain.FeatureDataset) {
	if !ds.HasField(domain.WKTField) {
		ds.FieldNames = append(ds.FieldNames, domain.WKTField)
	}
	for i := range ds.Records {
		ds.Records[i].Fields[domain.WKTField] = wkt.MarshalString(ds.Records[i].Geometry)
	}
}

// mapPoints applies fn to every vertex of the geometry.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		return fn(v)
	case orb.MultiPoint:
		for i := range v {
			v[i] = fn(v[i])
		}
		return v
	case orb.LineString:
		for i := range v {
			v[i] = fn(v[i])
		}
		return v
	case orb.MultiLineString:
		for i := range v {
			for j := range v[i] {
				v[i][j] = fn(v[i][j])
			}
		}
		return v
	case orb.Polygon:
		for i := range v {
			for j := range v[i] {
				v[i][j] = fn(v[i][j])
			}
		}
		return v
	case orb.MultiPolygon:
		for i := range v {
			for j := range v[i] {
				for k := range v[i][j] {
					v[i][j][k] = fn(v[i][j][k])
				}
			}
		}
		return v
	default:
		return g
	}
}
