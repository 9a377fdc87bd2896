package domain

// Archive is one uploaded compressed archive. Ephemeral: it exists only for
// the duration of a single ingestion request and its scratch extraction is
// released on every exit path.
type Archive struct {
	Name  string
	Bytes []byte
}

// ComponentSet maps shapefile components to their extracted paths inside one
// request's scratch directory. Shape and Index are always present and
// non-empty; Attributes is empty when the .dbf was absent or zero-length
// (a degraded condition, not a fatal one).
type ComponentSet struct {
	Shape      string // .shp
	Index      string // .shx
	Attributes string // .dbf, "" when absent or empty
	Projection string // .prj, "" when absent
	CodePage   string // .cpg, "" when absent

	// Degraded is set when the attribute table is missing or empty; the
	// reader synthesizes an identity field in that case.
	Degraded bool

	// BaseName is the shapefile's name without extension.
	BaseName string
}
