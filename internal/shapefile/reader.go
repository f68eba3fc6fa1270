// Package shapefile implements ShapefileReader (§4.1 of SPEC_FULL.md):
// a single forward pass over a .shp/.dbf pair yielding (attributes,
// geometry) records, skipping non-polygonal or GEOID-less features.
// It wraps github.com/twpayne/go-shapefile's binary parsing rather than
// reimplementing the .shp/.dbf formats, and hands geometry off to
// GeometryNormalizer by way of simplefeatures/geom, the same canonical
// polygon/multipolygon representation geobbolt converts to/from s2.
package shapefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sfgeom "github.com/peterstace/simplefeatures/geom"
	tgeom "github.com/twpayne/go-geom"
	tshp "github.com/twpayne/go-shapefile"
	"go.uber.org/zap"

	"github.com/akhenakh/geodistrict/internal/geomutil"
)

// Record is one shapefile feature after attribute extraction and
// geometry conversion: a raw Polygon or MultiPolygon, not yet normalized.
type Record struct {
	GEOID      string
	Name       string
	StateFP    string
	LoGrade    string
	HiGrade    string
	ALandM2    float64
	AWaterM2   float64
	SchoolYear string
	Geometry   geomutil.RawGeometry
}

// Reader streams records from one shapefile. Not safe for concurrent use
// and not restartable: Each consumes the underlying record set once.
type Reader struct {
	sf      *tshp.Shapefile
	logger  *zap.Logger
	skipped int
}

// Open reads the .shp and its sibling .dbf/.shx/.prj files (whichever
// exist) named by shpPath. It fails with ErrSourceFormat if the headers
// are malformed or the attribute file's record count disagrees with the
// geometry file's.
func Open(shpPath string, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(shpPath)
	base := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))

	sf, err := tshp.ReadFS(os.DirFS(dir), base, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceFormat, err)
	}
	if sf.SHP == nil {
		return nil, fmt.Errorf("%w: %s.shp not found", ErrSourceFormat, base)
	}
	if sf.DBF != nil && len(sf.DBF.Records) != len(sf.SHP.Records) {
		return nil, fmt.Errorf("%w: dbf has %d records, shp has %d", ErrSourceFormat, len(sf.DBF.Records), len(sf.SHP.Records))
	}

	return &Reader{sf: sf, logger: logger}, nil
}

// NumRecords returns the total record count in the underlying shapefile,
// including records Each will skip.
func (r *Reader) NumRecords() int { return r.sf.NumRecords() }

// Skipped returns the number of records dropped by the most recent call
// to Each, broken down only in the warning log, not here.
func (r *Reader) Skipped() int { return r.skipped }

// Each calls yield once per surviving record, in file order, stopping
// early if yield returns false. Records with a non-polygonal geometry or
// an empty GEOID are skipped with a counted zap warning rather than
// passed to yield.
func (r *Reader) Each(yield func(Record) bool) {
	r.skipped = 0
	n := r.sf.NumRecords()
	for i := 0; i < n; i++ {
		fields, g := r.sf.Record(i)

		geoid := stringField(fields, "GEOID")
		if geoid == "" {
			r.skipped++
			r.logger.Warn("skipping shapefile record: empty GEOID", zap.Int("index", i))
			continue
		}

		raw, ok := convertGeometry(g)
		if !ok {
			r.skipped++
			r.logger.Warn("skipping shapefile record: non-polygonal geometry",
				zap.String("geoid", geoid), zap.String("type", fmt.Sprintf("%T", g)))
			continue
		}

		rec := Record{
			GEOID:      geoid,
			Name:       stringField(fields, "NAME"),
			StateFP:    stringField(fields, "STATEFP"),
			LoGrade:    stringField(fields, "LOGRADE"),
			HiGrade:    stringField(fields, "HIGRADE"),
			ALandM2:    floatField(fields, "ALAND"),
			AWaterM2:   floatField(fields, "AWATER"),
			SchoolYear: stringField(fields, "SCHOOLYEAR"),
			Geometry:   raw,
		}
		if !yield(rec) {
			return
		}
	}
}

// convertGeometry converts the shapefile library's own geometry type into
// simplefeatures/geom (mirroring geobbolt's geomToS2 input boundary), then
// into GeometryNormalizer's Ring/Point working form via
// geomutil.FromSimpleFeatures. Any non-polygonal shape reports ok=false.
func convertGeometry(g tgeom.T) (geomutil.RawGeometry, bool) {
	switch t := g.(type) {
	case *tgeom.Polygon:
		return geomutil.FromSimpleFeatures(sfPolygonFromTwpayne(t).AsGeometry())
	case *tgeom.MultiPolygon:
		n := t.NumPolygons()
		polys := make([]sfgeom.Polygon, n)
		for i := 0; i < n; i++ {
			polys[i] = sfPolygonFromTwpayne(t.Polygon(i))
		}
		return geomutil.FromSimpleFeatures(sfgeom.NewMultiPolygon(polys).AsGeometry())
	default:
		return geomutil.RawGeometry{}, false
	}
}

// polygonToRaw converts a single twpayne polygon into GeometryNormalizer's
// Ring/Point form, routed through simplefeatures/geom the same way
// convertGeometry does for a standalone Polygon record.
func polygonToRaw(p *tgeom.Polygon) geomutil.RawPolygon {
	raw, ok := geomutil.FromSimpleFeatures(sfPolygonFromTwpayne(p).AsGeometry())
	if !ok || len(raw.Parts) == 0 {
		return geomutil.RawPolygon{}
	}
	return raw.Parts[0]
}

// sfPolygonFromTwpayne copies a twpayne *geom.Polygon's rings into a
// simplefeatures geom.Polygon, flattening each ring through
// geom.NewSequence/geom.NewLineString exactly as geobbolt's
// lineStringToS2/polygonToS2 walk a geom.Sequence in the other direction.
func sfPolygonFromTwpayne(p *tgeom.Polygon) sfgeom.Polygon {
	n := p.NumLinearRings()
	rings := make([]sfgeom.LineString, n)
	for i := 0; i < n; i++ {
		r := p.LinearRing(i)
		rings[i] = sfLineStringFromFlat(r.FlatCoords(), r.Stride())
	}
	return sfgeom.NewPolygon(rings)
}

func sfLineStringFromFlat(flat []float64, stride int) sfgeom.LineString {
	if stride <= 0 {
		return sfgeom.NewLineString(sfgeom.NewSequence(nil, sfgeom.DimXY))
	}
	n := len(flat) / stride
	coords := make([]float64, 0, n*2)
	for i := 0; i < n; i++ {
		coords = append(coords, flat[i*stride], flat[i*stride+1])
	}
	return sfgeom.NewLineString(sfgeom.NewSequence(coords, sfgeom.DimXY))
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func floatField(fields map[string]any, key string) float64 {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
