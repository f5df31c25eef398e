// Package proj converts between geographic WGS84/NAD83 coordinates and the
// projected meter systems facility artifacts are published in.
package proj

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-spatial/proj/core"
	_ "github.com/go-spatial/proj/operations" // registers aea and merc
	"github.com/go-spatial/proj/support"
	"github.com/rotisserie/eris"
)

// Geographic is the EPSG code for WGS84 longitude/latitude.
const Geographic = 4326

// IsGeographic reports whether code is a longitude/latitude CRS this package
// can project from. NAD83 and WGS84 differ by well under a meter in CONUS.
func IsGeographic(code int) bool {
	return code == Geographic || code == 4269
}

// Projection converts longitude/latitude degrees to projected meters and back.
type Projection interface {
	EPSG() int
	Forward(lon, lat float64) (x, y float64, err error)
	Inverse(x, y float64) (lon, lat float64, err error)
}

// projStrings are the PROJ definitions of the supported projected CRSs.
var projStrings = map[int]string{
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +ellps=GRS80",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0",
}

var (
	cacheMu sync.Mutex
	cache   = map[int]*projection{}
)

// ByEPSG returns a supported projected CRS. Projections are built once and
// shared.
func ByEPSG(code int) (Projection, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if p, ok := cache[code]; ok {
		return p, nil
	}
	def, ok := projStrings[code]
	if !ok {
		return nil, eris.Errorf("proj: unsupported projected CRS EPSG:%d", code)
	}
	p, err := newProjection(code, def)
	if err != nil {
		return nil, err
	}
	cache[code] = p
	return p, nil
}

// projection wraps a PROJ conversion. The conversion keeps scratch state
// between calls, so access is serialized.
type projection struct {
	epsg int

	mu   sync.Mutex
	conv core.IConvertLPToXY
}

func newProjection(code int, def string) (*projection, error) {
	ps, err := support.NewProjString(def)
	if err != nil {
		return nil, eris.Wrapf(err, "proj: parse definition of EPSG:%d", code)
	}
	_, op, err := core.NewSystem(ps)
	if err != nil {
		return nil, eris.Wrapf(err, "proj: build EPSG:%d", code)
	}
	conv, ok := op.(core.IConvertLPToXY)
	if !ok {
		return nil, eris.Errorf("proj: EPSG:%d is not a lon/lat conversion", code)
	}
	return &projection{epsg: code, conv: conv}, nil
}

func (p *projection) EPSG() int { return p.epsg }

func (p *projection) Forward(lon, lat float64) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	xy, err := p.conv.Forward(&core.CoordLP{Lam: support.DDToR(lon), Phi: support.DDToR(lat)})
	if err != nil {
		return 0, 0, eris.Wrapf(err, "proj: project (%g, %g) to EPSG:%d", lon, lat, p.epsg)
	}
	return xy.X, xy.Y, nil
}

func (p *projection) Inverse(x, y float64) (float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lp, err := p.conv.Inverse(&core.CoordXY{X: x, Y: y})
	if err != nil {
		return 0, 0, eris.Wrapf(err, "proj: unproject (%g, %g) from EPSG:%d", x, y, p.epsg)
	}
	return support.RToDD(lp.Lam), support.RToDD(lp.Phi), nil
}

var epsgPattern = regexp.MustCompile(`(?i)EPSG:{1,2}(\d+)$`)

// ParseCRSName extracts the EPSG code from a GeoJSON named CRS such as
// "urn:ogc:def:crs:EPSG::5070" or "EPSG:3857". OGC CRS84 maps to 4326.
func ParseCRSName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return Geographic, nil
	}
	m := epsgPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, eris.Errorf("proj: unrecognized CRS name %q", name)
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, eris.Wrapf(err, "proj: parse EPSG code in %q", name)
	}
	return code, nil
}
