package crs

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// WGS84/GRS80 ellipsoid (the two differ below millimetre level here).
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	scaleUTM   = 0.9996
	falseEast  = 500000.0
	falseNorth = 10000000.0
)

// regven maps the SIRGAS-REGVEN UTM codes used by Venezuelan services.
var regven = map[int]int{2201: 18, 2202: 19, 2203: 20}

// utmZone recognizes EPSG:326zz (north), EPSG:327zz (south) and the
// REGVEN UTM codes.
func utmZone(code string) (zone int, north bool, ok bool) {
	if !strings.HasPrefix(code, "EPSG:") {
		return 0, false, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(code, "EPSG:"))
	if err != nil {
		return 0, false, false
	}
	switch {
	case n > 32600 && n <= 32660:
		return n - 32600, true, true
	case n > 32700 && n <= 32760:
		return n - 32700, false, true
	}
	if z, ok := regven[n]; ok {
		return z, true, true
	}
	return 0, false, false
}

// utmToWGS84 returns the inverse transverse Mercator projection for a UTM
// zone (Snyder, Map Projections: A Working Manual, eq. 8-12 to 8-25).
func utmToWGS84(zone int, north bool) orb.Projection {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180

	return func(p orb.Point) orb.Point {
		x := p[0] - falseEast
		y := p[1]
		if !north {
			y -= falseNorth
		}

		m := y / scaleUTM
		mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

		phi1 := mu +
			(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
			(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
			(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
			(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

		sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
		c1 := ep2 * cos1 * cos1
		t1 := tan1 * tan1
		n1 := semiMajor / math.Sqrt(1-e2*sin1*sin1)
		r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
		d := x / (n1 * scaleUTM)

		lat := phi1 - (n1*tan1/r1)*(d*d/2-
			(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
			(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
		lon := lon0 + (d-
			(1+2*t1+c1)*math.Pow(d, 3)/6+
			(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos1

		return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
	}
}
