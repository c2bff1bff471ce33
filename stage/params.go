package stage

import (
	"fmt"
	"image"
	"math"
)

// Params is a flat parameter set
type Params map[string]interface{}

// Copy returns a copy of p
func (p Params) Copy() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Has reports whether every key is present
func (p Params) Has(keys ...string) bool {
	for _, k := range keys {
		if _, found := p[k]; !found {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one key is present
func (p Params) HasAny(keys ...string) bool {
	for _, k := range keys {
		if _, found := p[k]; found {
			return true
		}
	}
	return false
}

// Point is a normalized x,y coordinate
type Point [2]float64

// Zone is a closed polygon in normalized coordinates
type Zone []Point

// ZoneList is a list of polygons
type ZoneList []Zone

// Pixels scales the zone to a frame of the given size.
// Normalized coordinates map onto (w-1, h-1).
func (z Zone) Pixels(size image.Point) []image.Point {
	scaleX := float64(size.X - 1)
	scaleY := float64(size.Y - 1)
	pts := make([]image.Point, 0, len(z))
	for _, p := range z {
		pts = append(pts, image.Pt(int(math.Round(p[0]*scaleX)), int(math.Round(p[1]*scaleY))))
	}
	return pts
}

// Valid zones have at least 3 points
func (z Zone) Valid() bool {
	return len(z) >= 3
}

func toZones(raw interface{}) (ZoneList, error) {
	switch v := raw.(type) {
	case nil:
		return ZoneList{}, nil
	case ZoneList:
		return v, nil
	case [][][2]float64:
		zones := make(ZoneList, 0, len(v))
		for _, z := range v {
			zone := make(Zone, 0, len(z))
			for _, p := range z {
				zone = append(zone, Point(p))
			}
			zones = append(zones, zone)
		}
		return zones, nil
	case []interface{}:
		zones := make(ZoneList, 0, len(v))
		for _, rawZone := range v {
			list, ok := rawZone.([]interface{})
			if !ok {
				return nil, fmt.Errorf("zone is %T, not a list", rawZone)
			}
			zone := make(Zone, 0, len(list))
			for _, rawPoint := range list {
				pair, ok := rawPoint.([]interface{})
				if !ok || len(pair) != 2 {
					return nil, fmt.Errorf("zone point %v is not an x,y pair", rawPoint)
				}
				x, err := toFloat(pair[0])
				if err != nil {
					return nil, err
				}
				y, err := toFloat(pair[1])
				if err != nil {
					return nil, err
				}
				zone = append(zone, Point{x, y})
			}
			if len(zone) > 0 {
				zones = append(zones, zone)
			}
		}
		return zones, nil
	}
	return nil, fmt.Errorf("cannot use %T as zones", raw)
}

// Float returns key as a float64
func (p Params) Float(key string) float64 {
	f, _ := toFloat(p[key])
	return f
}

// Int returns key as an int
func (p Params) Int(key string) int {
	f, _ := toFloat(p[key])
	return int(math.Round(f))
}

// Bool returns key as a bool
func (p Params) Bool(key string) bool {
	b, _ := toBool(p[key])
	return b
}

// String returns key as a string
func (p Params) String(key string) string {
	v, found := p[key]
	if !found || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Zones returns key as a ZoneList
func (p Params) Zones(key string) ZoneList {
	z, err := toZones(p[key])
	if err != nil {
		return ZoneList{}
	}
	return z
}

// Contains reports whether p lies strictly inside the zone
func (z Zone) Contains(p Point) bool {
	inside := false
	n := len(z)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z[i], z[j]
		if (a[1] > p[1]) != (b[1] > p[1]) &&
			p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
			inside = !inside
		}
	}
	return inside
}
