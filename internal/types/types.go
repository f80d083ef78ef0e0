// README: Common value types shared across modules.
package types

// ID is an opaque record identifier (Firestore document id or external id).
type ID string

func (id ID) String() string { return string(id) }

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no usable coordinate.
func (p Point) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }
