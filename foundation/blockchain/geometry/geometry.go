// Package geometry provides the triangle assets tracked by the blockchain,
// their deterministic subdivision, and the canonical identity hash.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// ErrGeometry is returned when a triangle is degenerate or has
// coordinates outside the supported range.
var ErrGeometry = errors.New("invalid geometry")

const (
	// MaxCoordinate is the exclusive bound on the absolute value of
	// any coordinate.
	MaxCoordinate = 1e10

	// Tolerance is the minimum area of a non-degenerate triangle.
	Tolerance = 1e-9

	// GenesisMarker replaces the parent identity of a genesis triangle
	// in the canonical serialization.
	GenesisMarker = "genesis"

	// coordPrecision is the number of fractional digits used in the
	// canonical serialization of a coordinate.
	coordPrecision = 15
)

// =============================================================================

// Point represents a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether the point has finite coordinates within bounds.
func (p Point) Valid() bool {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= MaxCoordinate {
			return false
		}
	}
	return true
}

// Midpoint returns the point halfway between p and o.
func (p Point) Midpoint(o Point) Point {
	return Point{
		X: (p.X + o.X) / 2,
		Y: (p.Y + o.Y) / 2,
	}
}

// Canonical returns the protocol serialization of the point.
func (p Point) Canonical() string {
	return formatCoord(p.X) + "," + formatCoord(p.Y)
}

// Less defines the total order used to normalize vertex order: numerically
// by X and then by Y, with negative zero treated as zero.
func (p Point) Less(o Point) bool {
	px, ox := canonicalCoord(p.X), canonicalCoord(o.X)
	if px != ox {
		return px < ox
	}
	return canonicalCoord(p.Y) < canonicalCoord(o.Y)
}

// String implements the fmt.Stringer interface.
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// =============================================================================

// Triangle represents a geometric asset on the ledger.
type Triangle struct {
	A          Point  `json:"a"`
	B          Point  `json:"b"`
	C          Point  `json:"c"`
	ParentHash string `json:"parent_hash,omitempty"`
	Owner      string `json:"owner"`
}

// New constructs a triangle and rejects degenerate or out of bounds input.
func New(a, b, c Point, parentHash string, owner string) (Triangle, error) {
	t := Triangle{
		A:          a,
		B:          b,
		C:          c,
		ParentHash: parentHash,
		Owner:      owner,
	}

	if err := t.Validate(); err != nil {
		return Triangle{}, err
	}

	return t, nil
}

// Genesis returns the root triangle of the chain, an equilateral triangle
// with side length sqrt(3), owned by the specified owner.
func Genesis(owner string) Triangle {
	const (
		sqrt3     = 1.7320508075688772
		halfSqrt3 = 0.8660254037844386
	)

	return Triangle{
		A:     Point{X: 0, Y: 0},
		B:     Point{X: sqrt3, Y: 0},
		C:     Point{X: halfSqrt3, Y: 1.5},
		Owner: owner,
	}
}

// IsGenesis reports whether the triangle has no parent.
func (t Triangle) IsGenesis() bool {
	return t.ParentHash == ""
}

// Area calculates the area using the shoelace formula.
func (t Triangle) Area() float64 {
	v := t.A.X*(t.B.Y-t.C.Y) + t.B.X*(t.C.Y-t.A.Y) + t.C.X*(t.A.Y-t.B.Y)
	return math.Abs(v) / 2
}

// Validate checks the coordinates are in range and the points are
// not collinear.
func (t Triangle) Validate() error {
	for _, p := range []Point{t.A, t.B, t.C} {
		if !p.Valid() {
			return fmt.Errorf("%w: point %s out of bounds", ErrGeometry, p)
		}
	}

	if area := t.Area(); !(area > Tolerance) {
		return fmt.Errorf("%w: degenerate triangle, area %g", ErrGeometry, area)
	}

	return nil
}

// Hash returns the identity hash of the triangle. The vertices are put into
// canonical order first, so the hash does not depend on the order in which
// the vertices were supplied. The owner is not part of the identity.
func (t Triangle) Hash() string {
	return signature.DoubleHashString(t.Canonical())
}

// Canonical returns the serialization the identity hash is computed over.
func (t Triangle) Canonical() string {
	points := t.OrderedPoints()

	parent := t.ParentHash
	if parent == "" {
		parent = GenesisMarker
	}

	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(p.Canonical())
	}
	b.WriteByte('|')
	b.WriteString(parent)

	return b.String()
}

// OrderedPoints returns the vertices in canonical order.
func (t Triangle) OrderedPoints() [3]Point {
	points := [3]Point{t.A, t.B, t.C}
	sort.Slice(points[:], func(i, j int) bool {
		return points[i].Less(points[j])
	})
	return points
}

// Equals reports whether two triangles have the same identity and owner.
func (t Triangle) Equals(o Triangle) bool {
	return t.Owner == o.Owner && t.Hash() == o.Hash()
}

// Identical reports whether two triangles hold the same vertices in the same
// stored order with the same parent and owner. Vertex order matters for
// Subdivide, so two triangles that are Equal may still not be Identical.
func (t Triangle) Identical(o Triangle) bool {
	return t.A == o.A && t.B == o.B && t.C == o.C && t.ParentHash == o.ParentHash && t.Owner == o.Owner
}

// Vertices returns the vertices in stored order using the canonical point
// serialization.
func (t Triangle) Vertices() string {
	return t.A.Canonical() + ";" + t.B.Canonical() + ";" + t.C.Canonical()
}

// WithOwner returns a copy of the triangle with a new owner.
func (t Triangle) WithOwner(owner string) Triangle {
	t.Owner = owner
	return t
}

// String implements the fmt.Stringer interface for logging.
func (t Triangle) String() string {
	return fmt.Sprintf("%s:%s", t.Hash(), t.Owner)
}

// =============================================================================

// Subdivide produces the three corner children of the triangle by connecting
// the edge midpoints. The order is fixed by the protocol:
//
//	0: A, mid(AB), mid(CA)
//	1: mid(AB), B, mid(BC)
//	2: mid(CA), mid(BC), C
//
// Each child carries the parent identity and the parent's owner.
func Subdivide(t Triangle) [3]Triangle {
	midAB := t.A.Midpoint(t.B)
	midBC := t.B.Midpoint(t.C)
	midCA := t.C.Midpoint(t.A)

	parent := t.Hash()

	return [3]Triangle{
		{A: t.A, B: midAB, C: midCA, ParentHash: parent, Owner: t.Owner},
		{A: midAB, B: t.B, C: midBC, ParentHash: parent, Owner: t.Owner},
		{A: midCA, B: midBC, C: t.C, ParentHash: parent, Owner: t.Owner},
	}
}

// =============================================================================

// canonicalCoord normalizes negative zero so -0 and 0 serialize the same.
func canonicalCoord(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

// formatCoord returns the fixed precision representation of a coordinate.
func formatCoord(v float64) string {
	return strconv.FormatFloat(canonicalCoord(v), 'f', coordPrecision, 64)
}
