package omero

import (
	"fmt"
	"math"

	"github.com/menta2k/roi-bridge/pkg/roierr"
)

// Unit tags a Length.
type Unit string

const (
	Pixel      Unit = "PIXEL"
	Point      Unit = "POINT"
	Meter      Unit = "METER"
	Millimeter Unit = "MILLIMETER"
	Micrometer Unit = "MICROMETER"
	Nanometer  Unit = "NANOMETER"
	Inch       Unit = "INCH"
)

// meters per unit for the physical units. Pixel has no physical size
// without calibration and is absent on purpose.
var metersPer = map[Unit]float64{
	Meter:      1,
	Millimeter: 1e-3,
	Micrometer: 1e-6,
	Nanometer:  1e-9,
	Inch:       0.0254,
	Point:      0.0254 / 72,
}

// Length is a unit-tagged scalar as stored by the server.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func NewLength(v float64, u Unit) *Length {
	return &Length{Value: v, Unit: u}
}

// In converts l to unit u. It fails with ErrBigResult when the converted
// value is not finite and with ErrUnsupported when the units are not
// convertible.
func (l Length) In(u Unit) (float64, error) {
	if l.Unit == u {
		return l.Value, nil
	}
	from, ok1 := metersPer[l.Unit]
	to, ok2 := metersPer[u]
	if !ok1 || !ok2 {
		return 0, roierr.Unsupported("cannot convert %s to %s", l.Unit, u)
	}
	v := l.Value * from / to
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %g %s in %s", roierr.ErrBigResult, l.Value, l.Unit, u)
	}
	return v, nil
}

func (l Length) String() string {
	return fmt.Sprintf("%g %s", l.Value, l.Unit)
}
