// Package fixed implements the signed 24.8 fixed-point number carried by
// `fixed` protocol arguments.
package fixed

import (
	"errors"
	"math"
	"strconv"
)

const (
	fractionBits = 8
	scale        = 1 << fractionBits

	// MaxInt and MinInt bound the integers FromInt accepts.
	MaxInt = math.MaxInt32 >> fractionBits
	MinInt = math.MinInt32 >> fractionBits
)

var (
	ErrOverflow   = errors.New("fixed: integer out of 24.8 range")
	ErrNotANumber = errors.New("fixed: NaN has no 24.8 value")
)

// Fixed is a 24.8 fixed-point value. One unit of the stored integer is 1/256.
type Fixed int32

// FromRaw wraps an already scaled wire word.
func FromRaw(raw int32) Fixed {
	return Fixed(raw)
}

// FromFloat64 scales by 256 and rounds to nearest, ties away from zero.
// Out of range values saturate and NaN becomes 0; FromFloat64Checked
// reports both.
func FromFloat64(v float64) Fixed {
	f, _ := FromFloat64Checked(v)
	return f
}

// FromFloat64Checked is FromFloat64 with an error for NaN and for values
// that do not fit. The saturated value is returned alongside ErrOverflow.
func FromFloat64Checked(v float64) (Fixed, error) {
	if math.IsNaN(v) {
		return 0, ErrNotANumber
	}
	r := math.Round(v * scale)
	switch {
	case r > math.MaxInt32:
		return Fixed(math.MaxInt32), ErrOverflow
	case r < math.MinInt32:
		return Fixed(math.MinInt32), ErrOverflow
	}
	return Fixed(int32(r)), nil
}

func FromFloat32(v float32) Fixed {
	return FromFloat64(float64(v))
}

// FromInt shifts v into the integer part. Values outside [MinInt, MaxInt]
// cannot be represented and return ErrOverflow.
func FromInt(v int64) (Fixed, error) {
	if v > MaxInt || v < MinInt {
		return 0, ErrOverflow
	}
	return Fixed(int32(v) << fractionBits), nil
}

// MustFromInt is FromInt for constants known to be in range.
func MustFromInt(v int64) Fixed {
	f, err := FromInt(v)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Fixed) Raw() int32 {
	return int32(f)
}

func (f Fixed) Float64() float64 {
	return float64(f) / scale
}

func (f Fixed) Float32() float32 {
	return float32(f) / scale
}

// Int truncates toward zero, so -0.5 becomes 0 and -1.5 becomes -1.
func (f Fixed) Int() int32 {
	return int32(f) / scale
}

// Uint32 truncates toward zero and clamps negative values to 0.
func (f Fixed) Uint32() uint32 {
	if f < 0 {
		return 0
	}
	return uint32(f.Int())
}

func (f Fixed) Add(o Fixed) Fixed {
	return Fixed(int64(f) + int64(o))
}

func (f Fixed) Sub(o Fixed) Fixed {
	return Fixed(int64(f) - int64(o))
}

func (f Fixed) Mul(o Fixed) Fixed {
	return Fixed((int64(f) * int64(o)) >> fractionBits)
}

// Div panics on a zero divisor like integer division does.
func (f Fixed) Div(o Fixed) Fixed {
	return Fixed((int64(f) << fractionBits) / int64(o))
}

func (f Fixed) Neg() Fixed {
	return -f
}

func (f Fixed) Abs() Fixed {
	if f < 0 {
		return -f
	}
	return f
}

// Cmp returns -1, 0 or +1.
func (f Fixed) Cmp(o Fixed) int {
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	default:
		return 0
	}
}

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Float64(), 'f', -1, 64)
}
