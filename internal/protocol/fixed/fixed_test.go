package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntRoundTripCoversRange(t *testing.T) {
	for v := int64(MinInt); v <= MaxInt; v++ {
		f, err := FromInt(v)
		if err != nil {
			t.Fatalf("from %d: %v", v, err)
		}
		if got := int64(f.Int()); got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestFromIntOverflow(t *testing.T) {
	_, err := FromInt(MaxInt + 1)
	require.ErrorIs(t, err, ErrOverflow)
	_, err = FromInt(MinInt - 1)
	require.ErrorIs(t, err, ErrOverflow)
	require.Panics(t, func() { MustFromInt(1 << 30) })
}

func TestFloatRoundTripWithinOneUnit(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 0.001, 1.234, -43.21, 12.5, 8388607.99, -8388608, 1e-9, 3.14159} {
		got := FromFloat64(v).Float64()
		require.LessOrEqualf(t, math.Abs(got-v), 1.0/256, "value %v -> %v", v, got)
	}
	require.InDelta(t, float32(-43.21), FromFloat32(-43.21).Float32(), 1.0/256)
}

func TestFromFloatSaturatesAtRange(t *testing.T) {
	f, err := FromFloat64Checked(-8388608)
	require.NoError(t, err)
	require.Equal(t, int32(math.MinInt32), f.Raw())

	_, err = FromFloat64Checked(8388608)
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, int32(math.MaxInt32), FromFloat64(8388608).Raw())

	for _, v := range []float64{9e6, 1e7, math.Inf(1)} {
		got := FromFloat64(v)
		require.Equalf(t, int32(math.MaxInt32), got.Raw(), "value %v", v)
		require.Positive(t, got.Float64())
	}
	for _, v := range []float64{-8388609, -1e7, math.Inf(-1)} {
		_, err := FromFloat64Checked(v)
		require.ErrorIsf(t, err, ErrOverflow, "value %v", v)
		require.Equal(t, int32(math.MinInt32), FromFloat64(v).Raw())
	}

	f, err = FromFloat64Checked(8388607.99)
	require.NoError(t, err)
	require.Positive(t, f.Raw())
}

func TestFromFloatNaN(t *testing.T) {
	_, err := FromFloat64Checked(math.NaN())
	require.ErrorIs(t, err, ErrNotANumber)
	require.Zero(t, FromFloat64(math.NaN()).Raw())
	require.Zero(t, FromFloat32(float32(math.NaN())).Raw())
}

func TestFromFloatRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, int32(1), FromFloat64(0.5/256).Raw())
	require.Equal(t, int32(-1), FromFloat64(-0.5/256).Raw())
	require.Equal(t, int32(0), FromFloat64(0.4/256).Raw())
}

func TestArithmetic(t *testing.T) {
	require.Equal(t, MustFromInt(20), FromFloat64(12.5).Add(FromFloat64(7.5)))
	require.Equal(t, MustFromInt(5), FromFloat64(12.5).Sub(FromFloat64(7.5)))
	require.Equal(t, MustFromInt(20), MustFromInt(10).Mul(MustFromInt(2)))
	require.Equal(t, MustFromInt(5), MustFromInt(10).Div(MustFromInt(2)))
	require.Equal(t, FromFloat64(-12.5), FromFloat64(12.5).Neg())
	require.Equal(t, FromFloat64(12.5), FromFloat64(-12.5).Abs())
	require.Equal(t, FromFloat64(0.25), FromFloat64(0.5).Mul(FromFloat64(0.5)))
	require.Equal(t, FromFloat64(-2.5), FromFloat64(5).Div(FromFloat64(-2)))
}

func TestMulUsesWideIntermediate(t *testing.T) {
	big := MustFromInt(4000)
	require.Equal(t, MustFromInt(2000000), big.Mul(MustFromInt(500)))
	require.Equal(t, MustFromInt(4000), MustFromInt(40000).Div(MustFromInt(10)))
}

func TestIntTruncatesTowardZero(t *testing.T) {
	require.Equal(t, int32(0), FromFloat64(-0.5).Int())
	require.Equal(t, int32(-1), FromFloat64(-1.5).Int())
	require.Equal(t, int32(1), FromFloat64(1.234).Int())
	require.Equal(t, int32(-43), FromFloat64(-43.21).Int())
	require.Equal(t, uint32(1), FromFloat64(1.234).Uint32())
	require.Equal(t, uint32(0), FromFloat64(-43.21).Uint32())
}

func TestCmpAndString(t *testing.T) {
	require.Equal(t, -1, FromFloat64(1).Cmp(FromFloat64(2)))
	require.Equal(t, 0, FromFloat64(2).Cmp(FromFloat64(2)))
	require.Equal(t, 1, FromFloat64(3).Cmp(FromFloat64(2)))
	require.Equal(t, "12.5", FromFloat64(12.5).String())
}
