// Package money implements the fixed-point monetary type used for every
// balance, amount, fee and reward in LogiChain: 18 decimal places backed by
// a checked 128-bit signed integer, per spec §9 ("Arbitrary-precision
// monetary values").
//
// math/big.Int is used rather than a third-party bignum package because the
// teacher itself already reaches for math/big in exactly this role
// (foundation/blockchain/signature.go's V/R/S signature components); no
// pack repo imports an alternative fixed-point or bignum library, and
// github.com/holiman/uint256 (pulled in indirectly via go-ethereum) is
// unsigned-only and cannot represent the signed range spec §9 calls for.
package money

import (
	"errors"
	"math/big"
	"strconv"
)

// Decimals is the fixed number of decimal places every Money value carries.
const Decimals = 18

// ErrOverflow is returned when an operation would exceed the 128-bit signed
// range, surfaced by callers as ResourceExhausted per spec §7.
var ErrOverflow = errors.New("money: arithmetic overflow")

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Money is a checked fixed-point value with Decimals implied decimal places.
type Money struct {
	v *big.Int
}

// Zero is the additive identity.
func Zero() Money { return Money{v: big.NewInt(0)} }

// FromUnits constructs a Money value directly from whole "base units" —
// i.e. already-scaled integer amounts, used by genesis balances and the
// mining reward schedule which are specified in whole units.
func FromUnits(units uint64) Money {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	v := new(big.Int).Mul(new(big.Int).SetUint64(units), scale)
	return Money{v: v}
}

// FromRaw wraps an already-scaled 128-bit signed integer (e.g. decoded off
// the wire).
func FromRaw(v *big.Int) Money {
	return Money{v: new(big.Int).Set(v)}
}

// Raw returns the underlying scaled integer.
func (m Money) Raw() *big.Int {
	if m.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(m.v)
}

func (m Money) val() *big.Int {
	if m.v == nil {
		return big.NewInt(0)
	}
	return m.v
}

func checkRange(v *big.Int) error {
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return ErrOverflow
	}
	return nil
}

// Add returns m+other, or ErrOverflow if the 128-bit signed range is
// exceeded.
func (m Money) Add(other Money) (Money, error) {
	sum := new(big.Int).Add(m.val(), other.val())
	if err := checkRange(sum); err != nil {
		return Money{}, err
	}
	return Money{v: sum}, nil
}

// Sub returns m-other, or ErrOverflow if the range is exceeded.
func (m Money) Sub(other Money) (Money, error) {
	diff := new(big.Int).Sub(m.val(), other.val())
	if err := checkRange(diff); err != nil {
		return Money{}, err
	}
	return Money{v: diff}, nil
}

// MulFloat scales m by a float64 ratio (used for reward splits), rounding
// down, and is still range-checked. The ratio is taken at the exact value
// of its shortest decimal form, so 0.70 scales by exactly 7/10.
func (m Money) MulFloat(ratio float64) (Money, error) {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(ratio, 'g', -1, 64))
	if !ok {
		return Money{}, errors.New("money: ratio is not a finite number")
	}
	result := new(big.Int).Mul(m.val(), r.Num())
	result.Quo(result, r.Denom())
	if err := checkRange(result); err != nil {
		return Money{}, err
	}
	return Money{v: result}, nil
}

// Cmp compares m to other: -1, 0, or 1.
func (m Money) Cmp(other Money) int {
	return m.val().Cmp(other.val())
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.val().Sign() < 0
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.val().Sign() == 0
}

// String renders the value in decimal form, e.g. "100.000000000000000000".
func (m Money) String() string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(m.val(), scale, frac)
	if frac.Sign() < 0 {
		frac.Neg(frac)
	}
	fracStr := frac.String()
	for len(fracStr) < Decimals {
		fracStr = "0" + fracStr
	}
	return whole.String() + "." + fracStr
}

// MarshalBinary encodes the value as 16 bytes of two's-complement big
// endian, the wire format's amount(16)/fee(16) field (spec §6).
func (m Money) MarshalBinary() ([16]byte, error) {
	if err := checkRange(m.val()); err != nil {
		return [16]byte{}, err
	}

	var out [16]byte
	mag := new(big.Int).Abs(m.val())
	magBytes := mag.Bytes()
	if len(magBytes) > 16 {
		return [16]byte{}, ErrOverflow
	}
	copy(out[16-len(magBytes):], magBytes)

	if m.val().Sign() < 0 {
		// Two's complement negate in place.
		carry := uint16(1)
		for i := 15; i >= 0; i-- {
			v := uint16(^out[i]) + carry
			out[i] = byte(v)
			carry = v >> 8
		}
	}

	return out, nil
}

// UnmarshalMoney decodes the 16-byte two's-complement wire form.
func UnmarshalMoney(b [16]byte) Money {
	negative := b[0]&0x80 != 0

	work := make([]byte, 16)
	copy(work, b[:])

	if negative {
		carry := uint16(1)
		for i := 15; i >= 0; i-- {
			v := uint16(^work[i]) + carry
			work[i] = byte(v)
			carry = v >> 8
		}
	}

	mag := new(big.Int).SetBytes(work)
	if negative {
		mag.Neg(mag)
	}
	return Money{v: mag}
}

// MarshalJSON encodes the value as its raw scaled integer in a JSON string,
// used when accounts and contracts are snapshotted into the index and undo
// records rather than sent over the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.val().String() + `"`), nil
}

// UnmarshalJSON decodes the raw scaled integer written by MarshalJSON.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errors.New("money: invalid json value " + s)
	}
	if err := checkRange(v); err != nil {
		return err
	}
	m.v = v
	return nil
}
