package row

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysqlx/internal/xerrors"
)

// decodeDecimal parses the X Protocol's packed-BCD DECIMAL wire format:
// byte 0 is the scale (digits after the decimal point); the remaining bytes
// are a sequence of 4-bit BCD digits, with the final nibble a sign marker
// (0xC positive, 0xD negative) and an optional leading 0xF pad nibble before
// the first digit when the digit count is even.
func decodeDecimal(f []byte) (decimal.Decimal, error) {
	if len(f) < 2 {
		return decimal.Decimal{}, xerrors.New(xerrors.MalformedPacket, "truncated DECIMAL field")
	}
	scale := int(f[0])
	nibbles := make([]byte, 0, (len(f)-1)*2)
	for _, b := range f[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	if len(nibbles) == 0 {
		return decimal.Decimal{}, xerrors.New(xerrors.MalformedPacket, "empty DECIMAL payload")
	}

	sign := nibbles[len(nibbles)-1]
	digitNibbles := nibbles[:len(nibbles)-1]
	if len(digitNibbles) > 0 && digitNibbles[0] == 0xf {
		digitNibbles = digitNibbles[1:]
	}

	var sb strings.Builder
	if sign == 0x0d {
		sb.WriteByte('-')
	}
	if len(digitNibbles) == 0 {
		sb.WriteByte('0')
	}
	for _, d := range digitNibbles {
		if d > 9 {
			return decimal.Decimal{}, xerrors.New(xerrors.MalformedPacket, "invalid DECIMAL BCD digit")
		}
		sb.WriteByte('0' + d)
	}

	digits := sb.String()
	if scale > 0 {
		neg := strings.HasPrefix(digits, "-")
		unsigned := strings.TrimPrefix(digits, "-")
		if len(unsigned) <= scale {
			unsigned = strings.Repeat("0", scale-len(unsigned)+1) + unsigned
		}
		intPart := unsigned[:len(unsigned)-scale]
		fracPart := unsigned[len(unsigned)-scale:]
		digits = intPart + "." + fracPart
		if neg {
			digits = "-" + digits
		}
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Decimal{}, xerrors.New(xerrors.MalformedPacket, "malformed DECIMAL value")
	}
	return d, nil
}
