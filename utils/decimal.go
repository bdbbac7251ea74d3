package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidDecimal = errors.New("invalid value")

// ParseDecimal accepts decimals as they arrive from JSON bodies and from the
// aggregation rows: strings (with thousands separators or a "Rs"/"INR"
// prefix), json.Number, floats, integers, big ints, driver byte slices and
// decimal.Decimal.
func ParseDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, ErrInvalidDecimal
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, ErrInvalidDecimal
		}
		return *v, nil
	case string:
		return parseDecimalString(v)
	case []byte:
		return parseDecimalString(string(v))
	case json.Number:
		return parseDecimalString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(v)), 0), nil
	case uint32:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	case *big.Int:
		if v == nil {
			return decimal.Zero, ErrInvalidDecimal
		}
		return decimal.NewFromBigInt(v, 0), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidDecimal, value)
	}
}

// ParseDecimalOrZero never fails; anything unparsable is 0.
func ParseDecimalOrZero(value any) decimal.Decimal {
	d, err := ParseDecimal(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDecimalString(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s != "" {
		s = strings.ReplaceAll(s, ",", "")
		for _, prefix := range []string{"INR", "inr", "Rs.", "rs.", "Rs", "rs", "₹"} {
			s = strings.TrimPrefix(s, prefix)
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return decimal.Zero, ErrInvalidDecimal
	}
	val, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDecimal, raw)
	}
	return val, nil
}

// FlexDecimal unmarshals from a JSON number or a formatted string, using the
// same rules as ParseDecimal. JSON null leaves the pointer holding it nil.
type FlexDecimal struct {
	decimal.Decimal
}

func NewFlexDecimal(d decimal.Decimal) *FlexDecimal {
	return &FlexDecimal{Decimal: d}
}

func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	d, err := ParseDecimal(raw)
	if err != nil {
		return err
	}
	f.Decimal = d
	return nil
}

func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	return f.Decimal.MarshalJSON()
}
