package reports

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// NormalizeRows converts wide numeric values in every row to decimal strings so
// they survive JSON encoding unchanged. The input rows are not modified.
func NormalizeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = normalizeMap(row)
	}
	return out
}

// NormalizeValue walks maps and slices recursively. Integers of any width,
// big ints, decimals and driver byte slices become strings; everything else is
// returned as is.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case *big.Int:
		if val == nil {
			return nil
		}
		return val.String()
	case decimal.Decimal:
		return val.String()
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return val.String()
	case []byte:
		return string(val)
	case *any:
		// drivers without a scan type for computed columns
		if val == nil {
			return nil
		}
		return NormalizeValue(*val)
	case map[string]any:
		return normalizeMap(val)
	case []map[string]any:
		return NormalizeRows(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}
