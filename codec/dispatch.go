package codec

import "github.com/gvzproj/gvz/column"

// route is the per-key codec choice: genotype, FORMAT, INFO, or
// generic. routeFormatOne and routeInfoOne name the FormatCodec family
// as a whole, not just its "one value per sample/record" case: the
// size-vector-driven sub-mode (one/many for FORMAT; zero/one/zero-one/
// zero-constant/constant-s/any for INFO) is a second dispatch made
// inside formatEncColumn/infoEncColumn from each column's own observed
// per-row counts, since that shape can't be known from a Key alone.
type route int

const (
	routeGenotype route = iota
	routeFormatOne
	routeInfoOne
	routeGeneric
)

// chooseRoute implements the dispatch rule exactly: the genotype key
// always wins, then FORMAT int/real (or opt-in string) goes through
// FormatCodec-format, INFO int/real through FormatCodec-info, and
// everything else (FILTER flags, free-text FORMAT/INFO, opt-out
// strings) takes the generic ColumnBuffer+BlockCoder path.
func chooseRoute(k column.Key, formatCodecStrings bool) route {
	if k.IsGenotype {
		return routeGenotype
	}
	switch k.Kind {
	case column.KindFormat:
		switch k.ValueType {
		case column.ValueInt, column.ValueReal:
			return routeFormatOne
		case column.ValueString:
			if formatCodecStrings {
				return routeFormatOne
			}
		}
	case column.KindInfo:
		if k.ValueType == column.ValueInt || k.ValueType == column.ValueReal {
			return routeInfoOne
		}
	}
	return routeGeneric
}

// cellType picks the ColumnBuffer append rule for a key taking the
// generic path.
func cellType(k column.Key) column.CellType {
	switch k.ValueType {
	case column.ValueFlag:
		return column.CellFlag
	case column.ValueInt:
		return column.CellInt
	case column.ValueReal:
		return column.CellReal
	default:
		return column.CellText
	}
}
