package column

import "github.com/gvzproj/gvz/gvzerr"

// sentinel32 is the signed-32-bit value VCF/BCF-style formats use to
// mean "missing", distinct from a literal zero.
const sentinel32 int32 = -0x80000000 // 0x80000000 as a signed 32-bit value

// EncodeVarint32 appends the variable-length code for v to dst and
// returns the extended slice:
//
//	0                   -> 0                (1 byte)
//	0x80000000 sentinel -> 1                (1 byte)
//	0 <  v < 125        -> v+1              (1 byte)
//	-125 < v < 0         -> v+250            (1 byte)
//	2-byte magnitude +   -> 250, high, low
//	2-byte magnitude -   -> 251, high, low
//	3-byte magnitude +   -> 252, b2, b1, b0
//	3-byte magnitude -   -> 253, b2, b1, b0
//	4-byte magnitude +   -> 254, b3, b2, b1, b0
//	4-byte magnitude -   -> 255, b3, b2, b1, b0
func EncodeVarint32(dst []byte, v int32) []byte {
	switch {
	case v == 0:
		return append(dst, 0)
	case v == sentinel32:
		return append(dst, 1)
	case v > 0 && v < 125:
		return append(dst, byte(v+1))
	case v < 0 && v > -125:
		return append(dst, byte(v+250))
	}

	neg := v < 0
	mag := uint32(v)
	if neg {
		mag = uint32(-v)
	}

	switch {
	case mag < 1<<16:
		tag := byte(250)
		if neg {
			tag = 251
		}
		return append(dst, tag, byte(mag>>8), byte(mag))
	case mag < 1<<24:
		tag := byte(252)
		if neg {
			tag = 253
		}
		return append(dst, tag, byte(mag>>16), byte(mag>>8), byte(mag))
	default:
		tag := byte(254)
		if neg {
			tag = 255
		}
		return append(dst, tag, byte(mag>>24), byte(mag>>16), byte(mag>>8), byte(mag))
	}
}

// DecodeVarint32 decodes one value from the front of src per
// EncodeVarint32's scheme, returning the value and the number of bytes
// consumed. Returns gvzerr.ErrCorruptInput if src is too short or the
// lead byte is structurally invalid.
func DecodeVarint32(src []byte) (int32, int, error) {
	if len(src) == 0 {
		return 0, 0, gvzerr.ErrCorruptInput
	}
	lead := src[0]
	switch {
	case lead == 0:
		return 0, 1, nil
	case lead == 1:
		return sentinel32, 1, nil
	case lead >= 2 && lead <= 125:
		return int32(lead) - 1, 1, nil
	case lead >= 126 && lead <= 249:
		return int32(lead) - 250, 1, nil
	case lead == 250 || lead == 251:
		if len(src) < 3 {
			return 0, 0, gvzerr.ErrCorruptInput
		}
		mag := uint32(src[1])<<8 | uint32(src[2])
		if lead == 251 {
			return -int32(mag), 3, nil
		}
		return int32(mag), 3, nil
	case lead == 252 || lead == 253:
		if len(src) < 4 {
			return 0, 0, gvzerr.ErrCorruptInput
		}
		mag := uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
		if lead == 253 {
			return -int32(mag), 4, nil
		}
		return int32(mag), 4, nil
	case lead == 254 || lead == 255:
		if len(src) < 5 {
			return 0, 0, gvzerr.ErrCorruptInput
		}
		mag := uint32(src[1])<<24 | uint32(src[2])<<16 | uint32(src[3])<<8 | uint32(src[4])
		if lead == 255 {
			return -int32(mag), 5, nil
		}
		return int32(mag), 5, nil
	default:
		// Unreachable given the partition above covers every byte value
		// 0..255. The source contains an analogous "never should be
		// here" branch (see DESIGN.md, preserved per the Open
		// Questions rather than guessed at).
		return 0, 0, gvzerr.ErrCorruptInput
	}
}
