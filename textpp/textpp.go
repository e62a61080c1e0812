// Package textpp implements a reversible text preprocessing pass used
// ahead of the generic block coder for string-valued columns: strings
// of digits, bases, bar-separated lists, and runs of zeros collapse to
// compact codes, and words seen often enough get promoted into a
// per-block dictionary.
//
// Grounded on ha1tch/unz/pkg/bpe, adapted from a static pretrained
// vocabulary loaded once via LoadTiktoken into a dynamic one built as
// text is seen: the word dictionary is a pair of Go maps (occurrence
// counts and assigned codes), with codes assigned in insertion order
// the way bpe.Vocabulary assigns IDs in rank order.
package textpp

import (
	"bytes"
)

const promoteAt = 16

// tokenKind classifies one tokenizer step.
type tokenKind int

const (
	tokWord tokenKind = iota
	tokBase
	tokNumber
	tokZeroRun
	tokBars
	tokPlain
)

type token struct {
	kind tokenKind
	text []byte // raw bytes consumed (for word/number/zero_run/bars/base); 1 byte for plain
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '(' || b == ')' || b == '&' || b == '/':
		return true
	}
	return false
}

func isDigit19(b byte) bool { return b >= '1' && b <= '9' }
func isDigit09(b byte) bool { return b >= '0' && b <= '9' }
func isBase(b byte) bool    { return b == 'A' || b == 'C' || b == 'G' || b == 'T' }

// tokenize splits src into the tokenKind sequence described in the
// package doc. Word runs shorter than 6 bytes fall through to plain.
func tokenize(src []byte) []token {
	var toks []token
	i := 0
	for i < len(src) {
		b := src[i]

		if isBase(b) && i+1 < len(src) && src[i+1] == ':' {
			toks = append(toks, token{kind: tokBase, text: src[i : i+2]})
			i += 2
			continue
		}

		if b == '0' {
			j := i
			for j < len(src) && src[j] == '0' {
				j++
			}
			toks = append(toks, token{kind: tokZeroRun, text: src[i:j]})
			i = j
			continue
		}

		if isDigit19(b) {
			j := i + 1
			for j < len(src) && j-i < 15 && isDigit09(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j]})
			i = j
			continue
		}

		if b == '|' {
			j := i
			for j < len(src) && src[j] == '|' {
				j++
			}
			toks = append(toks, token{kind: tokBars, text: src[i:j]})
			i = j
			continue
		}

		if isWordByte(b) {
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			if j-i >= 6 {
				toks = append(toks, token{kind: tokWord, text: src[i:j]})
				i = j
				continue
			}
		}

		toks = append(toks, token{kind: tokPlain, text: src[i : i+1]})
		i++
	}
	return toks
}

// dict is the dynamic per-archive-block word dictionary: words are
// inserted as seen and promoted to a code once their occurrence count
// reaches promoteAt, mirroring bpe.Vocabulary's rank-ordered ID
// assignment but built incrementally instead of up front.
type dict struct {
	counts map[string]int
	codeOf map[string]int
	order  []string // words in assigned-code order, for dictionary serialization
}

func newDict() *dict {
	return &dict{counts: make(map[string]int), codeOf: make(map[string]int)}
}

// touch records one occurrence of word, promoting it to a dictionary
// code the moment its count reaches promoteAt. Returns the code and
// true if word already has one (this occurrence included).
func (d *dict) touch(word string) (int, bool) {
	if code, ok := d.codeOf[word]; ok {
		return code, true
	}
	d.counts[word]++
	if d.counts[word] >= promoteAt {
		code := len(d.order)
		d.codeOf[word] = code
		d.order = append(d.order, word)
		return code, true
	}
	return 0, false
}

// Encoder performs the TextPP forward transform over one archive block.
// A fresh Encoder must be used per block: the dictionary is block-local.
type Encoder struct {
	d *dict
}

// NewEncoder creates an empty per-block encoder.
func NewEncoder() *Encoder {
	return &Encoder{d: newDict()}
}

// Encode transforms src into the output byte alphabet described in the
// package doc, returning the coded payload. The dictionary additions
// made this block are available via DictBytes after Encode returns.
func (e *Encoder) Encode(src []byte) []byte {
	var out bytes.Buffer
	toks := tokenize(src)

	for _, t := range toks {
		switch t.kind {
		case tokBase:
			switch t.text[0] {
			case 'A':
				out.WriteByte(1)
			case 'C':
				out.WriteByte(2)
			case 'G':
				out.WriteByte(3)
			case 'T':
				out.WriteByte(4)
			}
		case tokPlain:
			out.WriteByte(t.text[0])
		case tokNumber:
			writeNumber(&out, t.text)
		case tokZeroRun:
			writeRunOf(&out, len(t.text), 228, 10)
		case tokBars:
			writeRunOf(&out, len(t.text), 238, 15)
		case tokWord:
			code, has := e.d.touch(string(t.text))
			if !has {
				// not yet promoted: fall through as plain bytes
				for _, b := range t.text {
					out.WriteByte(b)
				}
				continue
			}
			writeWordRef(&out, code)
		}
	}
	return out.Bytes()
}

// DictBytes serializes the dictionary entries added this block as a
// '\n'-terminated list followed by a NUL terminator, for the caller to
// prepend ahead of the coded payload.
func (e *Encoder) DictBytes() []byte {
	var out bytes.Buffer
	for _, w := range e.d.order {
		out.WriteString(w)
		out.WriteByte('\n')
	}
	out.WriteByte(0)
	return out.Bytes()
}

func writeNumber(out *bytes.Buffer, digits []byte) {
	// Interpret as a base-100 big-endian number, one code byte (128..227)
	// per base-100 digit, up to 8 code bytes.
	v := int64(0)
	for _, b := range digits {
		v = v*10 + int64(b-'0')
	}
	var be []byte
	for v > 0 {
		be = append([]byte{byte(v % 100)}, be...)
		v /= 100
	}
	if len(be) == 0 {
		be = []byte{0}
	}
	for _, d := range be {
		out.WriteByte(128 + d)
	}
}

func writeRunOf(out *bytes.Buffer, n int, base byte, max int) {
	for n > 0 {
		chunk := n
		if chunk > max {
			chunk = max
		}
		out.WriteByte(base + byte(chunk-1))
		n -= chunk
	}
}

func writeWordRef(out *bytes.Buffer, code int) {
	switch {
	case code < 256:
		out.WriteByte(255)
		out.WriteByte(byte(code))
	case code < 65536:
		out.WriteByte(254)
		out.WriteByte(byte(code >> 8))
		out.WriteByte(byte(code))
	default:
		out.WriteByte(253)
		out.WriteByte(byte(code >> 16))
		out.WriteByte(byte(code >> 8))
		out.WriteByte(byte(code))
	}
}

// Decoder reverses Encoder's transform, given the dictionary additions
// recorded for the block (shared state rebuilt from DictBytes).
type Decoder struct {
	words []string // dictionary in code-assignment order
}

// NewDecoder creates a decoder whose word list starts as words. Word
// codes in a payload index this list from 0, so a block written by a
// fresh Encoder is decoded from a nil seed.
func NewDecoder(words []string) *Decoder {
	cp := make([]string, len(words))
	copy(cp, words)
	return &Decoder{words: cp}
}

// ReadDict consumes a '\n'-terminated, NUL-terminated dictionary
// addition list from the front of src, appending the new words to the
// decoder's word list and returning the number of bytes consumed.
func (d *Decoder) ReadDict(src []byte) int {
	i := 0
	for i < len(src) && src[i] != 0 {
		j := i
		for j < len(src) && src[j] != '\n' {
			j++
		}
		d.words = append(d.words, string(src[i:j]))
		i = j + 1
	}
	return i + 1 // consume the NUL terminator too
}

// Words returns the decoder's current dictionary, in code order.
func (d *Decoder) Words() []string { return d.words }

// Decode reverses Encode, given the coded payload following the
// dictionary prefix already consumed via ReadDict.
func (d *Decoder) Decode(src []byte) []byte {
	var out bytes.Buffer
	i := 0
	for i < len(src) {
		b := src[i]
		switch {
		case b >= 1 && b <= 4:
			out.WriteByte("ACGT"[b-1])
			out.WriteByte(':')
			i++
		case b >= 5 && b <= 127:
			out.WriteByte(b)
			i++
		case b >= 128 && b <= 227:
			j := i
			var v int64
			for j < len(src) && src[j] >= 128 && src[j] <= 227 {
				v = v*100 + int64(src[j]-128)
				j++
			}
			out.WriteString(formatInt(v))
			i = j
		case b >= 228 && b <= 237:
			n := int(b-228) + 1
			for k := 0; k < n; k++ {
				out.WriteByte('0')
			}
			i++
		case b >= 238 && b <= 252:
			n := int(b-238) + 1
			for k := 0; k < n; k++ {
				out.WriteByte('|')
			}
			i++
		case b == 255:
			code := int(src[i+1])
			out.WriteString(d.words[code])
			i += 2
		case b == 254:
			code := int(src[i+1])<<8 | int(src[i+2])
			out.WriteString(d.words[code])
			i += 3
		case b == 253:
			code := int(src[i+1])<<16 | int(src[i+2])<<8 | int(src[i+3])
			out.WriteString(d.words[code])
			i += 4
		default: // b == 0, end-of-dict sentinel should not appear mid-payload
			i++
		}
	}
	return out.Bytes()
}

func formatInt(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
