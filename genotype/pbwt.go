// Package genotype implements the GenotypeCodec: the bias transform,
// missing-value remap, haplotype-major reorder, positional BWT, and
// run-length range coding used for the distinguished genotype-allele
// FORMAT column.
//
// The PBWT state machine (this file) is a direct port of
// original_source/src/pbwt.cpp's CPBWT::EncodeFlexible/DecodeFlexible:
// same adjust_size growing/shrinking-permutation bookkeeping, same
// "swap only if non-neglected" rule, same cumulative-histogram
// counting sort. Go idiom replaces raw vector<int> state with owned
// slices and bool retcodes with error returns.
package genotype

import "github.com/gvzproj/gvz/gvzerr"

// RunLength is one (symbol, length) pair emitted by PBWT forward and
// consumed by PBWT reverse.
type RunLength struct {
	Symbol uint32
	Length uint32
}

// PBWT holds the permutation state carried across successive rows of
// one genotype column.
type PBWT struct {
	permPrev     []int
	permCur      []int
	removedIDs   []int
	neglectLimit int
}

// NewPBWT creates PBWT state for noItems columns (samples × ploidy),
// with the given neglect_limit.
func NewPBWT(noItems, neglectLimit int) *PBWT {
	p := &PBWT{neglectLimit: neglectLimit}
	p.permPrev = identityPerm(noItems)
	p.permCur = make([]int, noItems)
	return p
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// adjustSize grows or shrinks permPrev to newSize, mirroring
// CPBWT::adjust_size exactly: growing fills the new slots from the
// remembered removed indices when that list holds at least newSize
// entries, and with fresh indices in order otherwise; shrinking
// remembers the indices being dropped for later reintroduction.
func (p *PBWT) adjustSize(newSize int) {
	pSize := len(p.permPrev)
	if newSize > pSize {
		grown := make([]int, newSize)
		copy(grown, p.permPrev)
		if len(p.removedIDs) < newSize {
			for i := pSize; i < newSize; i++ {
				grown[i] = i
			}
		} else {
			for i := pSize; i < newSize; i++ {
				grown[i] = p.removedIDs[i]
			}
		}
		p.permPrev = grown
	} else if newSize < pSize {
		if len(p.removedIDs) < pSize {
			grown := make([]int, pSize)
			copy(grown, p.removedIDs)
			p.removedIDs = grown
		}
		kept := make([]int, 0, newSize)
		removedPos := newSize
		for _, x := range p.permPrev {
			if x >= newSize {
				if removedPos < len(p.removedIDs) {
					p.removedIDs[removedPos] = x
				}
				removedPos++
			} else {
				kept = append(kept, x)
			}
		}
		p.permPrev = kept
	}
}

// calcCumulativeHistogram builds an exclusive-prefix-sum histogram
// over symbols 0..maxVal from values, returning (hist, maxCount).
func calcCumulativeHistogram(values []uint32, maxVal uint32) ([]uint32, uint32) {
	counts := make([]uint32, maxVal+1)
	for _, v := range values {
		counts[v]++
	}
	var maxCount uint32
	hist := make([]uint32, maxVal+1)
	var running uint32
	for s, c := range counts {
		hist[s] = running
		running += c
		if c > maxCount {
			maxCount = c
		}
	}
	return hist, maxCount
}

func calcCumulativeHistogramRLE(rle []RunLength, maxVal uint32) ([]uint32, uint32) {
	counts := make([]uint32, maxVal+1)
	for _, r := range rle {
		counts[r.Symbol] += r.Length
	}
	var maxCount uint32
	hist := make([]uint32, maxVal+1)
	var running uint32
	for s, c := range counts {
		hist[s] = running
		running += c
		if c > maxCount {
			maxCount = c
		}
	}
	return hist, maxCount
}

// EncodeFlexible runs one row of PBWT forward, returning its RLE
// encoding of the permuted symbol sequence. maxVal is the largest
// legal symbol value this row may contain.
func (p *PBWT) EncodeFlexible(maxVal uint32, input []uint32) []RunLength {
	cSize := len(input)
	hist, maxCount := calcCumulativeHistogram(input, maxVal)

	var permPrev0 []int
	if cSize != len(p.permPrev) {
		if uint32(cSize)-maxCount < uint32(p.neglectLimit) {
			permPrev0 = append([]int(nil), p.permPrev...)
		}
		p.adjustSize(cSize)
	}

	p.permCur = make([]int, cSize)

	var rle []RunLength
	prevSymbol := input[p.permPrev[0]]
	var runLen uint32

	for i := 0; i < cSize; i++ {
		curSymbol := input[p.permPrev[i]]
		if curSymbol == prevSymbol {
			runLen++
		} else {
			rle = append(rle, RunLength{Symbol: prevSymbol, Length: runLen})
			prevSymbol = curSymbol
			runLen = 1
		}
		p.permCur[hist[curSymbol]] = p.permPrev[i]
		hist[curSymbol]++
	}
	rle = append(rle, RunLength{Symbol: prevSymbol, Length: runLen})

	if uint32(cSize)-maxCount >= uint32(p.neglectLimit) {
		p.permPrev, p.permCur = p.permCur, p.permPrev
	} else if permPrev0 != nil {
		p.permPrev = permPrev0
	}

	return rle
}

// DecodeFlexible reverses EncodeFlexible, recovering the sample-order
// symbol sequence from its RLE encoding.
func (p *PBWT) DecodeFlexible(maxVal uint32, rle []RunLength) ([]uint32, error) {
	var noItems uint32
	for _, r := range rle {
		noItems += r.Length
	}
	output := make([]uint32, noItems)

	hist, maxCount := calcCumulativeHistogramRLE(rle, maxVal)
	cSize := int(noItems)

	var permPrev0 []int
	if cSize != len(p.permPrev) {
		if noItems-maxCount < uint32(p.neglectLimit) {
			permPrev0 = append([]int(nil), p.permPrev...)
		}
		p.adjustSize(cSize)
	}

	if len(rle) == 0 {
		return output, nil
	}

	rleIdx := 0
	curSymbol := rle[0].Symbol
	curCnt := rle[0].Length
	if curCnt == 0 {
		return nil, gvzerr.ErrCorruptInput
	}

	p.permCur = make([]int, noItems)

	for i := uint32(0); i < noItems; i++ {
		if int(i) >= len(p.permPrev) {
			return nil, gvzerr.ErrCorruptInput
		}
		output[p.permPrev[i]] = curSymbol

		p.permCur[hist[curSymbol]] = p.permPrev[i]
		hist[curSymbol]++

		curCnt--
		if curCnt == 0 {
			rleIdx++
			if i+1 < noItems {
				if rleIdx >= len(rle) {
					return nil, gvzerr.ErrCorruptInput
				}
				curSymbol = rle[rleIdx].Symbol
				curCnt = rle[rleIdx].Length
			}
		}
	}

	if noItems-maxCount >= uint32(p.neglectLimit) {
		p.permPrev, p.permCur = p.permCur, p.permPrev
	} else if permPrev0 != nil {
		p.permPrev = permPrev0
	}

	return output, nil
}
