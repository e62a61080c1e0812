// Package entropy implements the three frequency-model flavors used by
// the range coder: a dense simple model, a sparse adjustable model that
// promotes itself to dense once populated enough, and an adjustable
// model with an inline small-set fast path.
//
// All three share one rescale rule: once the total reaches 2^LogCounter,
// every counter is ceiling-halved (so a counter never drops to zero) and
// the total is recomputed.
package entropy

// Params bundles the three compile-time-ish tunables the source
// templatizes on: alphabet size, rescale threshold (as a log2), and the
// per-update counter increment.
type Params struct {
	Alphabet   int
	LogCounter uint
	Adder      uint32
}

func (p Params) maxTotal() uint32 {
	return 1 << p.LogCounter
}

// Simple is a dense array of counters, one per symbol. Matches
// CSimpleModel: every symbol starts at weight 1.
type Simple struct {
	p     Params
	stats []uint32
	total uint32
}

// NewSimple creates a dense model with every symbol initialized to 1.
func NewSimple(p Params) *Simple {
	s := &Simple{p: p, stats: make([]uint32, p.Alphabet)}
	for i := range s.stats {
		s.stats[i] = 1
	}
	s.total = uint32(p.Alphabet)
	return s
}

func (s *Simple) rescale() {
	for s.total >= s.p.maxTotal() {
		s.total = 0
		for i := range s.stats {
			s.stats[i] = (s.stats[i] + 1) / 2
			s.total += s.stats[i]
		}
	}
}

// GetFreq returns (symFreq, cumFreq, total) for symbol, summing the
// counters below symbol left to right for every alphabet size.
func (s *Simple) GetFreq(symbol int) (uint32, uint32, uint32) {
	var cum uint32
	for i := 0; i < symbol; i++ {
		cum += s.stats[i]
	}
	return s.stats[symbol], cum, s.total
}

// Update folds one occurrence of symbol into the model, rescaling if
// the total has reached the model's ceiling.
func (s *Simple) Update(symbol int) {
	s.stats[symbol] += s.p.Adder
	s.total += s.p.Adder
	if s.total >= s.p.maxTotal() {
		s.rescale()
	}
}

// GetSym returns the symbol whose cumulative range contains cum.
func (s *Simple) GetSym(cum uint32) int {
	var t uint32
	for i, v := range s.stats {
		t += v
		if t > cum {
			return i
		}
	}
	return -1
}

// GetTotal returns the model's current total frequency.
func (s *Simple) GetTotal() uint32 { return s.total }

// adjEntry is one (symbol, counter) pair in an Adjustable model's
// sparse set, kept sorted by symbol.
type adjEntry struct {
	symbol uint32
	count  uint32
}

// Adjustable is a sorted sparse list of (symbol, counter) pairs while
// the populated set stays below floor(alphabet/3); beyond that it
// rewrites itself into a dense counter array and never converts back
// for that instance. Unseen symbols report frequency 1.
type Adjustable struct {
	p            Params
	sparse       []adjEntry // sorted by symbol, only while dense == nil
	dense        []uint32   // nil until promoted
	total        uint32
	compactLimit int
}

// NewAdjustable creates an empty adjustable model.
func NewAdjustable(p Params) *Adjustable {
	limit := p.Alphabet / 3
	if limit < 4 {
		limit = 4
	}
	return &Adjustable{p: p, total: uint32(p.Alphabet), compactLimit: limit}
}

func (a *Adjustable) promote() {
	dense := make([]uint32, a.p.Alphabet)
	for i := range dense {
		dense[i] = 1
	}
	for _, e := range a.sparse {
		dense[e.symbol] = e.count + 1
	}
	a.dense = dense
	a.sparse = nil
}

func (a *Adjustable) findSparse(symbol uint32) (int, bool) {
	lo, hi := 0, len(a.sparse)
	for lo < hi {
		mid := (lo + hi) / 2
		if a.sparse[mid].symbol < symbol {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(a.sparse) && a.sparse[lo].symbol == symbol {
		return lo, true
	}
	return lo, false
}

// GetFreq returns (symFreq, cumFreq, total) for symbol.
func (a *Adjustable) GetFreq(symbol int) (uint32, uint32, uint32) {
	if a.dense != nil {
		var cum uint32
		for i := 0; i < symbol; i++ {
			cum += a.dense[i]
		}
		return a.dense[symbol], cum, a.total
	}

	sym := uint32(symbol)
	symFreq := uint32(1)
	if idx, ok := a.findSparse(sym); ok {
		symFreq = a.sparse[idx].count + 1
	}
	return symFreq, symCumAdjust(a.sparse, sym), a.total
}

// symCumAdjust computes the cumulative frequency below sym: every
// symbol contributes at least 1, plus whatever extra the sparse entry
// recorded.
func symCumAdjust(sparse []adjEntry, sym uint32) uint32 {
	cum := sym // baseline: every unseen symbol below `sym` contributes 1
	for _, e := range sparse {
		if e.symbol >= sym {
			break
		}
		cum += e.count
	}
	return cum
}

// Update folds one occurrence of symbol into the model, promoting to a
// dense array if the sparse set has grown past the compact limit.
func (a *Adjustable) Update(symbol int) {
	sym := uint32(symbol)
	if a.dense != nil {
		a.dense[symbol] += a.p.Adder
		a.total += a.p.Adder
		if a.total >= a.p.maxTotal() {
			a.rescaleDense()
		}
		return
	}

	idx, ok := a.findSparse(sym)
	if ok {
		a.sparse[idx].count += a.p.Adder
	} else {
		a.sparse = append(a.sparse, adjEntry{})
		copy(a.sparse[idx+1:], a.sparse[idx:])
		a.sparse[idx] = adjEntry{symbol: sym, count: a.p.Adder}
	}
	a.total += a.p.Adder

	if len(a.sparse) >= a.compactLimit {
		a.promote()
	}
	if a.total >= a.p.maxTotal() {
		if a.dense != nil {
			a.rescaleDense()
		} else {
			a.rescaleSparse()
		}
	}
}

func (a *Adjustable) rescaleDense() {
	for a.total >= a.p.maxTotal() {
		a.total = 0
		for i := range a.dense {
			a.dense[i] = (a.dense[i] + 1) / 2
			a.total += a.dense[i]
		}
	}
}

func (a *Adjustable) rescaleSparse() {
	for a.total >= a.p.maxTotal() {
		a.total = uint32(a.p.Alphabet)
		for i := range a.sparse {
			a.sparse[i].count = a.sparse[i].count / 2
			a.total += a.sparse[i].count
		}
	}
}

// GetSym returns the symbol whose cumulative range contains cum.
func (a *Adjustable) GetSym(cum uint32) int {
	if a.dense != nil {
		var t uint32
		for i, v := range a.dense {
			t += v
			if t > cum {
				return i
			}
		}
		return -1
	}

	var t uint32
	last := uint32(0)
	for _, e := range a.sparse {
		// symbols strictly between `last` and e.symbol each contribute 1
		gap := e.symbol - last
		if cum < t+gap {
			return int(last + (cum - t))
		}
		t += gap
		if cum < t+e.count+1 {
			return int(e.symbol)
		}
		t += e.count + 1
		last = e.symbol + 1
	}
	gap := uint32(a.p.Alphabet) - last
	if cum < t+gap {
		return int(last + (cum - t))
	}
	return -1
}

// GetTotal returns the model's current total frequency.
func (a *Adjustable) GetTotal() uint32 { return a.total }

// AdjustableEmbedded has the identical contract to Adjustable; it adds
// an inline two-pair fast path so models that never grow past two
// distinct symbols skip the general sparse-list machinery entirely.
type AdjustableEmbedded struct {
	p        Params
	sym0     uint32
	cnt0     uint32
	sym1     uint32
	cnt1     uint32
	nInline  int // 0, 1, or 2 populated inline slots
	fallback *Adjustable
	total    uint32
}

// NewAdjustableEmbedded creates an empty embedded-adjustable model.
func NewAdjustableEmbedded(p Params) *AdjustableEmbedded {
	return &AdjustableEmbedded{p: p, total: uint32(p.Alphabet)}
}

func (e *AdjustableEmbedded) spill() {
	e.fallback = NewAdjustable(e.p)
	e.fallback.total = uint32(e.p.Alphabet)
	if e.nInline >= 1 {
		e.fallback.sparse = append(e.fallback.sparse, adjEntry{symbol: e.sym0, count: e.cnt0})
	}
	if e.nInline >= 2 {
		if e.sym1 < e.sym0 {
			e.fallback.sparse = []adjEntry{{symbol: e.sym1, count: e.cnt1}, {symbol: e.sym0, count: e.cnt0}}
		} else {
			e.fallback.sparse = append(e.fallback.sparse, adjEntry{symbol: e.sym1, count: e.cnt1})
		}
	}
	e.fallback.total = e.total
}

// GetFreq returns (symFreq, cumFreq, total) for symbol.
func (e *AdjustableEmbedded) GetFreq(symbol int) (uint32, uint32, uint32) {
	if e.fallback != nil {
		return e.fallback.GetFreq(symbol)
	}
	sym := uint32(symbol)
	cum := sym
	symFreq := uint32(1)
	if e.nInline >= 1 {
		if e.sym0 < sym {
			cum += e.cnt0
		} else if e.sym0 == sym {
			symFreq = e.cnt0 + 1
		}
	}
	if e.nInline >= 2 {
		if e.sym1 < sym {
			cum += e.cnt1
		} else if e.sym1 == sym {
			symFreq = e.cnt1 + 1
		}
	}
	return symFreq, cum, e.total
}

// Update folds one occurrence of symbol into the model.
func (e *AdjustableEmbedded) Update(symbol int) {
	if e.fallback != nil {
		e.fallback.Update(symbol)
		e.total = e.fallback.total
		return
	}
	sym := uint32(symbol)
	switch {
	case e.nInline >= 1 && e.sym0 == sym:
		e.cnt0 += e.p.Adder
	case e.nInline >= 2 && e.sym1 == sym:
		e.cnt1 += e.p.Adder
	case e.nInline == 0:
		e.sym0, e.cnt0 = sym, e.p.Adder
		e.nInline = 1
	case e.nInline == 1:
		e.sym1, e.cnt1 = sym, e.p.Adder
		e.nInline = 2
	default:
		e.spill()
		e.fallback.Update(symbol)
		e.total = e.fallback.total
		return
	}
	e.total += e.p.Adder
	if e.total >= e.p.maxTotal() {
		e.cnt0 = (e.cnt0 + 1) / 2
		e.cnt1 = (e.cnt1 + 1) / 2
		e.total = uint32(e.p.Alphabet) + e.cnt0 + e.cnt1
	}
}

// GetSym returns the symbol whose cumulative range contains cum.
func (e *AdjustableEmbedded) GetSym(cum uint32) int {
	if e.fallback != nil {
		return e.fallback.GetSym(cum)
	}
	// Reconstruct via the same ordering GetFreq relies on.
	type pair struct {
		sym   uint32
		count uint32
	}
	var pairs []pair
	if e.nInline >= 1 {
		pairs = append(pairs, pair{e.sym0, e.cnt0})
	}
	if e.nInline >= 2 {
		pairs = append(pairs, pair{e.sym1, e.cnt1})
	}
	if len(pairs) == 2 && pairs[0].sym > pairs[1].sym {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	var t uint32
	last := uint32(0)
	for _, p := range pairs {
		gap := p.sym - last
		if cum < t+gap {
			return int(last + (cum - t))
		}
		t += gap
		if cum < t+p.count+1 {
			return int(p.sym)
		}
		t += p.count + 1
		last = p.sym + 1
	}
	gap := uint32(e.p.Alphabet) - last
	if cum < t+gap {
		return int(last + (cum - t))
	}
	return -1
}

// GetTotal returns the model's current total frequency.
func (e *AdjustableEmbedded) GetTotal() uint32 { return e.total }
