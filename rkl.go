package coredbx

import "sort"

// rkl is a reclaimable-key list: a set of txnids held as a single contiguous
// run [solidBegin, solidEnd) together with a sorted sparse list of the ids
// outside it. An id pushed next to the run extends the run, and absorb folds
// list entries that have become adjacent to it; a run of consecutive ids
// already in the list is not moved into the solid run. It backs the GC bookkeeping that tracks which retired-page
// txnids have been read back from FreeDBI (and are pending deletion) during
// a transaction, grounded on original_source/src/rkl.c.
//
// The zero value is an empty rkl ready to use: solidBegin >= solidEnd holds
// trivially for 0 >= 0, and a nil list is an empty list.
type rkl struct {
	solidBegin, solidEnd txnid
	list                 []txnid
}

func (r *rkl) solidEmpty() bool {
	return r.solidBegin >= r.solidEnd
}

func (r *rkl) empty() bool {
	return r.solidEmpty() && len(r.list) == 0
}

func (r *rkl) clear() {
	r.solidBegin, r.solidEnd = 0, 0
	r.list = r.list[:0]
}

func (r *rkl) len() int {
	n := len(r.list)
	if !r.solidEmpty() {
		n += int(r.solidEnd - r.solidBegin)
	}
	return n
}

// contain reports whether id is a member: r.contain(i) <=>
// (solidBegin <= i < solidEnd) || i is in the sparse list.
func (r *rkl) contain(id txnid) bool {
	if !r.solidEmpty() && id >= r.solidBegin && id < r.solidEnd {
		return true
	}
	i := sort.Search(len(r.list), func(i int) bool { return r.list[i] >= id })
	return i < len(r.list) && r.list[i] == id
}

func (r *rkl) listSearch(id txnid) int {
	return sort.Search(len(r.list), func(i int) bool { return r.list[i] >= id })
}

func (r *rkl) listInsert(id txnid) {
	i := r.listSearch(id)
	if i < len(r.list) && r.list[i] == id {
		return
	}
	r.list = append(r.list, 0)
	copy(r.list[i+1:], r.list[i:])
	r.list[i] = id
}

func (r *rkl) listRemoveAt(i int) {
	r.list = append(r.list[:i], r.list[i+1:]...)
}

// absorb pulls any sparse list entries adjacent to the solid run into the
// run, so the two representations stay disjoint (an invariant rklCheck
// verifies).
func (r *rkl) absorb() {
	if r.solidEmpty() {
		return
	}
	for {
		i := r.listSearch(r.solidBegin - 1)
		if i < len(r.list) && r.list[i] == r.solidBegin-1 {
			r.solidBegin--
			r.listRemoveAt(i)
			continue
		}
		break
	}
	for {
		i := r.listSearch(r.solidEnd)
		if i < len(r.list) && r.list[i] == r.solidEnd {
			r.solidEnd++
			r.listRemoveAt(i)
			continue
		}
		break
	}
}

// push adds id to the set, reporting whether it was newly added. An id
// adjacent to the solid run extends the run; otherwise it lands in the
// sparse list. Pushing the first id of an empty rkl opens a one-element
// solid run rather than a one-element list, matching rkl_push's behavior
// of preferring the solid representation when nothing disambiguates yet.
func (r *rkl) push(id txnid) bool {
	if r.contain(id) {
		return false
	}
	if r.solidEmpty() {
		r.solidBegin, r.solidEnd = id, id+1
		r.absorb()
		return true
	}
	switch {
	case id+1 == r.solidBegin:
		r.solidBegin = id
	case id == r.solidEnd:
		r.solidEnd = id + 1
	default:
		r.listInsert(id)
	}
	r.absorb()
	return true
}

// pop removes and returns either the lowest (highest=false) or highest
// (highest=true) member of the set.
func (r *rkl) pop(highest bool) (txnid, bool) {
	if r.empty() {
		return 0, false
	}
	if highest {
		if len(r.list) > 0 && (r.solidEmpty() || r.list[len(r.list)-1] > r.solidEnd) {
			id := r.list[len(r.list)-1]
			r.list = r.list[:len(r.list)-1]
			return id, true
		}
		id := r.solidEnd - 1
		r.solidEnd--
		return id, true
	}
	if len(r.list) > 0 && (r.solidEmpty() || r.list[0] < r.solidBegin) {
		id := r.list[0]
		r.list = r.list[1:]
		return id, true
	}
	id := r.solidBegin
	r.solidBegin++
	return id, true
}

func (r *rkl) lowest() (txnid, bool) {
	if r.empty() {
		return 0, false
	}
	if len(r.list) > 0 && (r.solidEmpty() || r.list[0] < r.solidBegin) {
		return r.list[0], true
	}
	return r.solidBegin, true
}

func (r *rkl) highest() (txnid, bool) {
	if r.empty() {
		return 0, false
	}
	if len(r.list) > 0 && (r.solidEmpty() || r.list[len(r.list)-1] >= r.solidEnd) {
		return r.list[len(r.list)-1], true
	}
	return r.solidEnd - 1, true
}

// merge folds src's members into r. src is left untouched.
func (r *rkl) merge(src *rkl) {
	if src == nil {
		return
	}
	for id := src.solidBegin; id < src.solidEnd; id++ {
		r.push(id)
	}
	for _, id := range src.list {
		r.push(id)
	}
}

// check validates the representation invariant: the sparse list is sorted,
// deduplicated, and disjoint from the solid run. It is the Go counterpart
// of rkl_check and is meant for tests and debug assertions, not hot paths.
func (r *rkl) check() bool {
	for i := 1; i < len(r.list); i++ {
		if r.list[i-1] >= r.list[i] {
			return false
		}
	}
	if !r.solidEmpty() {
		for _, id := range r.list {
			if id >= r.solidBegin && id < r.solidEnd {
				return false
			}
		}
	}
	return true
}

// solidOffset returns the index in r.list of the first entry that is not
// below the solid run, i.e. where the run sits in the logical merged order
// of (sparse entries below the run, the run itself, sparse entries above).
func (r *rkl) solidOffset() int {
	if r.solidEmpty() || len(r.list) == 0 {
		return 0
	}
	return r.listSearch(r.solidBegin)
}

// at returns the id at logical position pos (0-based) in ascending order
// across the merged list+run representation.
func (r *rkl) at(pos int) txnid {
	off := r.solidOffset()
	runLen := 0
	if !r.solidEmpty() {
		runLen = int(r.solidEnd - r.solidBegin)
	}
	switch {
	case pos < off:
		return r.list[pos]
	case pos < off+runLen:
		return r.solidBegin + txnid(pos-off)
	default:
		return r.list[pos-runLen]
	}
}

// rklIter walks an rkl's members in ascending or descending order.
type rklIter struct {
	r       *rkl
	pos     int
	reverse bool
}

// iterator returns an iterator positioned before the first element
// (reverse=false) or after the last element (reverse=true), so that the
// first turn() call yields the lowest, respectively highest, member.
func (r *rkl) iterator(reverse bool) *rklIter {
	pos := 0
	if reverse {
		pos = r.len()
	}
	return &rklIter{r: r, pos: pos, reverse: reverse}
}

// turn advances the iterator one step in its configured direction and
// returns the id it lands on, or ok=false when exhausted.
func (it *rklIter) turn() (txnid, bool) {
	if it.reverse {
		if it.pos == 0 {
			return 0, false
		}
		it.pos--
		return it.r.at(it.pos), true
	}
	if it.pos >= it.r.len() {
		return 0, false
	}
	id := it.r.at(it.pos)
	it.pos++
	return id, true
}

// left reports how many members remain ahead of the iterator in its
// direction of travel.
func (it *rklIter) left() int {
	if it.reverse {
		return it.pos
	}
	return it.r.len() - it.pos
}

// hole returns the next gap [begin, end) of ids NOT in the set, between the
// iterator's current position and the next stored member in its direction,
// and advances past that member. An unbounded side of the set yields a gap
// open to MinTxnID or to InvalidTxnID-1 (the highest representable txnid);
// once no member is left in the direction of travel, hole keeps returning
// that unbounded gap without advancing.
func (it *rklIter) hole() (begin, end txnid) {
	n := it.r.len()
	if n == 0 {
		return txnid(MinTxnID), txnid(InvalidTxnID - 1)
	}
	if it.reverse {
		end = txnid(InvalidTxnID - 1)
		if it.pos < n {
			end = it.r.at(it.pos)
		}
		if it.pos == 0 {
			return txnid(MinTxnID), end
		}
		it.pos--
		return it.r.at(it.pos) + 1, end
	}
	begin = txnid(MinTxnID)
	if it.pos > 0 {
		begin = it.r.at(it.pos-1) + 1
	}
	if it.pos >= n {
		return begin, txnid(InvalidTxnID - 1)
	}
	end = it.r.at(it.pos)
	it.pos++
	return begin, end
}
