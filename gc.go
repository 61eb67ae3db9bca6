package coredbx

import "encoding/binary"

// gc.go implements reclamation of retired pages. Pages are retired into
// txn.freePages when an overflow run is replaced or deleted, when a page
// empties, and when a root collapses; a branch or leaf page copied by
// touchPageAt is not retired, so its old page number is not reclaimed.
// Retired pages cannot be reused immediately: a reader that started before
// the retiring commit may still be walking the old page. Each write
// transaction parks its retired list in FreeDBI under its own transaction
// id, and a later writer only pulls a record back out once the oldest
// active reader snapshot has moved past it.
//
// gcSettle repeats the persist step while txn.freePages is non-empty, so
// pages retired while writing FreeDBI are persisted as well. A list too
// large for one leaf record is split across multiple keys (the "bigfoot"
// scheme): the extra keys borrow txnids that haven't been handed to a writer
// yet, which is safe because this engine is strictly single-writer and the
// next writer always starts at lastCommitted+1 — no reader or writer can
// ever observe or pin an id consumed here before it is committed.

const gcKeySize = 8

// gcMaxListBytes bounds a single GC record's encoded page list; the bound
// actually applied is the smaller of this and the environment's MaxValSize,
// so the record fits inside one leaf node alongside its key and node
// overhead. Oversized retired lists are split across multiple bigfoot-chunk
// records rather than being stored on overflow pages.
const gcMaxListBytes = 4000

func gcEncodeKey(id txnid) []byte {
	buf := make([]byte, gcKeySize)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func gcDecodeKey(b []byte) txnid {
	return txnid(binary.BigEndian.Uint64(b))
}

// gcEncodeList packs a page list as a GC record value: a count followed by
// big-endian page numbers in ascending order.
func gcEncodeList(pages []pgno) []byte {
	buf := make([]byte, 4+len(pages)*4)
	binary.BigEndian.PutUint32(buf, uint32(len(pages)))
	for i, p := range pages {
		binary.BigEndian.PutUint32(buf[4+i*4:], uint32(p))
	}
	return buf
}

func gcDecodeList(b []byte) []pgno {
	if len(b) < 4 {
		return nil
	}
	n := binary.BigEndian.Uint32(b)
	if uint64(len(b)) < 4+uint64(n)*4 {
		return nil
	}
	pages := make([]pgno, n)
	for i := range pages {
		pages[i] = pgno(binary.BigEndian.Uint32(b[4+i*4:]))
	}
	return pages
}

// gcPersistRetired writes this transaction's retired-but-unconsumed pages
// into FreeDBI. A list that doesn't fit gcMaxListBytes is split into several
// records, the first keyed by txn.txnID and each further chunk by the next
// unused txnid (bigfoot): consuming those ids here is safe only because this
// engine allows a single writer at a time and the next writer always starts
// numbering at lastCommitted+1.
//
// Call this from gcSettle, not directly: gcSettle repeats the call while
// txn.freePages is non-empty, so pages retired while inserting into FreeDBI
// are persisted in turn.
func (txn *Txn) gcPersistRetired() error {
	if len(txn.freePages) == 0 {
		return nil
	}

	sorted := append([]pgno(nil), txn.freePages...)
	sortPgnoSlice(sorted)
	txn.freePages = txn.freePages[:0]

	if txn.gcChunkNext == 0 {
		txn.gcChunkNext = txn.txnID
	}

	cursor, err := txn.OpenCursor(FreeDBI)
	if err != nil {
		return err
	}
	defer cursor.Close()

	// A record value is a 4-byte count plus 4 bytes per page.
	maxPerChunk := (min(gcMaxListBytes, txn.env.MaxValSize()) - 4) / 4
	for len(sorted) > 0 {
		n := len(sorted)
		if n > maxPerChunk {
			n = maxPerChunk
		}
		chunk := sorted[:n]
		sorted = sorted[n:]

		key := txn.gcChunkNext
		txn.gcChunkNext++
		if err := cursor.Put(gcEncodeKey(key), gcEncodeList(chunk), 0); err != nil {
			return err
		}
	}
	return nil
}

// gcSettle drives gcPersistRetired to a fixpoint and reports the commit
// txnid to stamp into the meta page: txn.txnID unchanged when the retired
// list fit in a single record, or the highest bigfoot chunk key consumed
// when it didn't.
func (txn *Txn) gcSettle() (txnid, error) {
	const maxIterations = 64
	for i := 0; i < maxIterations && len(txn.freePages) > 0; i++ {
		if err := txn.gcPersistRetired(); err != nil {
			return 0, err
		}
	}
	if txn.gcChunkNext <= txn.txnID {
		return txn.txnID, nil
	}
	return txn.gcChunkNext - 1, nil
}

// gcReclaimFill looks for the oldest GC record whose retiring transaction
// is no longer visible to any active reader and, if found, stages its
// pages onto txn.reclaimedPages for allocatePage to hand out.
//
// Called only from an allocating cursor on a DBI other than FreeDBI: a
// cursor editing FreeDBI itself must never recurse back into reclaim,
// since deleting the record it is currently positioned on can itself
// require a fresh page.
func (txn *Txn) gcReclaimFill() error {
	oldest := txn.env.lockFile.oldestReader()
	if oldest == ^uint64(0) {
		// No active readers: nothing constrains reclamation, but an empty
		// table means there is nothing to find either. Still worth a scan
		// since retired records from before any reader existed are free.
		oldest = uint64(txn.txnID)
	}

	cursor, err := txn.OpenCursor(FreeDBI)
	if err != nil {
		return err
	}
	defer cursor.Close()

	key, value, err := cursor.Get(nil, nil, First)
	for err == nil {
		retiredAt := gcDecodeKey(key)
		if uint64(retiredAt) >= oldest {
			break
		}

		pages := gcDecodeList(value)
		if delErr := cursor.Del(0); delErr != nil {
			return delErr
		}
		txn.gcReclaimed.push(retiredAt)
		if len(pages) > 0 {
			// reclaimedPages is kept sorted so a page can never be handed
			// out twice even when several records are folded in here.
			txn.reclaimedPages = pnlMerge(txn.reclaimedPages, pages)
			return nil
		}

		key, value, err = cursor.Get(nil, nil, First)
	}

	if err != nil && err != ErrNotFoundError {
		return err
	}
	return nil
}
