package pebblequeue

import "encoding/binary"

// Layout (byte-wise, lexicographically sortable):
//
//	qmeta/{queue}              JSON queueMeta
//	q/{queue}/seq              last allocated sequence, BE8
//	q/{queue}/n                stored message count, BE8
//	q/{queue}/e/{seq_be8}      record
//
// Queue names never contain '/', so per-queue prefixes do not overlap.
var (
	metaPrefix  = []byte("qmeta/")
	queuePrefix = []byte("q/")
	seqSuffix   = []byte("/seq")
	countSuffix = []byte("/n")
	entrySeg    = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func keyMeta(queue string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(queue))
	k = append(k, metaPrefix...)
	return append(k, queue...)
}

func keyQueue(queue string, suffix []byte) []byte {
	k := make([]byte, 0, len(queuePrefix)+len(queue)+len(suffix)+8)
	k = append(k, queuePrefix...)
	k = append(k, queue...)
	return append(k, suffix...)
}

func keySeq(queue string) []byte   { return keyQueue(queue, seqSuffix) }
func keyCount(queue string) []byte { return keyQueue(queue, countSuffix) }

func keyEntryPrefix(queue string) []byte { return keyQueue(queue, entrySeg) }

func keyEntry(queue string, seq uint64) []byte {
	return appendBE8(keyEntryPrefix(queue), seq)
}

func decodeBE8(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b[len(b)-8:])
}
