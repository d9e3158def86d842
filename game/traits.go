package game

import "encoding/binary"

// A trait id is quadrant*64 + color*8 + symbol.
func traitID(quadrant, color, symbol uint16) uint16 {
	return quadrant*64 + color<<3 | symbol
}

// pieceTraits derives the four traits of a gamepiece, one per quadrant.
func pieceTraits(seed Word) [4]uint16 {
	var t [4]uint16
	for q := 0; q < 4; q++ {
		b := seed[q]
		t[q] = traitID(uint16(q), uint16(b>>3&7), uint16(b&7))
	}
	return t
}

// winningTraits picks one trait per quadrant from a word and per-trait
// counts:
//
//	q0: the symbol with the most count across colors, random color
//	q1: the color with the most count across symbols, random symbol
//	q2: the single trait with the most count
//	q3: random
//
// Ties resolve to the lowest index.
func winningTraits(w Word, counts *[NumTraits]uint32) [4]uint16 {
	r := binary.BigEndian.Uint64(w[24:])

	var symbolSums, colorSums [8]uint64
	for c := uint16(0); c < 8; c++ {
		for s := uint16(0); s < 8; s++ {
			symbolSums[s] += uint64(counts[traitID(0, c, s)])
			colorSums[c] += uint64(counts[traitID(1, c, s)])
		}
	}

	var out [4]uint16
	out[0] = traitID(0, uint16(r&7), argmax(symbolSums[:]))
	out[1] = traitID(1, argmax(colorSums[:]), uint16(r>>3&7))

	q2 := make([]uint64, 64)
	for i := range q2 {
		q2[i] = uint64(counts[128+i])
	}
	out[2] = 128 + argmax(q2)
	out[3] = 192 + uint16(r>>6&63)
	return out
}

func argmax(v []uint64) uint16 {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return uint16(best)
}

// bucketBand grows bucket sizes every 20 levels within a cycle of 100.
func bucketBand(level uint32) uint64 {
	return uint64(level%100)/20 + 1
}

// bucketCounts returns the winner count of each bucket, rotated by w.
// The unrotated table puts the single winner first.
func bucketCounts(level uint32, w Word) [4]uint64 {
	band := bucketBand(level)
	base := [4]uint64{1, 10 * band, 15 * band, 25 * band}
	return rotate(base, w.Uint64()%4)
}

func rotate[T any](base [4]T, by uint64) [4]T {
	var out [4]T
	for i := range base {
		out[(uint64(i)+by)%4] = base[i]
	}
	return out
}
