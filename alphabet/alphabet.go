// Package alphabet implements the byte-level "visible unicode" mapping used
// by GPT-2-family byte-pair-encoding tokenizers.
//
// Every one of the 256 possible byte values is assigned a distinct, visible
// (non-whitespace, non-control) Unicode code point, so that an arbitrary
// byte string can be losslessly represented as a string of runes that is
// safe to store in a vocabulary, print, and match against a regular
// expression. The construction below is the one published with GPT-2 and
// is load-bearing for binary compatibility with its vocab/merges files:
// any other bijection with the same properties would round-trip correctly
// but would not agree with an existing trained vocabulary.
package alphabet

import "sort"

// Alphabet is a bijection between the 256 raw byte values and a fixed set
// of visible Unicode code points.
type Alphabet struct {
	byteToRune [256]rune
	runeToByte map[rune]byte
}

// global is built once at package init and shared by every Tokenizer; the
// mapping is a pure function of the byte value domain, there is nothing to
// configure.
var global = build()

// Global returns the process-wide byte-alphabet bijection.
func Global() *Alphabet {
	return global
}

func build() *Alphabet {
	direct := make(map[byte]bool, 188)
	addRange := func(lo, hi int) {
		for b := lo; b <= hi; b++ {
			direct[byte(b)] = true
		}
	}
	addRange(33, 126)
	addRange(161, 172)
	addRange(174, 255)

	var excluded []byte
	for b := 0; b < 256; b++ {
		if !direct[byte(b)] {
			excluded = append(excluded, byte(b))
		}
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i] < excluded[j] })

	a := &Alphabet{
		runeToByte: make(map[rune]byte, 256),
	}
	for b := 0; b < 256; b++ {
		if direct[byte(b)] {
			a.byteToRune[b] = rune(b)
		}
	}
	for k, b := range excluded {
		a.byteToRune[b] = rune(256 + k)
	}
	for b := 0; b < 256; b++ {
		a.runeToByte[a.byteToRune[b]] = byte(b)
	}
	return a
}

// ByteToRune returns the visible code point standing in for the given byte.
func (a *Alphabet) ByteToRune(b byte) rune {
	return a.byteToRune[b]
}

// RuneToByte returns the byte a visible code point stands in for, and
// whether r is in the alphabet's image at all.
func (a *Alphabet) RuneToByte(r rune) (byte, bool) {
	b, ok := a.runeToByte[r]
	return b, ok
}

// Encode maps a raw byte string to its visible-alphabet word.
func (a *Alphabet) Encode(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = a.byteToRune[b]
	}
	return string(runes)
}

// Decode maps a visible-alphabet string back to raw bytes. It returns
// false if word contains a code point outside the alphabet's image.
func (a *Alphabet) Decode(word string) ([]byte, bool) {
	out := make([]byte, 0, len(word))
	for _, r := range word {
		b, ok := a.runeToByte[r]
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}
