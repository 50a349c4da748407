package tokenizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gpt2bpe/tokenizer/vocab"
)

// lookaheadPattern finds the fragments that the reference GPT-2
// pre-tokenization regex would otherwise need a single-character lookahead
// to delimit: a run of whitespace immediately followed by one
// non-whitespace character. Every such hit marks where the *real* reference
// pattern's `\s+(?!\S)|\s+` alternation would actually have split, without
// the engine ever evaluating (?!\S).
var lookaheadPattern = regexp.MustCompile(`\s+\S`)

// mainPattern is the reference GPT-2 pre-tokenization regex with its one
// lookahead alternative already resolved away by stage A: every remaining
// alternative is expressible in RE2 as-is, including \p{L}/\p{N} which Go's
// stdlib regexp supports natively.
var mainPattern = regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// stageASplit performs stage A of the two-stage lookahead emulation: it
// cuts s at every position where the real pattern's negative lookahead
// would have forced a boundary, one code point before the non-whitespace
// character that triggered it. The resulting sub-fragments can then be
// matched against mainPattern with no lookahead required at all.
func stageASplit(s string) []string {
	matches := lookaheadPattern.FindAllStringIndex(s, -1)
	if matches == nil {
		return []string{s}
	}
	pieces := make([]string, 0, len(matches)+1)
	i := 0
	for _, m := range matches {
		end := m[1]
		_, size := utf8.DecodeLastRuneInString(s[:end])
		cut := end - size - 1
		pieces = append(pieces, s[i:cut])
		i = cut
	}
	pieces = append(pieces, s[i:])
	return pieces
}

// preTokenize runs the full two-stage procedure, returning pre-tokens in
// left-to-right order with their original bytes untouched.
func preTokenize(s string) []string {
	if s == "" {
		return nil
	}
	var pieces []string
	for _, sub := range stageASplit(s) {
		pieces = append(pieces, mainPattern.FindAllString(sub, -1)...)
	}
	return pieces
}

// fragment is one piece of the special-token carve-out: either literal
// text destined for pre-tokenization and BPE, or a special token to be
// passed through verbatim.
type fragment struct {
	text    string
	special bool
}

// splitSpecial scans text for occurrences of any registered special token
// (longest match wins when one special token is a prefix of another) and
// returns the alternating sequence of literal and special fragments, in
// order, with empty literal runs omitted.
func splitSpecial(text string, v *vocab.Vocabulary) []fragment {
	if len(v.Special) == 0 {
		if text == "" {
			return nil
		}
		return []fragment{{text: text}}
	}

	specials := make([]string, 0, len(v.Special))
	for s := range v.Special {
		specials = append(specials, s)
	}
	sort.Slice(specials, func(i, j int) bool { return len(specials[i]) > len(specials[j]) })

	var frags []fragment
	litStart := 0
	i := 0
	for i < len(text) {
		matched := ""
		for _, s := range specials {
			if s != "" && strings.HasPrefix(text[i:], s) {
				matched = s
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		if i > litStart {
			frags = append(frags, fragment{text: text[litStart:i]})
		}
		frags = append(frags, fragment{text: matched, special: true})
		i += len(matched)
		litStart = i
	}
	if litStart < len(text) {
		frags = append(frags, fragment{text: text[litStart:]})
	}
	return frags
}
