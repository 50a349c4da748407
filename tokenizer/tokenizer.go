// Package tokenizer implements the orchestrating BPE tokenizer pipeline:
// special-token carve-out, optional lowercasing, the two-stage
// lookahead-free pre-tokenization that emulates GPT-2's reference regex,
// byte-alphabet encoding, memoized BPE, and the inverse detokenization
// path.
package tokenizer

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gpt2bpe/tokenizer/alphabet"
	"github.com/gpt2bpe/tokenizer/api"
	"github.com/gpt2bpe/tokenizer/bpe"
	"github.com/gpt2bpe/tokenizer/merges"
	"github.com/gpt2bpe/tokenizer/vocab"
)

// compile-time assertion that Tokenizer satisfies the shared interface.
var _ api.Tokenizer = (*Tokenizer)(nil)

// InitializationError wraps a fatal failure during New (a nil vocabulary
// or merge table). The pre-tokenization patterns are fixed literals
// compiled with regexp.MustCompile at package init, so they never surface
// through this type.
type InitializationError struct {
	cause error
}

func (e *InitializationError) Error() string { return e.cause.Error() }
func (e *InitializationError) Unwrap() error { return e.cause }

// DetokenizationError reports that a token sequence could not be turned
// back into text: either a code point fell outside the byte alphabet, or
// the reconstructed bytes were not valid UTF-8.
type DetokenizationError struct {
	cause error
}

func (e *DetokenizationError) Error() string { return e.cause.Error() }
func (e *DetokenizationError) Unwrap() error { return e.cause }

// Tokenizer holds immutable model data (vocabulary, merge table, byte
// alphabet) and a memoization cache. All fields besides the cache are
// populated once at construction and never mutated afterward, so a
// *Tokenizer is safe to share across goroutines operating on disjoint
// inputs; the cache is a sync.Map, letting concurrent readers proceed
// without blocking each other while writes (BPE cache misses) are
// individually atomic. A double-compute on a racing miss is acceptable:
// the cache is a memoization hint, not a correctness invariant.
type Tokenizer struct {
	vocab     *vocab.Vocabulary
	merges    *merges.MergeTable
	alphabet  *alphabet.Alphabet
	lowerCase bool
	caser     cases.Caser

	cache sync.Map // string (alphabet word) -> []string (immutable)
}

// New constructs a Tokenizer from an already-loaded vocabulary and merge
// table. lowerCase controls whether literal (non-special) fragments are
// Unicode-lowercased before pre-tokenization; GPT-2's published vocabulary
// was trained on cased text, so the default expectation is false.
func New(v *vocab.Vocabulary, m *merges.MergeTable, lowerCase bool) (*Tokenizer, error) {
	if v == nil {
		return nil, &InitializationError{cause: errors.New("tokenizer: vocabulary must not be nil")}
	}
	if m == nil {
		return nil, &InitializationError{cause: errors.New("tokenizer: merge table must not be nil")}
	}
	return &Tokenizer{
		vocab:     v,
		merges:    m,
		alphabet:  alphabet.Global(),
		lowerCase: lowerCase,
		caser:     cases.Lower(language.Und),
	}, nil
}

// Symbol mirrors the data model's definition: a string drawn from the
// fixed 256-element visible alphabet (or, for special tokens, the literal
// registered symbol text).
type Symbol = string

// Tokenize converts text into its sequence of symbols: special-token
// carve-out, optional lowercasing, two-stage pre-tokenization, byte
// remapping, and memoized BPE.
func (t *Tokenizer) Tokenize(text string) []Symbol {
	frags := splitSpecial(text, t.vocab)
	var out []Symbol
	for _, f := range frags {
		if f.special {
			out = append(out, f.text)
			continue
		}
		literal := f.text
		if t.lowerCase {
			literal = t.caser.String(literal)
		}
		for _, piece := range preTokenize(literal) {
			out = append(out, t.encodePiece(piece)...)
		}
	}
	return out
}

// TokenizeBatch tokenizes each input independently and concurrently. It
// exercises the same concurrent-cache discipline Tokenize documents for a
// single call, fanned out across a worker pool sized to GOMAXPROCS — the
// batch helper the original rust-tokenizers `tokenize_list` provided, and
// a natural fit here since the pipeline is already safe to call from many
// goroutines over disjoint inputs.
func (t *Tokenizer) TokenizeBatch(texts []string) [][]Symbol {
	return runBatch(texts, t.Tokenize)
}

// encodePiece maps one pre-token (raw UTF-8 bytes) through the byte
// alphabet and the memoized BPE engine, applying the whitespace-only
// special case documented on isWhitespaceOnly and in DESIGN.md.
func (t *Tokenizer) encodePiece(piece string) []Symbol {
	if isWhitespaceOnly(piece) {
		return []Symbol{t.vocab.Unknown}
	}

	word := t.alphabet.Encode([]byte(piece))
	if cached, ok := t.cache.Load(word); ok {
		return cached.([]Symbol)
	}

	merged := bpe.Merge([]rune(word), t.merges)
	stored := make([]Symbol, len(merged))
	copy(stored, merged)
	// LoadOrStore so a racing writer never observes a torn value; whichever
	// goroutine wins just means the other's computation was redundant.
	actual, _ := t.cache.LoadOrStore(word, stored)
	return actual.([]Symbol)
}

// isWhitespaceOnly reports whether a pre-token's raw bytes are a non-empty
// run of nothing but whitespace. A whitespace-only pre-token is replaced by
// the vocabulary's unknown symbol rather than run through BPE; see
// DESIGN.md for the rationale.
func isWhitespaceOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// TokenToID delegates to the held vocabulary.
func (t *Tokenizer) TokenToID(s string) int64 { return t.vocab.TokenToID(s) }

// IDToToken delegates to the held vocabulary.
func (t *Tokenizer) IDToToken(id int64) string { return t.vocab.IDToToken(id) }

// Encode tokenizes text and maps the result to ids, truncating from the
// end if it exceeds maxLen. This is a single-sequence stand-in for the
// rust-tokenizers LongestFirst truncation strategy: with only one
// sequence there is nothing to compare lengths against, so "longest
// first" degenerates to "truncate the one sequence we have". Pair-
// sequence encoding, segment ids, and special-token masks are out of
// scope for this core.
func (t *Tokenizer) Encode(text string, maxLen int) []int64 {
	tokens := t.Tokenize(text)
	if maxLen >= 0 && len(tokens) > maxLen {
		tokens = tokens[:maxLen]
	}
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		ids[i] = t.vocab.TokenToID(tok)
	}
	return ids
}

// Detokenize concatenates tokens, undoes residual sub-word continuation
// markers left by a sibling tokenizer family (defensive only — this
// family's own output never contains them), maps each code point back to
// a byte via the alphabet, and interprets the result as UTF-8.
//
// Special tokens participate unchanged: GPT-2-style special tokens (e.g.
// "<|endoftext|>") are composed entirely of printable-ASCII characters,
// which are fixed points of the byte alphabet (alphabet.Global maps those
// bytes to themselves), so they round-trip through the same rune->byte
// pass as ordinary BPE output without special-casing. A special token
// using a non-alphabet code point would surface as a DetokenizationError.
func (t *Tokenizer) Detokenize(tokens []Symbol, cleanUpSpaces bool) (string, error) {
	joined := strings.Join(tokens, "")
	joined = strings.ReplaceAll(joined, " ##", "")

	raw, ok := t.alphabet.Decode(joined)
	if !ok {
		return "", &DetokenizationError{cause: errors.New("detokenize: token sequence contains a code point outside the byte alphabet")}
	}
	if !utf8.Valid(raw) {
		return "", &DetokenizationError{cause: errors.New("detokenize: reconstructed bytes are not valid UTF-8")}
	}

	text := string(raw)
	if cleanUpSpaces {
		text = strings.TrimSpace(text)
	}
	return text, nil
}

// DetokenizeBatch detokenizes each token sequence independently and
// concurrently, mirroring TokenizeBatch.
func (t *Tokenizer) DetokenizeBatch(tokenSeqs [][]Symbol, cleanUpSpaces bool) ([]string, []error) {
	type result struct {
		text string
		err  error
	}
	results := runBatch(tokenSeqs, func(toks []Symbol) result {
		text, err := t.Detokenize(toks, cleanUpSpaces)
		return result{text, err}
	})
	texts := make([]string, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		texts[i] = r.text
		errs[i] = r.err
	}
	return texts, errs
}

// Decode is a convenience wrapper that maps ids to symbols via the held
// vocabulary before detokenizing.
func (t *Tokenizer) Decode(ids []int64, cleanUpSpaces bool) (string, error) {
	tokens := make([]Symbol, len(ids))
	for i, id := range ids {
		tokens[i] = t.vocab.IDToToken(id)
	}
	return t.Detokenize(tokens, cleanUpSpaces)
}

// SpecialTokenID maps a generic special-token role to this tokenizer's
// vocabulary id, satisfying api.Tokenizer. GPT-2's published vocabulary
// registers a single symbol, "<|endoftext|>", for the unknown,
// beginning-of-text, and end-of-text roles at once; roles this vocabulary
// has no dedicated symbol for report an error rather than silently
// aliasing to unknown.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int64, error) {
	switch token {
	case api.TokUnknown, api.TokBeginningOfText, api.TokEndOfText:
		// vocab.New guarantees Unknown is always a registered member.
		return t.vocab.TokenToID(t.vocab.Unknown), nil
	default:
		return 0, errors.Errorf("tokenizer: no symbol registered for special token role %d", token)
	}
}
