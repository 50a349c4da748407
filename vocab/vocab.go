// Package vocab implements the symbol<->id lookup table consumed by the BPE
// tokenizer pipeline: a total, fail-never mapping between vocabulary symbols
// and integer ids, plus the registry of special tokens that bypass BPE
// entirely.
package vocab

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// InitializationError wraps a fatal failure while constructing a
// Vocabulary. Per the core's failure semantics, these surface to the
// caller of the constructor, never at lookup time.
type InitializationError struct {
	cause error
}

func (e *InitializationError) Error() string { return e.cause.Error() }
func (e *InitializationError) Unwrap() error { return e.cause }

func initErrorf(format string, args ...any) error {
	return &InitializationError{cause: errors.Errorf(format, args...)}
}

// Vocabulary is a bidirectional symbol<->id lookup table with unknown-token
// fallback and a registry of special tokens.
//
// Values and Indices are mutual inverses; Special is a subset of Values'
// keys, and Unknown is always a member of both Values and Special. These
// invariants are enforced once, at construction, by New and the file
// loaders; Vocabulary itself is immutable after that point and safe to
// share across goroutines without synchronization.
type Vocabulary struct {
	Values  map[string]int64
	Indices map[int64]string
	Special map[string]bool
	Unknown string

	unknownID int64
}

// New builds a Vocabulary from an already-parsed symbol->id table and a set
// of special-token symbols; unknown is always registered as special,
// whether or not it is listed. Indices is recomputed from values, ignoring
// any caller-supplied inverse.
func New(values map[string]int64, special []string, unknown string) (*Vocabulary, error) {
	if unknown == "" {
		return nil, initErrorf("vocabulary must designate a non-empty unknown token")
	}
	unknownID, ok := values[unknown]
	if !ok {
		return nil, initErrorf("unknown token %q not present in vocabulary values", unknown)
	}

	indices := make(map[int64]string, len(values))
	for sym, id := range values {
		if prev, dup := indices[id]; dup {
			return nil, initErrorf("symbols %q and %q share id %d", prev, sym, id)
		}
		indices[id] = sym
	}

	specialSet := make(map[string]bool, len(special)+1)
	specialSet[unknown] = true
	for _, s := range special {
		if _, ok := values[s]; !ok {
			return nil, initErrorf("special token %q not present in vocabulary values", s)
		}
		specialSet[s] = true
	}

	return &Vocabulary{
		Values:    values,
		Indices:   indices,
		Special:   specialSet,
		Unknown:   unknown,
		unknownID: unknownID,
	}, nil
}

// vocabJSON is the on-disk shape of a GPT-2-style vocab.json: a flat
// symbol -> id mapping, no envelope.
type vocabJSON = map[string]int64

// LoadFile loads a vocabulary from a GPT-2-style vocab.json file (a flat
// symbol->id JSON object) plus an explicit list of special-token symbols.
// unknown must be a vocabulary member and is always registered as special;
// GPT-2 itself uses "<|endoftext|>" for both roles.
func LoadFile(path string, special []string, unknown string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InitializationError{cause: errors.Wrapf(err, "failed to read vocabulary file %q", path)}
	}
	return LoadBytes(data, special, unknown)
}

// LoadBytes parses vocab.json content already in memory.
func LoadBytes(data []byte, special []string, unknown string) (*Vocabulary, error) {
	var values vocabJSON
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, &InitializationError{cause: errors.Wrap(err, "failed to parse vocabulary JSON")}
	}
	return New(values, special, unknown)
}

// TokenToID returns the id for s, or the unknown token's id if s is not in
// the vocabulary. Total: never fails.
func (v *Vocabulary) TokenToID(s string) int64 {
	if id, ok := v.Values[s]; ok {
		return id
	}
	return v.unknownID
}

// IDToToken returns the symbol for id, or the unknown symbol if id is not
// assigned. Total: never fails.
func (v *Vocabulary) IDToToken(id int64) string {
	if s, ok := v.Indices[id]; ok {
		return s
	}
	return v.Unknown
}

// IsSpecial reports whether s is a registered special token: one that is
// never subject to BPE or case-folding and is emitted verbatim.
func (v *Vocabulary) IsSpecial(s string) bool {
	return v.Special[s]
}

// Size returns the number of distinct symbols in the vocabulary.
func (v *Vocabulary) Size() int {
	return len(v.Values)
}
