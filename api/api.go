// Package api defines the tokenizer-facing interfaces shared across this
// module's concrete implementations, breaking the import cycle that would
// otherwise result from the tokenizer package depending on its own
// interface definition.
package api

// Tokenizer is the minimal surface a byte-level BPE tokenizer exposes to
// callers that only need ids in and text out, independent of the
// concrete vocabulary or merge table backing it.
type Tokenizer interface {
	Encode(text string, maxLen int) []int64
	Decode(ids []int64, cleanUpSpaces bool) (string, error)

	// SpecialTokenID returns the id registered for a given special-token
	// role, or an error if this tokenizer's vocabulary does not assign one.
	SpecialTokenID(token SpecialToken) (int64, error)
}

// SpecialToken is an enum of commonly used special-token roles. A single
// vocabulary symbol may be registered under more than one role: GPT-2's
// published vocabulary uses "<|endoftext|>" for TokUnknown,
// TokBeginningOfText, and TokEndOfText all at once.
type SpecialToken int

const (
	TokBeginningOfText SpecialToken = iota
	TokEndOfText
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

//go:generate enumer -type=SpecialToken -trimprefix=Tok -transform=snake -values -text -json -yaml api.go
