// Package bpe implements the byte-pair-encoding merge loop: given one "word"
// already expressed in the visible byte alphabet, it produces the word's
// sequence of sub-symbols by repeatedly merging the lowest-rank adjacent
// pair until no registered pair remains.
//
// Merge is pure and depends only on its arguments; all memoization lives in
// the caller (the tokenizer pipeline), not here.
package bpe

import "github.com/gpt2bpe/tokenizer/merges"

// Merge runs the BPE algorithm on word (already split into its constituent
// code points) against table, returning the final sequence of sub-symbols.
// The concatenation of the result always equals the concatenation of word.
//
// Deterministic: the merge table's ranks are unique by construction
// (merges.New rejects duplicates), so the "choose lowest rank, leftmost
// adjacent pair" step never has a tie to break.
func Merge(word []rune, table *merges.MergeTable) []string {
	if len(word) == 0 {
		return nil
	}
	symbols := make([]string, len(word))
	for i, r := range word {
		symbols[i] = string(r)
	}
	if len(symbols) < 2 {
		return symbols
	}

	for {
		bestRank := -1
		bestLeft := ""
		bestRight := ""
		for i := 0; i < len(symbols)-1; i++ {
			rank, ok := table.Rank(symbols[i], symbols[i+1])
			if !ok {
				continue
			}
			if bestRank == -1 || rank < bestRank {
				bestRank = rank
				bestLeft = symbols[i]
				bestRight = symbols[i+1]
			}
		}
		if bestRank == -1 {
			// No pair in the current sequence is registered: stop.
			break
		}

		merged := make([]string, 0, len(symbols))
		i := 0
		for i < len(symbols) {
			if i < len(symbols)-1 && symbols[i] == bestLeft && symbols[i+1] == bestRight {
				merged = append(merged, bestLeft+bestRight)
				i += 2
				continue
			}
			merged = append(merged, symbols[i])
			i++
		}
		symbols = merged
		if len(symbols) < 2 {
			break
		}
	}
	return symbols
}
