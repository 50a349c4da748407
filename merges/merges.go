// Package merges implements the ordered byte-pair merge table: the trained
// list of symbol-pair merges a BPE engine consults to rank which adjacent
// pair to collapse next.
package merges

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// InitializationError wraps a fatal failure while constructing a
// MergeTable (a malformed merges file or a duplicate rank).
type InitializationError struct {
	cause error
}

func (e *InitializationError) Error() string { return e.cause.Error() }
func (e *InitializationError) Unwrap() error { return e.cause }

type pairKey struct {
	a, b string
}

// MergeTable is an ordered mapping (symbol, symbol) -> rank, where rank is
// the pair's 0-based position in the training file. Lower ranks merge
// first. Absent pairs compare as +Inf; callers express that by checking
// the bool returned from Rank rather than relying on a sentinel value.
type MergeTable struct {
	ranks map[pairKey]int
}

// New builds a MergeTable from an ordered list of (left, right) pairs, in
// training order. Duplicate pairs are a construction error: ranks must be
// unique by spec.
func New(pairs [][2]string) (*MergeTable, error) {
	ranks := make(map[pairKey]int, len(pairs))
	for i, p := range pairs {
		key := pairKey{p[0], p[1]}
		if _, exists := ranks[key]; exists {
			return nil, &InitializationError{cause: errors.Errorf(
				"duplicate merge rule (%q, %q) at ranks %d and %d", p[0], p[1], ranks[key], i)}
		}
		ranks[key] = i
	}
	return &MergeTable{ranks: ranks}, nil
}

// LoadFile loads a GPT-2-style merges.txt: one "left right" pair per line,
// in training order, an optional leading "#version:" comment line, and
// blank lines ignored.
func LoadFile(path string) (*MergeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InitializationError{cause: errors.Wrapf(err, "failed to open merges file %q", path)}
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader parses merges.txt content from an already-open reader.
func LoadReader(r io.Reader) (*MergeTable, error) {
	var pairs [][2]string
	sc := bufio.NewScanner(r)
	// Published merges files can have long lines for rare byte sequences;
	// grow past bufio's default 64KiB token limit to be safe.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		header := first && strings.HasPrefix(line, "#version")
		first = false
		if line == "" || header {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, &InitializationError{cause: errors.Errorf("malformed merges line %q: want exactly two fields", line)}
		}
		pairs = append(pairs, [2]string{parts[0], parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, &InitializationError{cause: errors.Wrap(err, "failed to read merges content")}
	}
	return New(pairs)
}

// Rank returns the merge priority of (a, b), and whether the pair is
// registered at all. A lower rank means an earlier-learned, higher-priority
// merge; an absent pair (ok == false) must be treated as rank +Inf by
// callers comparing candidates.
func (m *MergeTable) Rank(a, b string) (int, bool) {
	r, ok := m.ranks[pairKey{a, b}]
	return r, ok
}

// Len returns the number of registered merge rules.
func (m *MergeTable) Len() int {
	return len(m.ranks)
}
