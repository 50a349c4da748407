package bpe

import (
	"reflect"
	"testing"

	"github.com/gpt2bpe/tokenizer/merges"
)

func fixtureTable(t *testing.T) *merges.MergeTable {
	t.Helper()
	m, err := merges.New([][2]string{
		{"Ġ", "t"}, {"Ġ", "n"}, {"e", "e"}, {"Ġt", "he"}, {"h", "e"},
		{"t", "h"}, {"t", "he"}, {"Ġ", "e"}, {"Ġe", "a"}, {"Ġea", "r"},
	})
	if err != nil {
		t.Fatalf("merges.New failed: %v", err)
	}
	return m
}

func TestMergeEmpty(t *testing.T) {
	got := Merge(nil, fixtureTable(t))
	if got != nil {
		t.Errorf("Merge(nil) = %v, want nil", got)
	}
}

func TestMergeSingleCodePoint(t *testing.T) {
	got := Merge([]rune("t"), fixtureTable(t))
	want := []string{"t"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge(%q) = %v, want %v", "t", got, want)
	}
}

func TestMergeThe(t *testing.T) {
	// "the": t+h -> th (rank5) vs h+e -> he (rank4): he wins first (lower rank),
	// giving [t, he], then t+he -> the (rank6).
	got := Merge([]rune("the"), fixtureTable(t))
	want := []string{"the"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge(the) = %v, want %v", got, want)
	}
}

func TestMergeGEarth(t *testing.T) {
	// "Ġearth" (space-prefixed "earth"): byte-alphabet word is the 6 runes
	// Ġ,e,a,r,t,h. Per the fixture merges this reduces to "Ġear" + "th".
	got := Merge([]rune("Ġearth"), fixtureTable(t))
	want := []string{"Ġear", "th"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge(Ġearth) = %v, want %v", got, want)
	}
}

func TestMergeNoApplicablePairs(t *testing.T) {
	m, err := merges.New([][2]string{{"x", "y"}})
	if err != nil {
		t.Fatal(err)
	}
	got := Merge([]rune("ab"), m)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge(ab) = %v, want %v", got, want)
	}
}

func TestMergePurity(t *testing.T) {
	table := fixtureTable(t)
	word := []rune("Ġearth")
	first := Merge(word, table)
	second := Merge(word, table)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Merge is not deterministic across calls: %v vs %v", first, second)
	}
}

func TestMergeConcatenationPreserved(t *testing.T) {
	table := fixtureTable(t)
	word := []rune("Ġearth")
	got := Merge(word, table)
	var rebuilt string
	for _, s := range got {
		rebuilt += s
	}
	if rebuilt != string(word) {
		t.Errorf("concatenation of merge output = %q, want %q", rebuilt, string(word))
	}
}

func TestMergeGreedyLeftToRightNonOverlapping(t *testing.T) {
	// Three identical adjacent pairs ("a","a") in "aaaa" must merge
	// left-to-right and non-overlapping: positions (0,1) and (2,3), not
	// (1,2).
	m, err := merges.New([][2]string{{"a", "a"}})
	if err != nil {
		t.Fatal(err)
	}
	got := Merge([]rune("aaaa"), m)
	want := []string{"aa", "aa"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge(aaaa) = %v, want %v", got, want)
	}
}
