package hubsrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLocalPathPassesThrough(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "cache"), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	localPath := filepath.Join(dir, "vocab.json")
	if err := os.WriteFile(localPath, []byte(`{"a":0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Resolve(context.Background(), localPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != localPath {
		t.Errorf("Resolve(local) = %q, want %q", got, localPath)
	}
}

func TestResolveDownloadsAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"a": 0, "<|endoftext|>": 1}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "cache"), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	url := srv.URL + "/vocab.json"
	path1, err := s.Resolve(context.Background(), url)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := os.Stat(path1); err != nil {
		t.Fatalf("expected downloaded file to exist: %v", err)
	}

	path2, err := s.Resolve(context.Background(), url)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if path1 != path2 {
		t.Errorf("Resolve paths differ across calls: %q vs %q", path1, path2)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1 (second Resolve should hit the cache)", hits)
	}
}

func TestLoadVocabularyFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"a": 0, "<|endoftext|>": 1}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	v, err := s.LoadVocabulary(context.Background(), srv.URL+"/vocab.json", nil, "<|endoftext|>")
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}
	if v.TokenToID("a") != 0 {
		t.Errorf("TokenToID(a) = %d, want 0", v.TokenToID("a"))
	}
}

func TestLoadMergeTableFromLocalFile(t *testing.T) {
	dir := t.TempDir()
	mergesPath := filepath.Join(dir, "merges.txt")
	if err := os.WriteFile(mergesPath, []byte("#version: 0.2\na b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(filepath.Join(dir, "cache"), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m, err := s.LoadMergeTable(context.Background(), mergesPath)
	if err != nil {
		t.Fatalf("LoadMergeTable failed: %v", err)
	}
	if rank, ok := m.Rank("a", "b"); !ok || rank != 0 {
		t.Errorf("Rank(a,b) = (%d, %v), want (0, true)", rank, ok)
	}
}

func TestResolveDownloadFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = s.Resolve(context.Background(), srv.URL+"/missing.json")
	if err == nil {
		t.Error("expected an error for a 404 response")
	}
}
