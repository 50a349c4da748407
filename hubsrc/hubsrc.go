// Package hubsrc loads a tokenizer's vocabulary and merge table from
// either a local path or a remote HTTP(S) URL, caching remote downloads
// on disk. It is the domain-stack counterpart to vocab.LoadFile and
// merges.LoadFile for the common case of fetching GPT-2-style
// vocab.json/merges.txt files from a model hub.
package hubsrc

import (
	"bytes"
	"context"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/gpt2bpe/tokenizer/merges"
	"github.com/gpt2bpe/tokenizer/vocab"
)

// InitializationError wraps a fatal failure constructing a Source (an
// unusable cache directory).
type InitializationError struct {
	cause error
}

func (e *InitializationError) Error() string { return e.cause.Error() }
func (e *InitializationError) Unwrap() error { return e.cause }

// DefaultDirPerm is the permission used when creating the cache
// directory and any of its parents.
const DefaultDirPerm = 0o755

// Source resolves vocabulary and merge-table locations (local paths or
// HTTP(S) URLs) to files on disk, downloading and caching remote content
// as needed. Safe for concurrent use: concurrent fetches of the same
// remote location coordinate through an on-disk lock file rather than
// in-process state, so a *Source itself holds no mutable fields.
type Source struct {
	cacheDir string
	client   *http.Client
}

// New creates a Source backed by cacheDir, creating it if necessary.
func New(cacheDir string, client *http.Client) (*Source, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(cacheDir, DefaultDirPerm); err != nil {
		return nil, &InitializationError{cause: errors.Wrapf(err, "failed to create cache directory %q", cacheDir)}
	}
	return &Source{cacheDir: cacheDir, client: client}, nil
}

// Resolve returns a local filesystem path for loc, which may already be a
// local path (returned unchanged) or an http(s):// URL (downloaded into
// the cache directory, or served from cache if already present).
func (s *Source) Resolve(ctx context.Context, loc string) (string, error) {
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		return loc, nil
	}
	target := filepath.Join(s.cacheDir, cacheFileName(loc))
	if err := s.lockedDownload(ctx, loc, target); err != nil {
		return "", err
	}
	return target, nil
}

// cacheFileName derives a cache-local file name from a URL, keeping the
// final path segment (and thus its extension, e.g. "vocab.json") for
// readability. Distinct URLs that share a final path segment map to the
// same cache file.
func cacheFileName(url string) string {
	base := filepath.Base(url)
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	return base
}

// lockedDownload fetches url into target, unless target already exists.
// It downloads into a uniquely named temporary file and renames it into
// place atomically once complete, and uses a sibling ".lock" file (via
// gofrs/flock) so multiple processes racing to populate the same cache
// entry cooperate instead of corrupting each other's output.
func (s *Source) lockedDownload(ctx context.Context, url, target string) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lockPath := target + ".lock"
	var downloadErr error
	lockErr := execOnFileLock(lockPath, func() {
		if _, err := os.Stat(target); err == nil {
			// Another process populated it while we waited for the lock.
			return
		}
		downloadErr = s.download(ctx, url, target)
	})
	if downloadErr != nil {
		return downloadErr
	}
	if lockErr != nil {
		return errors.Wrapf(lockErr, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

func (s *Source) download(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %q", url)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %q: unexpected status %q", url, resp.Status)
	}

	tmpPath := target + ".download-" + uuid.NewString()
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file %q", tmpPath)
	}
	var tmpFileClosed bool
	defer func() {
		if tmpFileClosed {
			return
		}
		if err := tmpFile.Close(); err != nil {
			log.Printf("Failed closing temporary file %q: %v", tmpPath, err)
		}
		if err := os.Remove(tmpPath); err != nil {
			log.Printf("Failed removing temporary file %q: %v", tmpPath, err)
		}
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return errors.Wrapf(err, "failed while downloading %q", url)
	}

	tmpFileClosed = true
	if err := tmpFile.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary file %q", tmpPath)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, target)
	}
	return nil
}

// execOnFileLock acquires an exclusive lock on lockPath (creating it if
// necessary), runs fn, and releases the lock. It polls with a randomized
// 1-2 second backoff when the lock is already held, trading latency for
// not depending on blocking-lock support across platforms.
func execOnFileLock(lockPath string, fn func()) error {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			log.Printf("Error unlocking file %q: %v", lockPath, err)
		}
	}()

	fn()
	return nil
}

// mmapReadFile memory-maps path read-only and returns its contents along
// with a closer that unmaps and closes the underlying file. Parsing large
// published vocab/merges files (some exceed several megabytes) this way
// avoids an extra heap copy on top of the page cache.
func mmapReadFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %q", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "failed to stat %q", path)
	}
	if info.Size() == 0 {
		// mmap.Map rejects zero-length files; an empty file is returned as
		// nil data without a mapping (an empty merges file then parses to
		// an empty table, an empty vocab file fails JSON parsing).
		_ = f.Close()
		return nil, func() error { return nil }, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	closer := func() error {
		unmapErr := m.Unmap()
		closeErr := f.Close()
		if unmapErr != nil {
			return unmapErr
		}
		return closeErr
	}
	return []byte(m), closer, nil
}

// LoadVocabulary resolves loc (a local path or URL) and parses it as a
// GPT-2-style vocab.json.
func (s *Source) LoadVocabulary(ctx context.Context, loc string, special []string, unknown string) (*vocab.Vocabulary, error) {
	path, err := s.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, closer, err := mmapReadFile(path)
	if err != nil {
		return nil, err
	}
	defer closer()
	// Published vocab.json files are already NFC-normalized; this is a
	// defensive no-op fast path for the rare fetched file that isn't.
	if !norm.NFC.IsNormal(data) {
		data = norm.NFC.Bytes(data)
	}
	return vocab.LoadBytes(data, special, unknown)
}

// LoadMergeTable resolves loc (a local path or URL) and parses it as a
// GPT-2-style merges.txt.
func (s *Source) LoadMergeTable(ctx context.Context, loc string) (*merges.MergeTable, error) {
	path, err := s.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, closer, err := mmapReadFile(path)
	if err != nil {
		return nil, err
	}
	defer closer()
	return merges.LoadReader(bytes.NewReader(data))
}
