// Package linesource adapts the capture layer's append-only text file into
// the pull-based line stream the evaluation engine polls.
package linesource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

// FileSource reads lines from a text file that the capture process appends
// to. Only newline-terminated lines are visible: a partially written last
// line stays invisible until its newline lands, which is how the source
// guarantees atomic line visibility.
//
// Line indexes are 0-based positions in the file. The capture layer does
// not timestamp lines, so ObservedAt is the read time.
type FileSource struct {
	path  string
	clock clockwork.Clock

	mu sync.Mutex
	// cache of the byte offset where line cacheIndex starts, so sequential
	// polls do not rescan the whole file.
	cacheValid  bool
	cacheIndex  int64
	cacheOffset int64
}

// New returns a FileSource over path. The file does not need to exist yet.
func New(path string, clock clockwork.Clock) *FileSource {
	return &FileSource{path: path, clock: clock}
}

// After returns up to limit complete lines with index > after, in strictly
// increasing index order. A missing file means the capture layer has not
// started yet and yields an empty result, not an error.
func (f *FileSource) After(ctx context.Context, after int64, limit int) ([]domain.TextLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("linesource: open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("linesource: stat %s: %w", f.path, err)
	}
	if f.cacheValid && info.Size() < f.cacheOffset {
		// File shrank under us (privacy reset or external truncation).
		f.cacheValid = false
	}

	var idx, offset int64
	if f.cacheValid && f.cacheIndex == after+1 {
		idx = f.cacheIndex
		offset = f.cacheOffset
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("linesource: seek %s: %w", f.path, err)
		}
	}

	reader := bufio.NewReader(file)
	now := f.clock.Now()

	var out []domain.TextLine
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// No trailing newline yet: the writer is mid-line.
			break
		}
		if err != nil {
			return nil, fmt.Errorf("linesource: read %s: %w", f.path, err)
		}

		curIdx := idx
		idx++
		offset += int64(len(line))

		if curIdx <= after {
			continue
		}

		out = append(out, domain.TextLine{
			Index:      curIdx,
			Content:    strings.TrimRight(line, "\r\n"),
			ObservedAt: now,
		})
		if len(out) >= limit {
			break
		}
	}

	f.cacheValid = true
	f.cacheIndex = idx
	f.cacheOffset = offset

	return out, nil
}
