// Package ingest supplies raw event pages to the engine.
//
// The engine never dials the network itself: it receives pages from a
// Source through the Poller, and the Inbox de-duplicates events across
// pages so cursor resets and overlapping pagination cannot double-count
// cluster members.
//
// FileSource and FileFetcher read JSONL fixtures, making the CLI and
// the tests runnable with no network at all.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/dmoskov/shadowsky/internal/event"
)

// Page is one page of raw events from a source.
// An empty Cursor means the source is drained.
type Page struct {
	Events []event.RawEvent `json:"events"`
	Cursor string           `json:"cursor,omitempty"`
}

// Source is a paginated raw event supply.
//
// FetchEvents returns the page at the given cursor; an empty cursor
// requests the first page. The returned page's cursor points at the
// next page, empty when there is nothing further.
type Source interface {
	FetchEvents(ctx context.Context, cursor string) (Page, error)
}

// DefaultPageSize is how many records a FileSource page carries.
const DefaultPageSize = 50

// FileSource serves raw events from a JSONL file, one record per line.
// Cursors are numeric line offsets, so pages are stable across calls.
type FileSource struct {
	events   []event.RawEvent
	pageSize int
}

// NewFileSource loads a JSONL file of raw events.
// Blank lines are skipped; a malformed line is a load error, since the
// fixture itself is broken (malformed events inside a valid record are
// the normalizer's concern, not the source's).
func NewFileSource(path string, pageSize int) (*FileSource, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var events []event.RawEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev event.RawEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: decode event record: %w", path, line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	return &FileSource{events: events, pageSize: pageSize}, nil
}

// FetchEvents returns the page at the cursor.
func (s *FileSource) FetchEvents(_ context.Context, cursor string) (Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}
	if offset >= len(s.events) {
		return Page{}, nil
	}

	end := offset + s.pageSize
	next := strconv.Itoa(end)
	if end >= len(s.events) {
		end = len(s.events)
		next = ""
	}

	page := Page{
		Events: make([]event.RawEvent, end-offset),
		Cursor: next,
	}
	copy(page.Events, s.events[offset:end])
	return page, nil
}

// Len returns the total number of records in the fixture.
func (s *FileSource) Len() int {
	return len(s.events)
}

// FileFetcher is an enrich.Fetcher over a JSONL file of post facts.
// It returns only the requested URIs that exist in the file, like a
// real fetch against partially-deleted ancestry.
type FileFetcher struct {
	facts map[string]event.PostFact
}

// NewFileFetcher loads a JSONL file of post facts.
func NewFileFetcher(path string) (*FileFetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open posts file: %w", err)
	}
	defer f.Close()

	facts := make(map[string]event.PostFact)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p event.PostFact
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%s:%d: decode post fact: %w", path, line, err)
		}
		if p.URI != "" {
			facts[p.URI] = p
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read posts file: %w", err)
	}

	return &FileFetcher{facts: facts}, nil
}

// FetchPosts returns the facts known for the requested URIs.
func (f *FileFetcher) FetchPosts(_ context.Context, uris []string) ([]event.PostFact, error) {
	var posts []event.PostFact
	for _, uri := range uris {
		if p, ok := f.facts[uri]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// All returns every fact in the fixture, sorted by URI.
// Used for wholesale merges that bypass the enrichment coordinator.
func (f *FileFetcher) All() []event.PostFact {
	uris := make([]string, 0, len(f.facts))
	for uri := range f.facts {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	posts := make([]event.PostFact, 0, len(uris))
	for _, uri := range uris {
		posts = append(posts, f.facts[uri])
	}
	return posts
}

// Len returns the number of facts in the fixture.
func (f *FileFetcher) Len() int {
	return len(f.facts)
}
