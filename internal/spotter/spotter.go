package spotter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AxelotlZoons/Word/internal/transcriber"
)

const DefaultThreshold = 0.85

// Match is one counted keyword occurrence.
type Match struct {
	Root       string
	Word       string
	Start      float64
	Confidence float64
}

// Count is the running total for one root keyword.
type Count struct {
	Keyword string
	Count   int
}

// Snapshot is an immutable copy of all counts, sorted by keyword.
type Snapshot []Count

func (s Snapshot) String() string {
	var b strings.Builder
	for i, c := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Keyword)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(c.Count))
	}
	return b.String()
}

// Get returns the count for keyword, or 0 if it is not configured.
func (s Snapshot) Get(keyword string) int {
	for _, c := range s {
		if c.Keyword == keyword {
			return c.Count
		}
	}
	return 0
}

type wordKey struct {
	text  string
	start float64
}

// Spotter matches transcript words against a fixed keyword set.
//
// Spot must be called from a single goroutine; Snapshot and Counts may be
// called from anywhere.
type Spotter struct {
	forms   map[string]string
	entries []Entry

	threshold atomic.Uint64 // math.Float64bits

	seen map[wordKey]struct{}

	mu     sync.RWMutex
	counts map[string]int
}

func New(keywords []string, threshold float64) (*Spotter, error) {
	roots := make([]string, 0, len(keywords))
	unique := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || unique[k] {
			continue
		}
		unique[k] = true
		roots = append(roots, k)
	}
	if len(roots) == 0 {
		return nil, errors.New("no keywords configured")
	}
	if err := validThreshold(threshold); err != nil {
		return nil, err
	}

	forms, entries := buildInflections(roots)
	s := &Spotter{
		forms:   forms,
		entries: entries,
		seen:    make(map[wordKey]struct{}),
		counts:  make(map[string]int, len(roots)),
	}
	for _, root := range roots {
		s.counts[root] = 0
	}
	s.threshold.Store(math.Float64bits(threshold))
	return s, nil
}

// Spot counts the keyword words in ev and returns the new matches.
//
// A word is counted once per (text, start) pair within an utterance, so
// a partial result re-sent inside a later partial or final does not count
// twice. A final event closes the utterance: its words are checked against
// the utterance so far, then the dedup state is cleared.
func (s *Spotter) Spot(ev transcriber.Event) []Match {
	if ev.Kind == transcriber.ErrorEvent {
		return nil
	}

	threshold := s.Threshold()
	var matches []Match

	for _, w := range ev.Words {
		if w.Confidence < threshold {
			continue
		}
		root, ok := s.forms[w.Text]
		if !ok {
			continue
		}
		key := wordKey{text: w.Text, start: w.Start}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		matches = append(matches, Match{Root: root, Word: w.Text, Start: w.Start, Confidence: w.Confidence})
	}

	if len(matches) > 0 {
		s.mu.Lock()
		for _, m := range matches {
			s.counts[m.Root]++
		}
		s.mu.Unlock()
	}

	if ev.IsFinal {
		clear(s.seen)
	}
	return matches
}

// Pending is the number of (text, start) pairs held for the current utterance.
func (s *Spotter) Pending() int { return len(s.seen) }

func (s *Spotter) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, 0, len(s.counts))
	for k, v := range s.counts {
		snap = append(snap, Count{Keyword: k, Count: v})
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Keyword < snap[j].Keyword })
	return snap
}

// Counts returns a copy of the running totals.
func (s *Spotter) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Entries lists every root with the surface forms that map to it.
func (s *Spotter) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Root: e.Root, Forms: append([]string(nil), e.Forms...)}
	}
	return out
}

// Root returns the root keyword a surface form maps to.
func (s *Spotter) Root(form string) (string, bool) {
	root, ok := s.forms[form]
	return root, ok
}

func (s *Spotter) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetThreshold changes the confidence cutoff for subsequent Spot calls.
func (s *Spotter) SetThreshold(threshold float64) error {
	if err := validThreshold(threshold); err != nil {
		return err
	}
	s.threshold.Store(math.Float64bits(threshold))
	return nil
}

func validThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("invalid confidence threshold: %v (must be between 0 and 1)", threshold)
	}
	return nil
}
