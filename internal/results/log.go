// Package results keeps the ordered log of decoded display strings.
package results

import (
	"sync"
	"time"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

// Entry is one appended result.
type Entry struct {
	Seq    int             `json:"seq"              yaml:"seq"`
	Text   string          `json:"text"             yaml:"text"`
	Count  int             `json:"count"            yaml:"count"`
	Points []barcode.Point `json:"points,omitempty" yaml:"points,omitempty"`
	Time   time.Time       `json:"time"             yaml:"time"`
}

// Log is an append-only sequence of display strings. Count tracks how many
// times each distinct string has been appended so far.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	counts  map[string]int
	now     func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{counts: make(map[string]int), now: time.Now}
}

// Append records text and returns the stored entry. Empty text is ignored
// and reported with ok == false.
func (l *Log) Append(text string, points []barcode.Point) (Entry, bool) {
	if text == "" {
		return Entry{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[text]++
	e := Entry{
		Seq:    len(l.entries) + 1,
		Text:   text,
		Count:  l.counts[text],
		Points: append([]barcode.Point(nil), points...),
		Time:   l.now(),
	}
	l.entries = append(l.entries, e)
	return e, true
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Count returns how many times text was appended.
func (l *Log) Count(text string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[text]
}

// Distinct returns each distinct text once, in order of first appearance.
func (l *Log) Distinct() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for _, e := range l.entries {
		if e.Count == 1 {
			out = append(out, e.Text)
		}
	}
	return out
}
