package results

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

func TestLog_AppendCounts(t *testing.T) {
	l := NewLog()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	e, ok := l.Append("QR_CODE (TEXT): a", []barcode.Point{{X: 1, Y: 2}})
	require.True(t, ok)
	assert.Equal(t, Entry{Seq: 1, Text: "QR_CODE (TEXT): a", Count: 1, Points: []barcode.Point{{X: 1, Y: 2}}, Time: fixed}, e)

	l.Append("QR_CODE (TEXT): b", nil)
	e, _ = l.Append("QR_CODE (TEXT): a", nil)
	assert.Equal(t, 3, e.Seq)
	assert.Equal(t, 2, e.Count)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 2, l.Count("QR_CODE (TEXT): a"))
	assert.Equal(t, 0, l.Count("missing"))
	assert.Equal(t, []string{"QR_CODE (TEXT): a", "QR_CODE (TEXT): b"}, l.Distinct())
}

func TestLog_IgnoresEmpty(t *testing.T) {
	l := NewLog()
	_, ok := l.Append("", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
}

func TestLog_EntriesIsCopy(t *testing.T) {
	l := NewLog()
	pts := []barcode.Point{{X: 5, Y: 5}}
	l.Append("x", pts)
	pts[0].X = 99

	entries := l.Entries()
	assert.Equal(t, 5, entries[0].Points[0].X, "points are copied on append")
	entries[0].Text = "changed"
	assert.Equal(t, "x", l.Entries()[0].Text)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				l.Append("same", nil)
				_ = l.Entries()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, l.Len())
	assert.Equal(t, 400, l.Count("same"))
	for i, e := range l.Entries() {
		assert.Equal(t, i+1, e.Seq)
		assert.Equal(t, i+1, e.Count)
	}
}
