package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/inbox/a.txt", Operation: OpCreate})

	// Then: the event passes through after the window
	events := receiveBatch(t, d, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, "/inbox/a.txt", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"create then modify stays create", []Operation{OpCreate, OpModify, OpModify}, []Operation{OpCreate}},
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, nil},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"replace then delete is delete", []Operation{OpDelete, OpCreate, OpDelete}, []Operation{OpDelete}},
		{"modify repeated is modify", []Operation{OpModify, OpModify}, []Operation{OpModify}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer
			d := NewDebouncer(time.Hour)
			defer d.Stop()

			// When: the sequence is added for one path and flushed by hand
			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/inbox/doc.md", Operation: op})
			}
			d.flush()

			// Then: the coalesced result matches
			if tt.want == nil {
				assert.Equal(t, 0, d.Pending())
				select {
				case events := <-d.Output():
					t.Fatalf("expected no events, got %v", events)
				default:
				}
				return
			}
			events := receiveBatch(t, d, time.Second)
			require.Len(t, events, len(tt.want))
			for i, op := range tt.want {
				assert.Equal(t, op, events[i].Operation)
			}
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	// Given: events for several paths
	d := NewDebouncer(time.Hour)
	defer d.Stop()
	for _, p := range []string{"/inbox/c.txt", "/inbox/a.txt", "/inbox/b.txt"} {
		d.Add(FileEvent{Path: p, Operation: OpCreate})
	}

	// When: flushed
	d.flush()

	// Then: one batch in path order
	events := receiveBatch(t, d, time.Second)
	require.Len(t, events, 3)
	assert.Equal(t, "/inbox/a.txt", events[0].Path)
	assert.Equal(t, "/inbox/b.txt", events[1].Path)
	assert.Equal(t, "/inbox/c.txt", events[2].Path)
}

func TestDebouncer_WindowRestartsOnEachEvent(t *testing.T) {
	// Given: a debouncer with a 200ms window
	d := NewDebouncer(200 * time.Millisecond)
	defer d.Stop()

	// When: events keep arriving inside the window
	for i := 0; i < 4; i++ {
		d.Add(FileEvent{Path: "/inbox/a.txt", Operation: OpModify})
		time.Sleep(20 * time.Millisecond)
	}

	// Then: exactly one batch
	events := receiveBatch(t, d, time.Second)
	require.Len(t, events, 1)
	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch %v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_Stop(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "/inbox/a.txt", Operation: OpCreate})

	// When: stopped twice
	d.Stop()
	d.Stop()

	// Then: output is closed and further adds are ignored
	_, ok := <-d.Output()
	assert.False(t, ok)
	d.Add(FileEvent{Path: "/inbox/b.txt", Operation: OpCreate})
	assert.Equal(t, 0, d.Pending())
}
