package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeEntry_Close(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := &TimeEntry{ID: "e1", StartTime: start, IsRunning: true}

	e.Close(start.Add(65 * time.Second))

	assert.False(t, e.IsRunning)
	require.NotNil(t, e.Duration)
	assert.Equal(t, 65*time.Second, *e.Duration)

	// Closing again keeps the first end
	e.Close(start.Add(time.Hour))
	assert.Equal(t, 65*time.Second, *e.Duration)
}

func TestTimeEntry_Close_ClampsEndBeforeStart(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := &TimeEntry{StartTime: start, IsRunning: true}

	e.Close(start.Add(-time.Minute))

	require.NotNil(t, e.Duration)
	assert.Zero(t, *e.Duration)
}

func TestTimeEntry_Day(t *testing.T) {
	start := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	e := &TimeEntry{StartTime: start}

	assert.Equal(t, "2026-03-01", e.Day(time.UTC))
	assert.Equal(t, "2026-03-02", e.Day(time.FixedZone("plus2", 2*3600)))
}

func TestPendingTimeEntry_AddEntryID(t *testing.T) {
	p := &PendingTimeEntry{}

	p.AddEntryID("a")
	p.AddEntryID("b")
	p.AddEntryID("a")

	assert.Equal(t, []string{"a", "b"}, p.AllEntryIDs)
}

func TestRemoteEntry_IDs(t *testing.T) {
	assert.Equal(t, []string{"x"}, RemoteEntry{ID: "x"}.IDs())
	assert.Equal(t, []string{"a", "b"}, RemoteEntry{ID: "x", EntryIDs: []string{"a", "b"}}.IDs())
	assert.Nil(t, RemoteEntry{}.IDs())
}

func TestParseGroupKey(t *testing.T) {
	tests := []struct {
		in      string
		want    GroupKey
		wantErr bool
	}{
		{in: "p1@2026-03-02", want: GroupKey{ProjectID: "p1", Day: "2026-03-02"}},
		{in: "team@x@2026-03-02", want: GroupKey{ProjectID: "team@x", Day: "2026-03-02"}},
		{in: "p1", wantErr: true},
		{in: "@2026-03-02", wantErr: true},
		{in: "p1@", wantErr: true},
		{in: "p1@03/02/2026", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGroupKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidGroupKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}
