package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_SuggestWindow(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		ref        time.Time
		wantStarts time.Time
		wantEnds   time.Time
	}{
		{
			name:       "weekly opening and closing",
			cfg:        Config{Opening: "0 8 * * 1", Closing: "0 20 * * 4"},
			ref:        time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
			wantStarts: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			wantEnds:   time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC),
		},
		{
			name:       "reference on the opening instant",
			cfg:        Config{Opening: "0 8 * * 1", Closing: "0 20 * * 4"},
			ref:        time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			wantStarts: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			wantEnds:   time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC),
		},
		{
			name:       "no rules",
			cfg:        Config{},
			ref:        time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
			wantStarts: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
			wantEnds:   time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
		},
		{
			name:       "closing only",
			cfg:        Config{Closing: "30 18 * * *"},
			ref:        time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC),
			wantStarts: time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC),
			wantEnds:   time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDefaults(tt.cfg)
			require.NoError(t, err)

			starts, ends := d.SuggestWindow(tt.ref)

			assert.Equal(t, tt.wantStarts, starts)
			assert.Equal(t, tt.wantEnds, ends)
		})
	}
}

func TestDefaults_LocationShiftsWindow(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	d, err := NewDefaults(Config{Opening: "0 8 * * 1", Location: berlin})
	require.NoError(t, err)

	starts, _ := d.SuggestWindow(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC), starts)
}

func TestNewDefaults_InvalidSpec(t *testing.T) {
	_, err := NewDefaults(Config{Opening: "every monday"})
	assert.ErrorContains(t, err, "parse opening schedule")
}
