package protocols

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func clock() time.Time { return fixedNow }

func TestDefaultOrder(t *testing.T) {
	t.Parallel()

	r := Default(nil)
	assert.Equal(t, []string{NameLP7516, NameMettler, NamePT, NameDix}, r.Names())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	r := Default(clock)

	tests := []struct {
		line string
		want string
	}{
		{"ST,GS,+   0.75kg", NameLP7516},
		{"\x02   1.30 kg PT", NameLP7516},
		{"Date Gross 1 kg Tare", NameMettler},
		{"1.30 kg PT", NamePT},
		{"0 1.00kg", NameDix},
	}

	for _, tt := range tests {
		p, ok := r.Classify(tt.line)
		require.True(t, ok, tt.line)
		assert.Equal(t, tt.want, p.Name, tt.line)
	}

	_, ok := r.Classify("hello world")
	assert.False(t, ok)
}

func TestClassifyOrderSensitive(t *testing.T) {
	t.Parallel()

	line := "\x02   1.30 kg PT"
	require.True(t, LP7516().CanParse(line))
	require.True(t, PT().CanParse(line))
	require.True(t, Dix().CanParse(line))

	first, ok := NewRegistry(clock, PT(), LP7516()).Classify(line)
	require.True(t, ok)
	assert.Equal(t, NamePT, first.Name)

	first, ok = NewRegistry(clock, Dix(), PT(), LP7516()).Classify(line)
	require.True(t, ok)
	assert.Equal(t, NameDix, first.Name)
}

func TestDispatchFirstReadingWins(t *testing.T) {
	t.Parallel()

	r := Default(clock)
	reading, ok := r.Dispatch([]string{"", "   ", "garbage", "ST,GS,+   2.00kg", "ST,GS,+   3.00kg"})

	require.True(t, ok)
	assert.InDelta(t, 2.00, reading.Weight, 1e-9)
	assert.Equal(t, NameLP7516, reading.SourceProtocol)
	assert.Equal(t, fixedNow, reading.ObservedAt)
}

func TestDispatchTrimsLines(t *testing.T) {
	t.Parallel()

	reading, ok := Default(clock).Dispatch([]string{"  Date Gross   12.34 kg Tare 0 kg  "})

	require.True(t, ok)
	assert.InDelta(t, 12.34, reading.Weight, 1e-9)
	assert.Equal(t, NameMettler, reading.SourceProtocol)
}

func TestDispatchClaimedLineDoesNotFallThrough(t *testing.T) {
	t.Parallel()

	// Dix owns the line and fails; LP7516 would have decoded it.
	r := NewRegistry(clock, Dix(), LP7516())
	_, ok := r.Dispatch([]string{"\x02   1.30 kg PT"})
	assert.False(t, ok)
}

func TestDispatchSkipsFailedLine(t *testing.T) {
	t.Parallel()

	reading, ok := Default(clock).Dispatch([]string{"OL,GS,+ ------kg", "ST,GS,-   1.00kg"})

	require.True(t, ok)
	assert.InDelta(t, -1.00, reading.Weight, 1e-9)
}

func TestDispatchNothing(t *testing.T) {
	t.Parallel()

	_, ok := Default(clock).Dispatch(nil)
	assert.False(t, ok)

	_, ok = Default(clock).Dispatch([]string{"no unit here", "OL,GS,+ ------kg"})
	assert.False(t, ok)
}
