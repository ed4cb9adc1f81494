package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	ee := Newf("ring overflow at slot %d", 3).
		Component("audiocore.framering").
		Category(CategoryBuffer).
		Priority(PriorityHigh).
		Context("slots", 8).
		Build()

	assert.Equal(t, "ring overflow at slot 3", ee.Error())
	assert.Equal(t, "audiocore.framering", ee.GetComponent())
	assert.Equal(t, string(CategoryBuffer), ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, map[string]any{"slots": 8}, ee.GetContext())
}

func TestPriorityFallback(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestIsSemantics(t *testing.T) {
	sentinelA := New(NewStd("buffer empty")).Category(CategoryBuffer).Build()
	sentinelB := New(NewStd("buffer full")).Category(CategoryBuffer).Build()
	wrapped := fmt.Errorf("fill: %w", sentinelA)

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same sentinel", sentinelA, sentinelA, true},
		{"different sentinel same category", sentinelA, sentinelB, false},
		{"wrapped sentinel", wrapped, sentinelA, true},
		{"category matcher", sentinelA, &EnhancedError{Category: CategoryBuffer}, true},
		{"category mismatch", sentinelA, &EnhancedError{Category: CategoryState}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(tt.err, tt.target))
		})
	}
}

func TestIsCategory(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(NewStd("bad")).Category(CategoryValidation).Build())
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.False(t, IsCategory(err, CategoryAudio))
	assert.False(t, IsCategory(NewStd("plain"), CategoryValidation))
}

func TestComponentFromFunc(t *testing.T) {
	tests := []struct {
		fn   string
		want string
	}{
		{"github.com/tphakala/audioroute/internal/audiocore/graph.(*Output).Connect", "audiocore.graph"},
		{"github.com/tphakala/audioroute/internal/conf.Load", "conf"},
		{"github.com/tphakala/audioroute/internal/errors.New", ""},
		{"main.main", ""},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			assert.Equal(t, tt.want, componentFromFunc(tt.fn))
		})
	}
}

// Not parallel: mutates the package-level reporter.
func TestTelemetryOnlyForHighPriority(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	_ = New(NewStd("low")).Category(CategoryAudio).Build()
	critical := New(NewStd("crash")).Category(CategoryGraph).Priority(PriorityCritical).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, critical, reporter.reported[0])
	assert.True(t, critical.IsReported())
}

func TestScrubMessage(t *testing.T) {
	assert.Equal(t, "open [PATH]: denied", scrubMessage("open /home/alice/config.yaml: denied"))
}

func TestScrubMessageKeepsPunctuationAfterPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"stat /root/x.wav: no such file", "stat [PATH]: no such file"},
		{"paths /Users/bob/a, /home/c/b; done", "paths [PATH], [PATH]; done"},
		{"(see /home/alice/log)", "(see [PATH])"},
		{`file "/home/alice/a b"`, `file "[PATH] b"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scrubMessage(tt.in))
	}
}
