package wavfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audioroute/internal/audiocore/engine"
	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/logger"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, depth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%d-bit", depth), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "out.wav")
			want := &Audio{
				Samples:    []float32{0, 0.5, -0.5, 0.25, 1.5, -1.5},
				SampleRate: 44100,
				BitDepth:   depth,
			}
			require.NoError(t, Write(path, want))

			got, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, 44100, got.SampleRate)
			assert.Equal(t, depth, got.BitDepth)
			require.Len(t, got.Samples, 6)

			expected := []float32{0, 0.5, -0.5, 0.25, 1, -1}
			for i := range expected {
				assert.InDelta(t, expected[i], got.Samples[i], 1e-4, "sample %d", i)
			}
		})
	}
}

func TestReadMixesChannelsToMono(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           []int{16384, 0, -16384, -16384, 8192, 8192},
		Format:         &audio.Format{SampleRate: 8000, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 0.25}, got.Samples)
	assert.InDelta(t, 3.0/8000, got.Duration(), 1e-9)
}

func TestReadRejectsNonWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

	_, err := Read(path)
	require.Error(t, err)

	_, err = Read(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestWriteRejectsUnsupportedDepth(t *testing.T) {
	t.Parallel()

	err := Write(filepath.Join(t.TempDir(), "x.wav"), &Audio{SampleRate: 8000, BitDepth: 12})
	require.Error(t, err)
}

func TestParseStep(t *testing.T) {
	t.Parallel()

	on, off := true, false
	input, gain := "input", -6.0

	tests := []struct {
		in   string
		want Step
	}{
		{"0s:mode=direct", Step{At: 0, Mode: "direct"}},
		{"1.5s:mode=playback,repeat=on", Step{At: 1.5, Mode: "playback", Repeat: &on}},
		{"250ms:record=input,to_input=off", Step{At: 0.25, Record: &input, ToInput: &off}},
		{"2s:gain=-6dB", Step{At: 2, GainDB: &gain}},
		{"3s:clear,rewind", Step{At: 3, Clear: true, Rewind: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStep(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"mode=direct", "soon:mode=direct", "1s:mode=loud", "1s:record=both", "1s:repeat=maybe", "1s:explode", "-1s:clear"} {
		_, err := ParseStep(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTimelineSortsStably(t *testing.T) {
	t.Parallel()

	tl, err := ParseTimeline([]string{"2s:mode=muted", "1s:mode=direct", "1s:record=input"})
	require.NoError(t, err)
	require.Len(t, tl, 3)
	assert.Equal(t, "direct", tl[0].Mode)
	require.NotNil(t, tl[1].Record)
	assert.Equal(t, "muted", tl[2].Mode)
}

func TestLoadTimeline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- at: 2
  mode: playback
  repeat: true
- at: 0
  record: input
- at: 4
  clear: true
`), 0o600))

	tl, err := LoadTimeline(path)
	require.NoError(t, err)
	require.Len(t, tl, 3)
	assert.InDelta(t, 0.0, tl[0].At, 0)
	require.NotNil(t, tl[0].Record)
	assert.Equal(t, "input", *tl[0].Record)
	assert.Equal(t, "playback", tl[1].Mode)
	require.NotNil(t, tl[1].Repeat)
	assert.True(t, *tl[1].Repeat)
	assert.True(t, tl[2].Clear)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- at: 1\n  mode: loud\n"), 0o600))
	_, err = LoadTimeline(bad)
	require.Error(t, err)
}

// recordingEngine doubles its input and logs control calls with the
// number of blocks processed before them.
type recordingEngine struct {
	frames, rate int
	blocks       int
	calls        []string
	rateChanges  []int
}

func (r *recordingEngine) log(call string) {
	r.calls = append(r.calls, call+"@"+strconv.Itoa(r.blocks))
}

func (r *recordingEngine) SetMode(m routing.Mode) error { r.log("mode=" + m.String()); return nil }
func (r *recordingEngine) SetRecord(w routing.Word) error {
	r.log("record=" + routing.RecordName(w))
	return nil
}
func (r *recordingEngine) SetRepeat(bool)     { r.log("repeat") }
func (r *recordingEngine) SetToInput(bool)    { r.log("to_input") }
func (r *recordingEngine) ClearBuffer()       { r.log("clear") }
func (r *recordingEngine) Rewind()            { r.log("rewind") }
func (r *recordingEngine) SetGain(float64)    { r.log("gain") }
func (r *recordingEngine) Frames() int        { return r.frames }
func (r *recordingEngine) SampleRate() int    { return r.rate }
func (r *recordingEngine) SampleRateChanged(rate int) error {
	r.rateChanges = append(r.rateChanges, rate)
	r.rate = rate
	return nil
}
func (r *recordingEngine) Process(in, out []float32) error {
	r.blocks++
	for i := range in {
		out[i] = 2 * in[i]
	}
	return nil
}

func TestRenderAppliesStepsAtBlockBoundaries(t *testing.T) {
	t.Parallel()

	e := &recordingEngine{frames: 4, rate: 1000}
	input := &Audio{Samples: []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, SampleRate: 1000, BitDepth: 16}
	tl, err := ParseTimeline([]string{"0s:mode=direct", "5ms:clear", "8ms:rewind", "1s:mode=muted"})
	require.NoError(t, err)

	out, err := Render(context.Background(), e, input, Options{Timeline: tl, Tail: 0.004})
	require.NoError(t, err)

	assert.Equal(t, []string{"mode=direct@0", "clear@2", "rewind@2"}, e.calls)
	assert.Equal(t, 4, e.blocks)
	require.Len(t, out.Samples, 14)
	assert.Equal(t, []float32{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 0, 0, 0, 0}, out.Samples)
	assert.Empty(t, e.rateChanges)
}

func TestRenderFollowsInputSampleRate(t *testing.T) {
	t.Parallel()

	e := &recordingEngine{frames: 4, rate: 1000}
	input := &Audio{Samples: make([]float32, 8), SampleRate: 2000}

	out, err := Render(context.Background(), e, input, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{2000}, e.rateChanges)
	assert.Equal(t, 2000, out.SampleRate)
}

func TestRenderStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &recordingEngine{frames: 4, rate: 1000}
	_, err := Render(ctx, e, &Audio{Samples: make([]float32, 8), SampleRate: 1000}, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRenderThroughEngine(t *testing.T) {
	t.Parallel()

	cfg := engine.DefaultConfig()
	cfg.SampleRate = 1000
	cfg.Frames = 4
	cfg.RecordSeconds = 0.012
	cfg.Test = engine.TestCopy
	cfg.Crossfade = false
	e, err := engine.New(cfg, engine.WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)))
	require.NoError(t, err)

	input := &Audio{SampleRate: 1000, BitDepth: 16}
	for i := range 16 {
		input.Samples = append(input.Samples, float32(i+1)/16)
	}
	tl, err := ParseTimeline([]string{"0s:mode=passthrough", "8ms:mode=muted"})
	require.NoError(t, err)

	out, err := Render(context.Background(), e, input, Options{Timeline: tl})
	require.NoError(t, err)
	require.Len(t, out.Samples, 16)
	assert.Equal(t, input.Samples[:8], out.Samples[:8])
	assert.Equal(t, make([]float32, 8), out.Samples[8:])

	// Round trip through a file keeps the rendered signal.
	path := filepath.Join(t.TempDir(), "render.wav")
	require.NoError(t, Write(path, out))
	back, err := Read(path)
	require.NoError(t, err)
	require.Len(t, back.Samples, 16)
	for i := range out.Samples {
		assert.InDelta(t, out.Samples[i], back.Samples[i], 1e-4)
	}
}

func TestTimelineMerge(t *testing.T) {
	t.Parallel()

	a, err := ParseTimeline([]string{"1s:mode=direct", "3s:mode=muted"})
	require.NoError(t, err)
	b, err := ParseTimeline([]string{"1s:clear", "2s:rewind"})
	require.NoError(t, err)

	m := a.Merge(b)
	require.Len(t, m, 4)
	assert.Equal(t, "direct", m[0].Mode)
	assert.True(t, m[1].Clear)
	assert.True(t, m[2].Rewind)
	assert.Equal(t, "muted", m[3].Mode)
	assert.Len(t, a, 2, "inputs are not modified")
}
