package wavfile

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/errors"
)

// Controller is the control surface a timeline step acts on.
// *engine.Engine implements it.
type Controller interface {
	SetMode(m routing.Mode) error
	SetRecord(mode routing.Word) error
	SetRepeat(on bool)
	SetToInput(on bool)
	ClearBuffer()
	Rewind()
	SetGain(db float64)
}

// Step is one scripted routing change. Unset fields are left alone.
type Step struct {
	At      float64  `yaml:"at"` // seconds from the start of the render
	Mode    string   `yaml:"mode,omitempty"`
	Record  *string  `yaml:"record,omitempty"`
	Repeat  *bool    `yaml:"repeat,omitempty"`
	ToInput *bool    `yaml:"to_input,omitempty"`
	GainDB  *float64 `yaml:"gain_db,omitempty"`
	Clear   bool     `yaml:"clear,omitempty"`
	Rewind  bool     `yaml:"rewind,omitempty"`
}

// Apply performs the step on c.
func (s *Step) Apply(c Controller) error {
	if s.Mode != "" {
		m, err := routing.ParseMode(s.Mode)
		if err != nil {
			return err
		}
		if err := c.SetMode(m); err != nil {
			return err
		}
	}
	if s.Record != nil {
		w, err := routing.ParseRecord(*s.Record)
		if err != nil {
			return err
		}
		if err := c.SetRecord(w); err != nil {
			return err
		}
	}
	if s.Repeat != nil {
		c.SetRepeat(*s.Repeat)
	}
	if s.ToInput != nil {
		c.SetToInput(*s.ToInput)
	}
	if s.GainDB != nil {
		c.SetGain(*s.GainDB)
	}
	if s.Clear {
		c.ClearBuffer()
	}
	if s.Rewind {
		c.Rewind()
	}
	return nil
}

// Timeline is a list of steps ordered by time.
type Timeline []Step

// sort orders steps by time, keeping the given order of simultaneous steps.
func (t Timeline) sort() {
	slices.SortStableFunc(t, func(a, b Step) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})
}

func timelineError(err error, input string) error {
	return errors.New(err).
		Component(ComponentWAV).
		Category(errors.CategoryValidation).
		Context("input", input).
		Build()
}

// LoadTimeline reads a YAML list of steps.
func LoadTimeline(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(err, "read", path)
	}
	var t Timeline
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.New(err).
			Component(ComponentWAV).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	for i := range t {
		if err := t[i].validate(); err != nil {
			return nil, timelineError(err, path)
		}
	}
	t.sort()
	return t, nil
}

func (s *Step) validate() error {
	if s.At < 0 {
		return fmt.Errorf("step time must not be negative, got %g", s.At)
	}
	if s.Mode != "" {
		if _, err := routing.ParseMode(s.Mode); err != nil {
			return err
		}
	}
	if s.Record != nil {
		if _, err := routing.ParseRecord(*s.Record); err != nil {
			return err
		}
	}
	return nil
}

// ParseStep parses the command-line form of a step: a time, a colon and a
// comma separated list of actions, for example
// "1.5s:mode=playback,repeat=on" or "3s:clear,rewind".
func ParseStep(s string) (Step, error) {
	at, actions, ok := strings.Cut(s, ":")
	if !ok {
		return Step{}, timelineError(fmt.Errorf("missing ':' between time and actions"), s)
	}
	d, err := time.ParseDuration(strings.TrimSpace(at))
	if err != nil {
		return Step{}, timelineError(err, s)
	}
	step := Step{At: d.Seconds()}

	for action := range strings.SplitSeq(actions, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(action), "=")
		if err := step.set(key, value); err != nil {
			return Step{}, timelineError(err, s)
		}
	}
	if err := step.validate(); err != nil {
		return Step{}, timelineError(err, s)
	}
	return step, nil
}

func (s *Step) set(key, value string) error {
	switch key {
	case "mode":
		s.Mode = value
	case "record":
		s.Record = &value
	case "repeat", "to_input":
		on, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "repeat" {
			s.Repeat = &on
		} else {
			s.ToInput = &on
		}
	case "gain":
		db, err := strconv.ParseFloat(strings.TrimSuffix(value, "dB"), 64)
		if err != nil {
			return fmt.Errorf("gain: %w", err)
		}
		s.GainDB = &db
	case "clear":
		s.Clear = true
	case "rewind":
		s.Rewind = true
	default:
		return fmt.Errorf("unknown action %q", key)
	}
	return nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(value)
}

// ParseTimeline parses command-line steps into an ordered timeline.
func ParseTimeline(steps []string) (Timeline, error) {
	t := make(Timeline, 0, len(steps))
	for _, s := range steps {
		step, err := ParseStep(s)
		if err != nil {
			return nil, err
		}
		t = append(t, step)
	}
	t.sort()
	return t, nil
}

// Merge returns the steps of t and other in time order. Simultaneous steps
// from t come first.
func (t Timeline) Merge(other Timeline) Timeline {
	merged := make(Timeline, 0, len(t)+len(other))
	merged = append(merged, t...)
	merged = append(merged, other...)
	merged.sort()
	return merged
}
