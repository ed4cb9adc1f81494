// Package terminal is a keyboard control surface for the routing engine.
//
// Each key maps to one engine setter. The surface never touches the audio
// graph; it only changes the routing word through the controller.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/logger"
)

// ErrQuit is returned by Run when the user asks to quit.
var ErrQuit = errors.New("quit requested")

// Controller is the engine control API the surface drives.
// *engine.Engine implements it.
type Controller interface {
	State() routing.Word
	SetMode(m routing.Mode) error
	SetRecord(mode routing.Word) error
	SetRepeat(on bool)
	SetToInput(on bool)
	ClearBuffer()
	Rewind()
}

const help = `keys:
  m muted   p playback   i playback to input   d direct   t passthrough
  n record off   c record input   o record output
  r toggle repeat   x toggle to-input   b rewind   z clear buffer
  s status   ? help   q quit
`

// Surface reads keys from in and prints feedback to out.
type Surface struct {
	ctl Controller
	in  io.Reader
	out io.Writer
	log logger.Logger

	mu sync.Mutex // serializes writes to out
}

// New creates a surface reading keys from in.
func New(ctl Controller, in io.Reader, out io.Writer) *Surface {
	return &Surface{
		ctl: ctl,
		in:  in,
		out: out,
		log: logger.Global().Module("terminal"),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// MakeRaw switches f to raw mode when it is a terminal so single key
// presses are delivered without Enter. The returned function restores
// the previous mode.
func MakeRaw(f *os.File) (restore func(), err error) {
	if !IsTerminal(f) {
		return func() {}, nil
	}
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// Run handles keys until ctx is done, the input ends or the user quits.
// The reader goroutine exits when the input returns an error; for stdin
// that happens when the process exits.
func (s *Surface) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan byte)
	readErr := make(chan error, 1)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := s.in.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	s.printf("%s", help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case k := <-keys:
			if err := s.handle(k); err != nil {
				return err
			}
		}
	}
}

// handle performs the action bound to key.
func (s *Surface) handle(key byte) error {
	var err error
	switch key {
	case 'm':
		err = s.ctl.SetMode(routing.ModeMuted)
	case 'p':
		err = s.ctl.SetMode(routing.ModePlayback)
	case 'i':
		err = s.ctl.SetMode(routing.ModePlaybackToInput)
	case 'd':
		err = s.ctl.SetMode(routing.ModeDirect)
	case 't':
		err = s.ctl.SetMode(routing.ModePassthrough)
	case 'n':
		err = s.ctl.SetRecord(0)
	case 'c':
		err = s.ctl.SetRecord(routing.RecordInput)
	case 'o':
		err = s.ctl.SetRecord(routing.RecordOutput)
	case 'r':
		s.ctl.SetRepeat(!s.ctl.State().Repeat())
	case 'x':
		s.ctl.SetToInput(!s.ctl.State().ToInput())
	case 'b':
		s.ctl.Rewind()
	case 'z':
		s.ctl.ClearBuffer()
	case 's':
	case '?', 'h':
		s.printf("%s", help)
		return nil
	case 'q', 3: // ctrl-c arrives as a byte in raw mode
		return ErrQuit
	case '\r', '\n', ' ':
		return nil
	default:
		s.printf("unknown key %q, press ? for help\n", key)
		return nil
	}
	if err != nil {
		s.log.Warn("control key rejected", logger.String("key", string(key)), logger.Error(err))
		s.printf("error: %v\n", err)
		return nil
	}
	s.Status()
	return nil
}

// Status prints the current routing.
func (s *Surface) Status() {
	w := s.ctl.State()
	s.printf("mode=%s record=%s repeat=%t to_input=%t\n",
		routing.ModeOf(w), routing.RecordName(w), w.Repeat(), w.ToInput())
}

// Notify prints an engine event. It is safe to call from the event
// dispatcher while Run is active.
func (s *Surface) Notify(ev fmt.Stringer) {
	s.printf("event: %s\n", ev)
	s.Status()
}

// printf writes a line in a form that also renders in raw mode.
func (s *Surface) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	out := make([]byte, 0, len(msg)+8)
	for i := range len(msg) {
		if msg[i] == '\n' {
			out = append(out, '\r')
		}
		out = append(out, msg[i])
	}
	_, _ = s.out.Write(out)
}
