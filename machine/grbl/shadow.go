package grbl

import (
	"bytes"
	"sync"

	"github.com/mastercactapus/cncauto/coord"
	"github.com/mastercactapus/cncauto/gcode"
)

// shadow tracks modal state grbl executes but never reports: the
// selected tool number and the active coordinate rotation. It observes
// every line sent to the controller; it implements io.Writer so it can
// sit behind a TeeReader on the send path.
type shadow struct {
	mx      sync.Mutex
	partial bytes.Buffer

	tool int
	rot  coord.Frame
}

func (s *shadow) Write(p []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.partial.Write(p)
	for {
		line, err := s.partial.ReadString('\n')
		if err != nil {
			// incomplete line, keep for the next write
			s.partial.WriteString(line)
			break
		}
		s.observe(line)
	}
	return len(p), nil
}

func (s *shadow) observe(line string) {
	blocks, err := gcode.Parse(line)
	if err != nil {
		// not g-code (realtime chars, $ commands); nothing modal to track
		return
	}
	for _, b := range blocks {
		for _, w := range b {
			switch {
			case w.W == 'G' && w.Arg == 69:
				s.rot = coord.Frame{}
			case w.W == 'G' && w.Arg == 68:
				var f coord.Frame
				_, f.X = b.Arg('X')
				_, f.Y = b.Arg('Y')
				_, f.Angle = b.Arg('R')
				f.Valid = true
				s.rot = f
			case w.W == 'M' && w.Arg == 61:
				if ok, q := b.Arg('Q'); ok {
					s.tool = int(q)
				}
			}
		}
	}
}

func (s *shadow) snapshot() (tool int, rot coord.Frame) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.tool, s.rot
}
