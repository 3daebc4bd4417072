package convergence

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// FormatSweepLine renders one diagnostic line:
//
//	[sweep=0042, streak=3, stableSweeps=7, input=5, outputSize=20, similarity=1] OUTPUT: 1, 4, 9
func FormatSweepLine(sweep, streak, stableSweeps int, in Input, sim float64, out []int) string {
	return fmt.Sprintf("[sweep=%04d, streak=%d, stableSweeps=%d, input=%s, outputSize=%d, similarity=%s] OUTPUT: %s",
		sweep, streak, stableSweeps, in, len(out), strconv.FormatFloat(sim, 'g', -1, 64), FormatSet(out))
}

// FormatSet joins indices with ", ".
func FormatSet(s []int) string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

type flusher interface {
	Flush() error
}

// lineSink is a best-effort line writer. A failed write is counted and the
// first failure is logged; the caller never sees an error.
type lineSink struct {
	w      io.Writer
	logger *slog.Logger
	errs   int
}

func (s *lineSink) writeLine(line string) {
	if s.w == nil {
		return
	}
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		s.fail(err)
	}
}

func (s *lineSink) flush() {
	f, ok := s.w.(flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		s.fail(err)
	}
}

func (s *lineSink) fail(err error) {
	s.errs++
	if s.errs == 1 {
		s.logger.Warn("diagnostic sink write failed; continuing without it", "error", err)
	}
}
