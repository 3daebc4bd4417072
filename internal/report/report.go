// Package report renders the outcome of a convergence run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvandessel/sdrsweep/internal/convergence"
)

// Format specifies the report output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ErrNoResult is returned when there is nothing to report.
var ErrNoResult = errors.New("no result to report")

var separator = strings.Repeat("*", 120)

// Render writes res to w in the given format.
func Render(w io.Writer, res *convergence.Result, format Format) error {
	switch format {
	case FormatText, "":
		return Write(w, res)
	case FormatJSON:
		if res == nil {
			return ErrNoResult
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Summarize(res))
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// Write renders the text report. A converged run lists every recorded set in
// the stability window followed by the reference trajectory; an exhausted run
// gets a notice and the trajectory only.
func Write(w io.Writer, res *convergence.Result) error {
	if res == nil {
		return ErrNoResult
	}

	var b strings.Builder
	b.WriteString("\n")

	if res.Converged() && res.Window != nil {
		writeWindow(&b, res)
	} else {
		fmt.Fprintf(&b, "Convergence not reached after %d sweeps (stable sweeps at exit: %d)\n",
			res.Sweeps, res.StableSweeps)
	}

	writeTrajectory(&b, res)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeWindow(b *strings.Builder, res *convergence.Result) {
	win := res.Window
	fmt.Fprintf(b, "Stability achieved at sweep %d\n", win.Start)
	fmt.Fprintf(b, "Exited after %d stable sweeps at sweep %d\n", win.Len(), win.End)
	b.WriteString(separator + "\n\n")
	fmt.Fprintf(b, "Output sets of %d consecutive stable sweeps:\n\n", win.Len())

	for i, rec := range win.Records {
		fmt.Fprintf(b, "Sweep * %d *:\n", rec.Sweep)
		for _, in := range res.Inputs {
			out, ok := rec.Outputs[in]
			if !ok {
				continue
			}
			fmt.Fprintf(b, " Input: %s | stable sweep %d: %s\n", in, i+1, convergence.FormatSet(out))
		}
		b.WriteString("\n")
	}
}

func writeTrajectory(b *strings.Builder, res *convergence.Result) {
	b.WriteString(separator + "\n\n")
	fmt.Fprintf(b, "Reference input %s across all sweeps:\n\n", res.Reference)
	for _, p := range res.Trajectory {
		fmt.Fprintf(b, "Input %s, Sweep: %d, similarity: %s, size: %d, OUTPUT: %s\n",
			res.Reference, p.Sweep, strconv.FormatFloat(p.Similarity, 'g', -1, 64), p.Size, convergence.FormatSet(p.Output))
	}
}
