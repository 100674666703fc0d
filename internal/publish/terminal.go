package publish

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
)

// TerminalSink is the Terminal sink (soft failure): it writes the
// digest to standard output (or any io.Writer) and never fails.
type TerminalSink struct {
	out io.Writer
}

// NewTerminalSink creates a TerminalSink writing to out, defaulting to
// os.Stdout when out is nil.
func NewTerminalSink(out io.Writer) *TerminalSink {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalSink{out: out}
}

// Name identifies this sink for logging.
func (t *TerminalSink) Name() string { return "terminal" }

// Publish writes a short banner followed by the full Markdown. Write
// errors to a terminal stream are not actionable, so Publish always
// returns nil.
func (t *TerminalSink) Publish(_ context.Context, digest *aggregate.Digest) error {
	fmt.Fprintf(t.out, "=== HackerNews Daily Digest: %s (%d stories) ===\n\n", digest.Date, len(digest.Stories))
	fmt.Fprintln(t.out, digest.Markdown)
	return nil
}
