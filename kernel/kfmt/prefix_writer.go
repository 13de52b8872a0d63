package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter tags every line written to Sink with Prefix. The prefix of a
// line is emitted together with its first byte, so a trailing line feed
// does not produce a dangling prefix.
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	midLine bool
}

// Write implements io.Writer. The returned count excludes the injected
// prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int
	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if eol := bytes.IndexByte(p, '\n'); eol >= 0 {
			line = p[:eol+1]
			w.midLine = false
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(line):]
	}

	return written, nil
}
