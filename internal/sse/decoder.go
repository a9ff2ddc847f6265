package sse

import (
	"bytes"
	"strings"
)

// Frame is one blank-line-delimited event block from the wire, after
// field lines have been reassembled but before the payload is parsed.
type Frame struct {
	Name string
	Data string
}

// Decoder reassembles frames from an incrementally delivered stream.
// Chunks may split lines and fields at arbitrary byte offsets; the
// decoder retains the unconsumed remainder between feeds and only acts
// on newline-terminated lines. A Decoder belongs to exactly one stream
// and is discarded when the stream ends.
type Decoder struct {
	remainder []byte
	name      string
	dataLines []string
}

// Feed consumes one chunk and returns the frames it completed, in
// order.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.remainder = append(d.remainder, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.remainder, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(d.remainder[:i]), "\r")
		d.remainder = d.remainder[i+1:]

		if f := d.consumeLine(line); f != nil {
			frames = append(frames, *f)
		}
	}
	return frames
}

// Flush emits the pending frame, if any, at end of stream. A final
// frame is not required to be terminated by a blank line, and a final
// line is not required to be terminated by a newline.
func (d *Decoder) Flush() *Frame {
	if len(d.remainder) > 0 {
		line := strings.TrimSuffix(string(d.remainder), "\r")
		d.remainder = nil
		if f := d.consumeLine(line); f != nil {
			return f
		}
	}
	return d.takeFrame()
}

func (d *Decoder) consumeLine(line string) *Frame {
	switch {
	case line == "":
		return d.takeFrame()
	case strings.HasPrefix(line, ":"):
		// comment / keepalive line
	case strings.HasPrefix(line, "event:"):
		d.name = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "data:"):
		// data lines accumulate; they are joined with \n at frame end
		d.dataLines = append(d.dataLines, strings.TrimSpace(line[len("data:"):]))
	default:
		// unrecognized field, ignored for forward compatibility
	}
	return nil
}

// takeFrame closes out the in-progress frame. A frame that accumulated
// zero data lines is skipped entirely, even when it carried an event
// name.
func (d *Decoder) takeFrame() *Frame {
	if len(d.dataLines) == 0 {
		d.name = ""
		return nil
	}

	f := &Frame{
		Name: d.name,
		Data: strings.Join(d.dataLines, "\n"),
	}
	if f.Name == "" {
		f.Name = "message"
	}

	d.name = ""
	d.dataLines = nil
	return f
}
