package sse

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/logger"
)

// Handler receives decoded events strictly in arrival order. Returning
// an error stops the decode and propagates to the DecodeStream caller.
type Handler func(domain.StreamEvent) error

// DecodeStream reads the response body to completion, decoding frames
// and dispatching typed events as they complete.
//
// A malformed single event is logged and skipped; the stream continues.
// Caller cancellation stops the decode silently, with no further
// callbacks and no error for the abort itself. An expired deadline and
// any other read failure terminate the stream and are surfaced exactly
// once as a TransportError.
func DecodeStream(ctx context.Context, r io.Reader, handle Handler) error {
	dec := &Decoder{}
	buf := make([]byte, 4096)
	log := logger.FromContext(ctx).Sugar()

	for {
		if ctx.Err() != nil {
			return abortResult(ctx)
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				if ctx.Err() != nil {
					return abortResult(ctx)
				}
				if herr := dispatch(f, handle, log); herr != nil {
					return herr
				}
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if f := dec.Flush(); f != nil && ctx.Err() == nil {
				if herr := dispatch(*f, handle, log); herr != nil {
					return herr
				}
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return &domain.TransportError{Err: err}
	}
}

// abortResult maps a dead context onto the stream outcome. Only a
// caller-driven cancel ends the decode silently; an expired deadline is
// a transport failure the caller must see.
func abortResult(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return &domain.TransportError{Err: ctx.Err()}
}

func dispatch(f Frame, handle Handler, log *zap.SugaredLogger) error {
	ev, err := ParseFrame(f)
	if err != nil {
		// decode failure is local to this frame, distinct from a
		// transport failure
		log.Errorw("dropping malformed stream event", "event", f.Name, "error", err)
		return nil
	}
	if ev == nil {
		log.Warnw("ignoring unrecognized stream event", "event", f.Name)
		return nil
	}
	return handle(ev)
}
