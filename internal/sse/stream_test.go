package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/logger"
)

// chunkReader yields the given chunks one Read at a time, then the
// final error.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestDecodeStream_OrderedDelivery(t *testing.T) {
	input := "event: token\ndata: {\"text\":\"a\"}\n\n" +
		"event: tool\ndata: {\"tool\":\"search\",\"status\":\"start\"}\n\n" +
		"event: token\ndata: {\"text\":\"b\"}\n\n" +
		"event: done\ndata: {\"content\":\"ab\"}\n\n"

	var got []domain.StreamEvent
	err := DecodeStream(context.Background(), strings.NewReader(input), func(ev domain.StreamEvent) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, domain.TokenEvent{Text: "a"}, got[0])
	assert.IsType(t, domain.ToolEvent{}, got[1])
	assert.Equal(t, domain.TokenEvent{Text: "b"}, got[2])
	assert.IsType(t, domain.DoneEvent{}, got[3])
}

func TestDecodeStream_MalformedEventIsIsolated(t *testing.T) {
	input := "event: token\ndata: {\"text\":\"before\"}\n\n" +
		"event: token\ndata: {broken\n\n" +
		"event: token\ndata: {\"text\":\"after\"}\n\n"

	var got []domain.StreamEvent
	err := DecodeStream(context.Background(), strings.NewReader(input), func(ev domain.StreamEvent) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TokenEvent{Text: "before"}, got[0])
	assert.Equal(t, domain.TokenEvent{Text: "after"}, got[1])
}

func TestDecodeStream_FlushOnClose(t *testing.T) {
	// the stream ends right after the done event, no trailing blank line
	input := "event: done\ndata: {\"content\":\"bye\"}\n"

	var got []domain.StreamEvent
	err := DecodeStream(context.Background(), strings.NewReader(input), func(ev domain.StreamEvent) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bye", got[0].(domain.DoneEvent).Content)
}

func TestDecodeStream_CancellationIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var got int
	err := DecodeStream(ctx, &chunkReader{
		chunks: []string{
			"event: token\ndata: {\"text\":\"a\"}\n\n",
			"event: token\ndata: {\"text\":\"b\"}\n\n",
			"event: token\ndata: {\"text\":\"c\"}\n\n",
		},
	}, func(ev domain.StreamEvent) error {
		got++
		if got == 1 {
			cancel()
		}
		return nil
	})

	// no error for the abort, and no callbacks after it
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestDecodeStream_DeadlineIsTransportError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	err := DecodeStream(ctx, strings.NewReader("event: token\ndata: {\"text\":\"a\"}\n\n"), func(ev domain.StreamEvent) error {
		t.Fatal("no events may be delivered after the deadline")
		return nil
	})

	// unlike a caller cancel, an expired deadline must surface
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeStream_LogsDroppedAndUnknownEvents(t *testing.T) {
	ctx, logs := logger.TestContext()

	input := "event: token\ndata: {broken\n\nevent: telemetry\ndata: {}\n\n"
	err := DecodeStream(ctx, strings.NewReader(input), func(domain.StreamEvent) error { return nil })
	require.NoError(t, err)

	dropped := logs.FilterMessage("dropping malformed stream event").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, zapcore.ErrorLevel, dropped[0].Level)

	unknown := logs.FilterMessage("ignoring unrecognized stream event").All()
	require.Len(t, unknown, 1)
	assert.Equal(t, zapcore.WarnLevel, unknown[0].Level)
}

func TestDecodeStream_TransportErrorSurfacedOnce(t *testing.T) {
	readErr := errors.New("connection reset by peer")

	var got []domain.StreamEvent
	err := DecodeStream(context.Background(), &chunkReader{
		chunks: []string{"event: token\ndata: {\"text\":\"a\"}\n\n"},
		err:    readErr,
	}, func(ev domain.StreamEvent) error {
		got = append(got, ev)
		return nil
	})

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, readErr)
	// the event completed before the failure was still delivered
	require.Len(t, got, 1)
}

func TestDecodeStream_UnknownEventsSkipped(t *testing.T) {
	input := "event: telemetry\ndata: {}\n\nevent: token\ndata: {\"text\":\"x\"}\n\n"

	var got []domain.StreamEvent
	err := DecodeStream(context.Background(), strings.NewReader(input), func(ev domain.StreamEvent) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TokenEvent{Text: "x"}, got[0])
}

func TestDecodeStream_HandlerErrorStopsDecode(t *testing.T) {
	input := "event: token\ndata: {\"text\":\"a\"}\n\nevent: token\ndata: {\"text\":\"b\"}\n\n"
	boom := errors.New("sink failed")

	var got int
	err := DecodeStream(context.Background(), strings.NewReader(input), func(ev domain.StreamEvent) error {
		got++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, got)
}
