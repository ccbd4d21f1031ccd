package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBufferSize = 4096

// HandlerFunc receives each decoded record, in stream order. A returned
// error stops the stream.
type HandlerFunc[T any] func(ctx context.Context, v T) error

// DecodeError is returned when the data of a frame is not valid JSON for the
// record type. It ends the stream.
type DecodeError struct {
	Event string
	Data  string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("could not decode %q event: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("could not decode event: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type Option func(*options)

type options struct {
	bufferSize int
	logger     zerolog.Logger
}

// WithBufferSize sets the size of the reads issued against the transport.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Framer turns a server-sent event stream of JSON payloads into decoded
// records of type T and hands them to a handler.
type Framer[T any] struct {
	parser  *Parser
	handler HandlerFunc[T]
	opts    options
	count   int
}

func NewFramer[T any](handler HandlerFunc[T], opts ...Option) *Framer[T] {
	o := options{
		bufferSize: DefaultBufferSize,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Framer[T]{
		parser:  NewParser(),
		handler: handler,
		opts:    o,
	}
}

// Count returns the number of records handed to the handler so far.
func (f *Framer[T]) Count() int {
	return f.count
}

// Feed consumes one chunk of the stream. It is exported for transports that
// push bytes instead of exposing an io.Reader.
func (f *Framer[T]) Feed(ctx context.Context, chunk []byte) error {
	return f.parser.Feed(chunk, func(frame Frame) error {
		return f.dispatch(ctx, frame)
	})
}

func (f *Framer[T]) dispatch(ctx context.Context, frame Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var v T
	if err := json.Unmarshal([]byte(frame.Data), &v); err != nil {
		f.opts.logger.Debug().
			Str("event", frame.Event).
			Str("data", frame.Data).
			Err(err).
			Msg("invalid event payload")
		return &DecodeError{Event: frame.Event, Data: frame.Data, Err: err}
	}

	f.opts.logger.Trace().
		Str("event", frame.Event).
		Str("id", frame.ID).
		Int("index", f.count).
		Msg("dispatching event")

	if err := f.handler(ctx, v); err != nil {
		return errors.WithMessagef(err, "handler failed on event %d", f.count)
	}
	f.count++
	return nil
}

// Run reads r until EOF and dispatches every complete frame. It returns nil
// at EOF, ctx.Err() when the context is done, and the first decode, handler
// or read error otherwise. An unterminated frame at EOF is dropped.
func (f *Framer[T]) Run(ctx context.Context, r io.Reader) error {
	defer f.parser.Close()

	buf := make([]byte, f.opts.bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if ferr := f.Feed(ctx, buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			f.opts.logger.Debug().Int("events", f.count).Msg("event stream ended")
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.Wrap(err, "could not read event stream")
		}
	}
}

// Stream decodes the event stream read from r and calls handler for every
// record.
func Stream[T any](ctx context.Context, r io.Reader, handler HandlerFunc[T], opts ...Option) error {
	return NewFramer(handler, opts...).Run(ctx, r)
}
