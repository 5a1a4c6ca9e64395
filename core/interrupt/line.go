package interrupt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muesli/cancelreader"
)

// LineSource interrupts on every line read from its input, so a plain Enter
// works where raw key reading is not allowed.
type LineSource struct {
	input io.Reader
}

// NewLineSource reads from input, or stdin when input is nil.
func NewLineSource(input io.Reader) *LineSource {
	if input == nil {
		input = os.Stdin
	}
	return &LineSource{input: input}
}

func (s *LineSource) Run(ctx context.Context, emit Emit) error {
	reader, err := cancelreader.NewReader(s.input)
	if err != nil {
		return fmt.Errorf("failed to create cancelable reader: %w", err)
	}
	defer reader.Close()

	stop := withContextCancelHook(ctx, func() { reader.Cancel() })
	defer close(stop)

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		record(ctx, emit, NewEvent(KindKeyPress, "enter"))
	}

	err = scanner.Err()
	switch {
	case err == nil, errors.Is(err, cancelreader.ErrCanceled):
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("failed to read line input: %w", err)
	}
}

func withContextCancelHook(ctx context.Context, onContextDone func()) chan struct{} {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			onContextDone()
		case <-done:
		}
	}()
	return done
}
