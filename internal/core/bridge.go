package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/llm"
)

// TokenStream is a blocking, incrementally-producing generation
// response. Recv returns io.EOF once the model is done.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Generator starts a generation call for a full chat prompt.
type Generator interface {
	Stream(ctx context.Context, messages []llm.Message) (TokenStream, error)
}

// streamEvent is one entry on the bridge channel. The final event of
// every stream has Done set, carrying the generation error if any;
// that sentinel is the consumer's single exit condition.
type streamEvent struct {
	Token string
	Done  bool
	Err   error
}

// defaultJoinTimeout bounds how long the consumer waits for the worker
// goroutine to terminate after the sentinel.
const defaultJoinTimeout = 5 * time.Second

// runStream bridges the blocking generation call into an ordered token
// sequence.
//
// The generation call runs on its own goroutine so it never blocks the
// caller; each produced token is forwarded through a single-consumer
// channel in production order, then a sentinel is enqueued exactly
// once, success or failure. The consumer concatenates everything it
// sees and the concatenation is returned even when generation failed
// partway: partial answers are kept, not discarded.
//
// emit failures (client gone) stop delivery but not accumulation; the
// worker runs to completion so the text can still be persisted.
func runStream(ctx context.Context, gen Generator, messages []llm.Message, joinTimeout time.Duration, emit func(token string) error) (string, error) {
	if joinTimeout <= 0 {
		joinTimeout = defaultJoinTimeout
	}

	events := make(chan streamEvent, 64)
	workerDone := make(chan struct{})

	go func() {
		defer close(workerDone)
		defer close(events)

		stream, err := gen.Stream(ctx, messages)
		if err != nil {
			events <- streamEvent{Done: true, Err: err}
			return
		}
		defer stream.Close()

		for {
			token, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				events <- streamEvent{Done: true}
				return
			}
			if err != nil {
				events <- streamEvent{Done: true, Err: err}
				return
			}
			if token != "" {
				events <- streamEvent{Token: token}
			}
		}
	}()

	var accumulated strings.Builder
	var streamErr error
	emitting := emit != nil
	for ev := range events {
		if ev.Done {
			streamErr = ev.Err
			break
		}
		accumulated.WriteString(ev.Token)
		if emitting {
			if err := emit(ev.Token); err != nil {
				log.Warn().Err(err).Msg("token delivery failed, finishing generation without a reader")
				emitting = false
			}
		}
	}

	// The sentinel is sent before the worker returns, so make sure the
	// worker has actually finished writing before the text is treated
	// as final. Bounded: a stuck worker must not block the turn.
	select {
	case <-workerDone:
	case <-time.After(joinTimeout):
		log.Warn().Dur("timeout", joinTimeout).
			Msg("generation worker did not terminate in time, proceeding with accumulated text")
	}

	return accumulated.String(), streamErr
}
