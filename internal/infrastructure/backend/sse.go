package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
)

// eventStream decodes a text/event-stream body into StreamEvents.
// Only "data" fields matter to the check stream; ids, retries and
// comments are skipped.
type eventStream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	logger    *zap.Logger
	closeOnce sync.Once
}

func newEventStream(body io.ReadCloser, logger *zap.Logger) *eventStream {
	return &eventStream{
		body:   body,
		reader: bufio.NewReader(body),
		logger: logger,
	}
}

// Next returns the next decodable event. Payloads that are not valid JSON
// are logged and skipped. The read unblocks when the context used to open
// the stream is cancelled or Close is called.
func (s *eventStream) Next(ctx context.Context) (domain.StreamEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.StreamEvent{}, err
		}

		data, err := s.readData()
		if data != "" {
			var event domain.StreamEvent
			if jsonErr := json.Unmarshal([]byte(data), &event); jsonErr != nil {
				s.logger.Warn("skipping malformed stream event", zap.Error(jsonErr))
			} else {
				return event, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.StreamEvent{}, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.StreamEvent{}, ctxErr
			}
			return domain.StreamEvent{}, fmt.Errorf("%w: %v", domain.ErrStreamFailure, err)
		}
	}
}

// readData reads one event block and returns its joined data lines.
// An event is only dispatched by its terminating blank line, so a block cut
// off by a read error or EOF is discarded.
func (s *eventStream) readData() (string, error) {
	var data []string
	for {
		line, err := s.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "" && err == nil:
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if err != nil {
			return "", err
		}
	}
}

// Close releases the underlying connection
func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}
