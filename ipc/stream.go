package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// messageBuffer bounds how many decoded messages wait for a reader
const messageBuffer = 64

/* Stream is a Link carrying newline-delimited JSON over a reader/writer pair,
 * such as the pipes handed to a child process or an in-memory io.Pipe
 */
type Stream struct {
	r        io.ReadCloser
	w        io.WriteCloser
	mu       sync.Mutex
	enc      *json.Encoder
	messages chan Message
	once     sync.Once
}

// NewStream starts decoding messages from r; messages are written to w
func NewStream(r io.ReadCloser, w io.WriteCloser) *Stream {
	s := &Stream{
		r:        r,
		w:        w,
		enc:      json.NewEncoder(w),
		messages: make(chan Message, messageBuffer),
	}
	go s.readLoop()
	return s
}

// Send writes one message; writes are serialized
func (s *Stream) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Messages returns the decoded messages; the channel closes at EOF or on a decode error
func (s *Stream) Messages() <-chan Message {
	return s.messages
}

// Close closes both directions
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		werr := s.w.Close()
		rerr := s.r.Close()
		if werr != nil {
			err = fmt.Errorf("closing writer: %w", werr)
		} else if rerr != nil {
			err = fmt.Errorf("closing reader: %w", rerr)
		}
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.messages)

	dec := json.NewDecoder(bufio.NewReader(s.r))
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			return
		}
		s.messages <- msg
	}
}
