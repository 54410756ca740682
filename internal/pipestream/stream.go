// Package pipestream decodes the back-to-back JSON objects the daemon
// writes into a pipe for bulk package listings.
//
// The daemon writes objects without any delimiter and closes its end when
// done. The reader polls the read end with a bounded wait, appends what
// arrives to a buffer and decodes as many complete objects as the buffer
// holds. An incomplete trailing object stays buffered until more bytes
// arrive. The stream ends on EOF, on a poll that times out, or when the
// total wait exceeds Options.MaxWait. The read end is closed on every exit
// path.
package pipestream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	// DefaultPollInterval bounds a single wait for readable data.
	DefaultPollInterval = 1000 * time.Millisecond
	readChunk           = 64 * 1024
)

// Options tunes a stream.
type Options struct {
	// PollInterval is the longest a single poll waits. A poll that sees
	// no data and no hang-up ends the stream.
	PollInterval time.Duration
	// MaxWait bounds the total time spent reading. Zero means no bound.
	MaxWait time.Duration
	Logger  *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Stream returns a single-use sequence of values decoded from r. The
// sequence closes r when it ends, including when the consumer stops early.
// The caller must range over the sequence (or call Collect) exactly once.
func Stream[T any](r *os.File, opts Options) iter.Seq[T] {
	opts = opts.withDefaults()
	log := opts.Logger
	return func(yield func(T) bool) {
		defer r.Close()
		fd := int(r.Fd())
		var (
			buf      []byte
			chunk    = make([]byte, readChunk)
			deadline time.Time
		)
		if opts.MaxWait > 0 {
			deadline = time.Now().Add(opts.MaxWait)
		}
		for {
			wait := opts.PollInterval
			if !deadline.IsZero() {
				left := time.Until(deadline)
				if left <= 0 {
					log.Warn().Str("event", "pipe_max_wait").Dur("max_wait", opts.MaxWait).Int("buffered", len(buf)).Msg("pipe stream exceeded total wait")
					return
				}
				if left < wait {
					wait = left
				}
			}
			readable, err := pollReadable(fd, wait)
			if err != nil {
				log.Error().Err(err).Str("event", "pipe_poll_error").Msg("polling pipe failed")
				return
			}
			if !readable {
				if !deadline.IsZero() && time.Until(deadline) <= 0 {
					continue
				}
				log.Debug().Str("event", "pipe_poll_timeout").Dur("interval", wait).Int("buffered", len(buf)).Msg("no data from daemon, ending stream")
				return
			}
			n, err := unix.Read(fd, chunk)
			if err != nil {
				if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
					continue
				}
				log.Error().Err(err).Str("event", "pipe_read_error").Msg("reading pipe failed")
				return
			}
			if n == 0 {
				if rest := bytes.TrimSpace(buf); len(rest) > 0 {
					log.Warn().Str("event", "pipe_trailing_fragment").Int("bytes", len(rest)).Msg("discarding undecodable data at end of stream")
				}
				return
			}
			buf = append(buf, chunk[:n]...)
			var more bool
			buf, more = decodeAvailable(buf, yield, log)
			if !more {
				return
			}
		}
	}
}

// Collect drains Stream into a slice.
func Collect[T any](r *os.File, opts Options) []T {
	var out []T
	for v := range Stream[T](r, opts) {
		out = append(out, v)
	}
	return out
}

// decodeAvailable yields every complete JSON value at the front of buf and
// returns the unconsumed remainder. more is false once yield asks to stop.
func decodeAvailable[T any](buf []byte, yield func(T) bool, log *zerolog.Logger) (rest []byte, more bool) {
	for {
		buf = bytes.TrimLeft(buf, " \t\r\n")
		if len(buf) == 0 {
			return buf, true
		}
		dec := json.NewDecoder(bytes.NewReader(buf))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("event", "pipe_decode_wait").Int("buffered", len(buf)).Msg("fragment not decodable yet")
			}
			return buf, true
		}
		buf = buf[dec.InputOffset():]
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Warn().Err(err).Str("event", "pipe_record_skipped").Msg("record does not match expected shape")
			continue
		}
		if !yield(v) {
			return buf, false
		}
	}
}

// pollReadable waits up to d for fd to become readable or hung up.
func pollReadable(fd int, d time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	ms := int(d / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		re := fds[0].Revents
		if re&unix.POLLNVAL != 0 {
			return false, errors.New("pipe descriptor is not open")
		}
		// POLLHUP and POLLERR are reported as readable so the following
		// read observes EOF or the error.
		return re&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
	}
}
