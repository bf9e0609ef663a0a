package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sharkemon/internal/models"
)

// ErrFatal marks a consumer error that must stop the session.
var ErrFatal = errors.New("fatal capture error")

// Fatal wraps err so Run aborts instead of skipping the frame.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// Consumer receives every classified packet, on the capture goroutine.
type Consumer func(models.SimplePacket) error

// FrameObserver is told the outcome of every frame read.
type FrameObserver interface {
	ObserveFrame(models.FrameOutcome)
}

type Option func(*Session)

// WithLogger sets the session logger. It defaults to the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver reports every frame outcome to o.
func WithObserver(o FrameObserver) Option {
	return func(s *Session) { s.observer = o }
}

// WithOpener replaces OpenLive, mostly for tests.
func WithOpener(open Opener) Option {
	return func(s *Session) { s.open = open }
}

// Session owns one capture handle for its lifetime. Open acquires it; Run
// and Close both guarantee it is released.
type Session struct {
	id       string
	cfg      Config
	local    AddressSet
	handle   Handle
	linkType layers.LinkType
	open     Opener
	logger   zerolog.Logger
	observer FrameObserver

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open acquires a capture handle on cfg.Interface.
func Open(cfg Config, local AddressSet, opts ...Option) (*Session, error) {
	s := newSession(cfg, local, opts)
	h, err := s.open(cfg)
	if err != nil {
		return nil, err
	}
	s.attach(h)
	return s, nil
}

// NewSession wraps a handle that is already open.
func NewSession(h Handle, cfg Config, local AddressSet, opts ...Option) *Session {
	s := newSession(cfg, local, opts)
	s.attach(h)
	return s
}

// attach takes ownership of h. The link type is read here, while the
// handle is known to be open.
func (s *Session) attach(h Handle) {
	s.handle = h
	s.linkType = h.LinkType()
}

func newSession(cfg Config, local AddressSet, opts []Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		local:  local,
		open:   OpenLive,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Str("interface", cfg.Interface).Logger()
	return s
}

// ID returns the session's unique id, also used as a log field.
func (s *Session) ID() string {
	return s.id
}

// Close releases the capture handle and interrupts a blocked Run. It is
// safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.handle.Close()
		s.logger.Debug().Msg("capture handle released")
	})
	return nil
}

// Run reads frames in arrival order until ctx is cancelled, Close is
// called, the source is exhausted, or a fatal error occurs. Per-frame
// failures are logged and skipped. The handle is closed on return.
func (s *Session) Run(ctx context.Context, consume Consumer) error {
	defer s.Close()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	addrs := make([]string, 0, s.local.Len())
	for _, a := range s.local.Addrs() {
		addrs = append(addrs, a.String())
	}
	s.logger.Info().Strs("local_addresses", addrs).Msg("capture started")

	for {
		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if s.closed.Load() {
				return ctx.Err()
			}
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info().Msg("capture source exhausted")
				return nil
			}
			return fmt.Errorf("read from %s: %w", s.cfg.Interface, err)
		}
		if err := s.handleFrame(data, s.linkType, ci, consume); err != nil {
			s.logger.Error().Err(err).Msg("capture aborted")
			return err
		}
	}
}

func (s *Session) handleFrame(data []byte, linkType layers.LinkType, ci gopacket.CaptureInfo, consume Consumer) (fatal error) {
	outcome := models.FrameFailed
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Int("length", len(data)).Msg("frame processing panicked, skipping")
			outcome, fatal = models.FrameFailed, nil
		}
		if s.observer != nil {
			s.observer.ObserveFrame(outcome)
		}
	}()

	sp, ok, err := Normalize(Decode(data, linkType, ci), s.local)
	if err != nil {
		s.logger.Warn().Err(err).Int("length", len(data)).Msg("malformed frame, skipping")
		return nil
	}
	if !ok {
		outcome = models.FrameUnclassifiable
		return nil
	}

	if err := consume(sp); err != nil {
		if errors.Is(err, ErrFatal) {
			return err
		}
		s.logger.Warn().Err(err).Stringer("packet", sp).Msg("packet processing failed, skipping")
		return nil
	}
	outcome = models.FrameClassified
	return nil
}
