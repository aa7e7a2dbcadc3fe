// Package irc delivers notifications over IRC through a single persistent,
// reconnecting session shared by the whole process.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ircevent "github.com/thoj/go-ircevent"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
	"github.com/notifyhub/delivery-dispatch/internal/ratelimiter"
)

// State tracks the session's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateIdentified is reached once NickServ confirms identification.
	// Nothing sets it yet: interpreting NickServ result codes is the
	// account-verification extension point (see OnNickServResult).
	StateIdentified
)

// Options holds the IRC connection parameters.
type Options struct {
	Server           string // host:port
	Nick             string
	NickServPassword string // empty disables identification
	UseTLS           bool
	LineRate         time.Duration
}

// Session wraps a persistent IRC client connection. Reconnection is handled
// by the underlying client's event loop; the session exposes a readiness
// gate so delivery can wait, bounded, for a live connection.
//
// Delivery is available as soon as the server welcome arrives; it does not
// wait on NickServ identification completing.
type Session struct {
	conn     *ircevent.Connection
	server   string
	nick     string
	password string
	limiter  *ratelimiter.Limiter
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	ready  chan struct{}   // closed while connected, replaced on drop
	runCtx context.Context // set by Run; bounds callback-initiated sends

	commands   map[string]CommandFunc
	onNickServ func(message string)
}

// NewSession builds the session without connecting. Call Run to connect.
func NewSession(opts Options, logger *zap.Logger) *Session {
	conn := ircevent.IRC(opts.Nick, opts.Nick)
	conn.Version = "notifyhub delivery-dispatch (https://github.com/notifyhub/delivery-dispatch)"
	conn.UseTLS = opts.UseTLS
	if opts.UseTLS {
		host, _, err := net.SplitHostPort(opts.Server)
		if err != nil {
			host = opts.Server
		}
		conn.TLSConfig = &tls.Config{ServerName: host}
	}

	s := &Session{
		conn:     conn,
		server:   opts.Server,
		nick:     opts.Nick,
		password: opts.NickServPassword,
		limiter:  ratelimiter.New(opts.LineRate),
		logger:   logger,
		state:    StateDisconnected,
		ready:    make(chan struct{}),
		commands: make(map[string]CommandFunc),
	}
	s.registerDefaultCommands()

	conn.AddCallback("001", s.handleWelcome)
	conn.AddCallback("PRIVMSG", s.handlePrivmsg)
	conn.AddCallback("ERROR", func(*ircevent.Event) { s.markDisconnected() })

	return s
}

// Run connects and blocks in the client event loop until ctx is cancelled.
// The loop reconnects on connection drops; cancellation sends QUIT and
// returns once the loop stops.
func (s *Session) Run(ctx context.Context) error {
	s.bindContext(ctx)
	s.setState(StateConnecting)
	if err := s.conn.Connect(s.server); err != nil {
		s.markDisconnected()
		return fmt.Errorf("connect to %s: %w", s.server, err)
	}

	go func() {
		<-ctx.Done()
		s.conn.Quit()
	}()

	s.conn.Loop()
	s.markDisconnected()
	return nil
}

// WaitReady blocks until the session is connected, ctx is cancelled, or
// timeout elapses. Returns domain.ErrNotConnected on timeout so the caller
// can requeue the delivery.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ready:
		return nil
	case <-t.C:
		return domain.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send transmits one line to a nick or channel, paced by the line-rate
// limiter. IRC offers no delivery acknowledgement; a nil return means the
// line was handed to the connection.
func (s *Session) Send(ctx context.Context, target, line string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	// privmsgs are single-line
	line = strings.ReplaceAll(line, "\n", " ")
	s.conn.Privmsg(target, line)
	return nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnNickServResult registers the handler for responses from the NickServ
// identity. Interpreting identification-result codes (for example to mark a
// nickname as verified) is deliberately left to the registered handler;
// without one, responses are logged and dropped.
func (s *Session) OnNickServResult(fn func(message string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNickServ = fn
}

func (s *Session) handleWelcome(*ircevent.Event) {
	s.logger.Info("signed on to irc", zap.String("server", s.server), zap.String("nick", s.nick))
	s.markConnected()
	if s.password != "" {
		s.logger.Info("identifying with nickserv", zap.String("nick", s.nick))
		s.conn.Privmsg("NickServ", fmt.Sprintf("IDENTIFY %s %s", s.nick, s.password))
	}
}

func (s *Session) handlePrivmsg(e *ircevent.Event) {
	target := e.Arguments[0]
	if target != s.nick {
		// channel traffic is not addressed to the bot
		return
	}
	text := e.Message()

	if e.Nick == "NickServ" {
		s.handleNickServ(text)
		return
	}

	s.logger.Debug("private message received", zap.String("from", e.Nick))
	if reply := s.commandReply(e.Nick, text); reply != "" {
		// a reply pending in the rate limiter must not outlive Run
		_ = s.Send(s.lifecycleCtx(), e.Nick, reply)
	}
}

// bindContext records the run context so callback-initiated sends are
// cancelled together with the session.
func (s *Session) bindContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCtx = ctx
}

func (s *Session) lifecycleCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

func (s *Session) handleNickServ(text string) {
	s.mu.Lock()
	fn := s.onNickServ
	s.mu.Unlock()
	if fn == nil {
		s.logger.Debug("unhandled nickserv response", zap.String("message", text))
		return
	}
	fn(text)
}

func (s *Session) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected || s.state == StateIdentified {
		return
	}
	s.state = StateConnected
	close(s.ready)
}

func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.state = StateDisconnected
	s.ready = make(chan struct{})
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}
