// Package device triggers PNM captures on cable modem termination gear
// over SSH. A capture is started by running vendor CLI commands on the
// device; the resulting file is then moved with the transfer engine.
package device

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Logger is the logging hook used by this package. It matches the transfer
// engine's logger so one implementation serves both.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(format string, args ...interface{}) {}
func (noopLogger) Info(format string, args ...interface{})  {}
func (noopLogger) Error(format string, args ...interface{}) {}

// Config holds the connection settings for one device.
type Config struct {
	// Addr is the device address, host or host:port. Port 22 is assumed
	// when missing.
	Addr string

	// User and Password authenticate the session.
	User     string
	Password string

	// HostKeyCallback validates the device host key. Lab gear rarely has
	// a stable known key, so nil accepts any; set a callback to pin one.
	HostKeyCallback ssh.HostKeyCallback

	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each Run call.
	CommandTimeout time.Duration

	// Retries is how many connection attempts Dial makes, RetryDelay
	// apart, before giving up.
	Retries    int
	RetryDelay time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 30 * time.Second,
		Retries:        4,
		RetryDelay:     time.Second,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a logger for connection and command tracing.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is an authenticated connection to one device. All connection
// state lives in the Session; the package keeps no globals.
type Session struct {
	client *ssh.Client
	config *Config
	logger Logger
}

// Dial connects to the device, retrying failed attempts up to the
// configured budget with a delay between tries.
func Dial(ctx context.Context, config *Config, opts ...Option) (*Session, error) {
	s := &Session{
		config: config,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	addr := hostPort(config.Addr)
	var lastErr error
	for attempt := 1; attempt <= config.Retries; attempt++ {
		client, err := dialOnce(ctx, addr, config)
		if err == nil {
			s.client = client
			s.logger.Info("connected to %s as %s", addr, config.User)
			return s, nil
		}
		lastErr = err
		s.logger.Error("unable to connect to %s (try %d/%d): %v", addr, attempt, config.Retries, err)

		if attempt < config.Retries {
			select {
			case <-time.After(config.RetryDelay):
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "connecting to "+addr)
			}
		}
	}
	return nil, errors.Wrapf(lastErr, "connecting to %s after %d attempts", addr, config.Retries)
}

func dialOnce(ctx context.Context, addr string, config *Config) (*ssh.Client, error) {
	hostKey := config.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	clientConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            []ssh.AuthMethod{ssh.Password(config.Password)},
		HostKeyCallback: hostKey,
		Timeout:         config.ConnectTimeout,
	}

	d := net.Dialer{Timeout: config.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(cc, chans, reqs), nil
}

// Run executes one command on the device and returns its combined output.
// The wait is bounded by the configured command timeout and the context.
// On a non-zero exit the collected output is returned along with the error.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", errors.Wrap(err, "opening command session")
	}
	defer sess.Close()

	s.logger.Debug("running %q on %s", cmd, s.config.Addr)

	type result struct {
		out []byte
		err error
	}
	// Closing the session unblocks the command when the wait is abandoned.
	ch := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(cmd)
		ch <- result{out, err}
	}()

	var timeout <-chan time.Time
	if s.config.CommandTimeout > 0 {
		timer := time.NewTimer(s.config.CommandTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return string(r.out), errors.Wrapf(r.err, "running %q", cmd)
		}
		return string(r.out), nil
	case <-timeout:
		return "", errors.Errorf("command %q timed out after %v", cmd, s.config.CommandTimeout)
	case <-ctx.Done():
		return "", errors.Wrapf(ctx.Err(), "running %q", cmd)
	}
}

// Close terminates the connection.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// hostPort completes a bare host with the default SSH port.
func hostPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "22")
}
