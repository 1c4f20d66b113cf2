package ftptest

import "log/slog"

// Option configures a Server.
type Option func(*Server)

// WithUser adds an account.
func WithUser(user, password string) Option {
	return func(s *Server) {
		s.users[user] = password
	}
}

// WithoutAnonymous rejects anonymous logins with 530.
func WithoutAnonymous() Option {
	return func(s *Server) {
		s.allowAnonymous = false
	}
}

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWelcomeMessage sets the text of the 220 greeting.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) {
		s.welcomeMessage = msg
	}
}

// WithDisableEPSV answers EPSV with 502 so clients fall back to PASV.
func WithDisableEPSV() Option {
	return func(s *Server) {
		s.disableEPSV = true
	}
}

// WithFS serves an existing tree instead of a fresh one.
func WithFS(fs *MemFS) Option {
	return func(s *Server) {
		s.fs = fs
	}
}
