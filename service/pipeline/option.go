package pipeline

// Option customises a Supervisor.
type Option func(s *Supervisor)

// WithRemote replaces the remote delegate; nil disables delegation.
func WithRemote(remote Remote) Option {
	return func(s *Supervisor) { s.remote = remote }
}

// WithRemoteLocation sets the location routed to the remote delegate.
func WithRemoteLocation(location string) Option {
	return func(s *Supervisor) {
		if location != "" {
			s.remoteLocation = location
		}
	}
}
