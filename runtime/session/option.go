package session

import "github.com/viant/structology/conv"

type Option func(session *Session)

// WithState copies the supplied entries into the session.
func WithState(state map[string]interface{}) Option {
	return func(session *Session) {
		for k, v := range state {
			session.state[k] = v
		}
	}
}

// WithConverter sets the converter used by typed getters.
func WithConverter(converter *conv.Converter) Option {
	return func(session *Session) {
		session.converter = converter
	}
}

// WithStateListeners attaches listeners to the created session.
func WithStateListeners(listeners ...StateListener) Option {
	return func(session *Session) {
		session.listeners = append(session.listeners, listeners...)
	}
}
