package server

import (
	"github.com/go-maild/maild/comm"
	"github.com/go-maild/maild/mailbox"
)

// Structs

// Session carries all state specific to one observed
// connection on its way through the mail server: the
// wrapped socket, whether a login succeeded yet and for
// which user, and the inbox listing cached for the
// list-then-choice sequence. The cache is session-local
// on purpose, two sessions reading the same mailbox can
// never disturb each other's numbering.
type Session struct {
	*comm.Connection
	ID              string
	ClientAddr      string
	ClientID        string
	IsAuthenticated bool
	UserName        string
	inbox           []mailbox.Entry
}

// Functions

// RespondOK sends a bare OK message. The returned bool
// signals whether the session loop may continue.
func (s *Session) RespondOK() bool {
	return s.Respond(&comm.Message{Header: comm.HeaderOK})
}

// RespondError converts a failure into an ERROR message
// carrying the human-readable reason. The session itself
// continues, errors of this kind are recoverable.
func (s *Session) RespondError(reason string) bool {
	return s.Respond(&comm.Message{Header: comm.HeaderError, ErrorText: reason})
}

// Respond writes supplied message to the client. The
// returned bool signals whether the session loop may
// continue.
func (s *Session) Respond(m *comm.Message) bool {
	return s.Send(m) == nil
}

// reset drops all authentication state of the session,
// returning it to anonymous.
func (s *Session) reset() {
	s.IsAuthenticated = false
	s.UserName = ""
	s.ClientID = ""
	s.inbox = nil
}
