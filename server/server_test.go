package server_test

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"path/filepath"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-maild/maild/auth"
	"github.com/go-maild/maild/comm"
	"github.com/go-maild/maild/mailbox"
	"github.com/go-maild/maild/relay"
	"github.com/go-maild/maild/server"
)

// Constants

const testDomain = "example.ca"

// Functions

// newTestServer wires a complete server on a loopback
// listener against throwaway storage and a disabled relay.
func newTestServer(t *testing.T) (*server.Server, string) {

	dir := t.TempDir()

	authenticator, err := auth.NewFileAuthenticator(filepath.Join(dir, "credentials.txt"), ":")
	require.Nil(t, err)

	lostRoot := filepath.Join(dir, "lost+found")

	store, err := mailbox.NewMaildirStore(filepath.Join(dir, "mail"), lostRoot)
	require.Nil(t, err)

	logger := log.NewNopLogger()

	var svc server.Service
	svc = server.NewService(logger, authenticator, store, relay.NewDisabled(), testDomain)
	svc = server.NewLoggingService(svc, logger)
	svc = server.NewMetricsService(svc, discard.NewCounter(), discard.NewCounter(), discard.NewCounter())

	srv, err := server.NewServer(logger, svc, "127.0.0.1:0")
	require.Nil(t, err)

	go func() {
		_ = srv.Run()
	}()

	t.Cleanup(func() {
		_ = srv.Close()
	})

	return srv, lostRoot
}

// dial connects a fresh client connection to the server
// under test.
func dial(t *testing.T, srv *server.Server) *comm.Connection {

	conn, err := net.Dial("tcp", srv.Addr())
	require.Nil(t, err)

	c := comm.NewConnection(conn)

	t.Cleanup(func() {
		_ = c.Terminate()
	})

	return c
}

// roundTrip sends one message and returns the server's
// answer to it.
func roundTrip(t *testing.T, c *comm.Connection, msg *comm.Message) *comm.Message {

	require.Nil(t, c.Send(msg))

	answer, err := c.Receive()
	require.Nil(t, err)

	return answer
}

// register creates an account and expects success.
func register(t *testing.T, c *comm.Connection, user string, password string) {

	answer := roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: user, Password: password},
	})
	require.Equal(t, comm.HeaderOK, answer.Header)
}

// login authenticates the connection and expects success.
func login(t *testing.T, c *comm.Connection, user string, password string) {

	answer := roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthLogin,
		Auth:   &comm.AuthPayload{Username: user, Password: password},
	})
	require.Equal(t, comm.HeaderOK, answer.Header)
}

// TestRegisterAndLogin walks one connection through the
// whole account lifecycle.
func TestRegisterAndLogin(t *testing.T) {

	srv, _ := newTestServer(t)
	c := dial(t, srv)

	register(t, c, "alice", "wonderland-123")

	// Registering does not log the account in.
	answer := roundTrip(t, c, &comm.Message{Header: comm.HeaderStats})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "not authenticated", answer.ErrorText)

	// The username is now taken.
	answer = roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: "alice", Password: "other-password-456"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "username taken", answer.ErrorText)

	// A wrong password is rejected.
	answer = roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthLogin,
		Auth:   &comm.AuthPayload{Username: "alice", Password: "wrong-password"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "invalid credentials", answer.ErrorText)

	login(t, c, "alice", "wonderland-123")

	// A second login on an authenticated session fails.
	answer = roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthLogin,
		Auth:   &comm.AuthPayload{Username: "alice", Password: "wonderland-123"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "already authenticated", answer.ErrorText)

	// Logout returns the session to anonymous.
	answer = roundTrip(t, c, &comm.Message{Header: comm.HeaderAuthLogout})
	require.Equal(t, comm.HeaderOK, answer.Header)

	answer = roundTrip(t, c, &comm.Message{Header: comm.HeaderAuthLogout})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "not authenticated", answer.ErrorText)
}

// TestRegisterValidation verifies the rules for fresh
// credentials.
func TestRegisterValidation(t *testing.T) {

	srv, _ := newTestServer(t)
	c := dial(t, srv)

	// A username needs at least one letter.
	answer := roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: "12345", Password: "long-enough-pass"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "username invalid", answer.ErrorText)

	// Path separators never make it into a username.
	answer = roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: "al/ice", Password: "long-enough-pass"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "username invalid", answer.ErrorText)

	// Short passwords are rejected.
	answer = roundTrip(t, c, &comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: "alice", Password: "short"},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "password needs at least 10 characters", answer.ErrorText)
}

// TestAuthenticationGate sends every mailbox operation on
// an anonymous session and expects each to bounce.
func TestAuthenticationGate(t *testing.T) {

	srv, _ := newTestServer(t)
	c := dial(t, srv)

	gated := []*comm.Message{
		{Header: comm.HeaderInboxList},
		{Header: comm.HeaderInboxChoice, Choice: 1},
		{Header: comm.HeaderMailSend, Mail: &comm.MailPayload{Destination: "bob"}},
		{Header: comm.HeaderStats},
	}

	for _, msg := range gated {

		answer := roundTrip(t, c, msg)
		require.Equal(t, comm.HeaderError, answer.Header)
		assert.Equal(t, "not authenticated", answer.ErrorText)
	}
}

// TestSendListReadStats delivers mails between two local
// accounts and verifies listing order, full reads and the
// mailbox statistics.
func TestSendListReadStats(t *testing.T) {

	srv, _ := newTestServer(t)

	alice := dial(t, srv)
	register(t, alice, "alice", "wonderland-123")
	login(t, alice, "alice", "wonderland-123")

	bob := dial(t, srv)
	register(t, bob, "bob", "builder-pass-456")
	login(t, bob, "bob", "builder-pass-456")

	older := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	newer := time.Now().UTC().Format(time.RFC1123Z)

	// A bare username and a fully qualified address below
	// our own domain both count as local.
	answer := roundTrip(t, alice, &comm.Message{
		Header: comm.HeaderMailSend,
		Mail: &comm.MailPayload{
			Sender:      "mallory@evil.example",
			Destination: "bob",
			Subject:     "first",
			Date:        older,
			Content:     "hello bob\n",
		},
	})
	require.Equal(t, comm.HeaderOK, answer.Header)

	answer = roundTrip(t, alice, &comm.Message{
		Header: comm.HeaderMailSend,
		Mail: &comm.MailPayload{
			Destination: "bob@" + testDomain,
			Subject:     "second",
			Date:        newer,
			Content:     "hello again\n",
		},
	})
	require.Equal(t, comm.HeaderOK, answer.Header)

	// The listing is ordered most-recent-first and renders
	// the overwritten sender address.
	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderInboxList})
	require.Equal(t, comm.HeaderInboxList, answer.Header)
	require.Len(t, answer.InboxList, 2)
	assert.Equal(t, comm.FormatSummary(1, "alice@"+testDomain, "second", newer), answer.InboxList[0])
	assert.Equal(t, comm.FormatSummary(2, "alice@"+testDomain, "first", older), answer.InboxList[1])

	// Choice 1 hands back the full most recent mail. The
	// claimed sender of the first mail was overwritten with
	// the session's account.
	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderInboxChoice, Choice: 1})
	require.Equal(t, comm.HeaderInboxChoice, answer.Header)
	require.NotNil(t, answer.Mail)
	assert.Equal(t, "alice@"+testDomain, answer.Mail.Sender)
	assert.Equal(t, "second", answer.Mail.Subject)
	assert.Equal(t, "hello again\n", answer.Mail.Content)

	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderInboxChoice, Choice: 2})
	require.Equal(t, comm.HeaderInboxChoice, answer.Header)
	require.NotNil(t, answer.Mail)
	assert.Equal(t, "alice@"+testDomain, answer.Mail.Sender)
	assert.Equal(t, "hello bob\n", answer.Mail.Content)

	// Selections outside the cached listing fail.
	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderInboxChoice, Choice: 3})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "invalid selection", answer.ErrorText)

	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderInboxChoice, Choice: 0})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "invalid selection", answer.ErrorText)

	answer = roundTrip(t, bob, &comm.Message{Header: comm.HeaderStats})
	require.Equal(t, comm.HeaderStats, answer.Header)
	require.NotNil(t, answer.Stats)
	assert.Equal(t, int64(2), answer.Stats.Count)
	assert.True(t, answer.Stats.Size > 0)
}

// TestEmptyInbox lists a mailbox that never saw a mail.
func TestEmptyInbox(t *testing.T) {

	srv, _ := newTestServer(t)

	c := dial(t, srv)
	register(t, c, "carol", "spacious-pass-789")
	login(t, c, "carol", "spacious-pass-789")

	answer := roundTrip(t, c, &comm.Message{Header: comm.HeaderInboxList})
	require.Equal(t, comm.HeaderInboxList, answer.Header)
	assert.Len(t, answer.InboxList, 0)

	answer = roundTrip(t, c, &comm.Message{Header: comm.HeaderStats})
	require.Equal(t, comm.HeaderStats, answer.Header)
	require.NotNil(t, answer.Stats)
	assert.Equal(t, int64(0), answer.Stats.Count)
	assert.Equal(t, int64(0), answer.Stats.Size)
}

// TestUnknownLocalRecipient expects the sender to be told
// and the mail to survive in the lost+found Maildir.
func TestUnknownLocalRecipient(t *testing.T) {

	srv, lostRoot := newTestServer(t)

	c := dial(t, srv)
	register(t, c, "alice", "wonderland-123")
	login(t, c, "alice", "wonderland-123")

	answer := roundTrip(t, c, &comm.Message{
		Header: comm.HeaderMailSend,
		Mail: &comm.MailPayload{
			Destination: "nobody",
			Subject:     "void",
			Content:     "anyone there?\n",
		},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "recipient unknown", answer.ErrorText)

	files, err := os.ReadDir(filepath.Join(lostRoot, "new"))
	require.Nil(t, err)
	assert.Len(t, files, 1)
}

// TestRelayUnavailable sends to a foreign domain while no
// relay is configured.
func TestRelayUnavailable(t *testing.T) {

	srv, _ := newTestServer(t)

	c := dial(t, srv)
	register(t, c, "alice", "wonderland-123")
	login(t, c, "alice", "wonderland-123")

	answer := roundTrip(t, c, &comm.Message{
		Header: comm.HeaderMailSend,
		Mail: &comm.MailPayload{
			Destination: "someone@elsewhere.example",
			Subject:     "outbound",
			Content:     "hi\n",
		},
	})
	require.Equal(t, comm.HeaderError, answer.Header)
	assert.Equal(t, "relay failed: no external relay configured", answer.ErrorText)
}

// TestByeClosesConnection says goodbye and expects the
// server to hang up without an answer.
func TestByeClosesConnection(t *testing.T) {

	srv, _ := newTestServer(t)
	c := dial(t, srv)

	require.Nil(t, c.Send(&comm.Message{Header: comm.HeaderBye}))

	_, err := c.Receive()
	assert.Equal(t, io.EOF, err)
}

// TestMalformedFrameClosesConnection feeds bytes that are
// no protocol message and expects the server to hang up on
// that connection alone, other live sessions keep working.
func TestMalformedFrameClosesConnection(t *testing.T) {

	srv, _ := newTestServer(t)

	bystander := dial(t, srv)
	register(t, bystander, "carol", "spacious-pass-789")
	login(t, bystander, "carol", "spacious-pass-789")

	c := dial(t, srv)

	_, err := c.Conn.Write([]byte("NO_SUCH_HEADER|garbage\n"))
	require.Nil(t, err)

	_, err = c.Receive()
	assert.Equal(t, io.EOF, err)

	// The untouched session still answers.
	answer := roundTrip(t, bystander, &comm.Message{Header: comm.HeaderStats})
	require.Equal(t, comm.HeaderStats, answer.Header)
	require.NotNil(t, answer.Stats)
	assert.Equal(t, int64(0), answer.Stats.Count)
}
