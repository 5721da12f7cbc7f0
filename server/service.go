package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/go-maild/maild/auth"
	"github.com/go-maild/maild/comm"
	"github.com/go-maild/maild/mailbox"
	"github.com/go-maild/maild/relay"
)

// Constants

// usernameChars are the characters allowed in a username
// besides letters. Usernames become Maildir directory
// names, so the set is kept narrow.
const usernameChars = "0123456789._-"

// minPasswordLen is the minimum accepted password length
// for new accounts.
const minPasswordLen = 10

// Interfaces

// Service defines the operations the mail server offers to
// one session. Every method answers the client itself and
// returns whether the session loop may continue; a false
// return means the connection is no longer usable.
type Service interface {

	// Register creates a new account from supplied
	// credentials. A fresh account is not logged in, the
	// client has to follow up with a login of its own.
	Register(s *Session, req *comm.AuthPayload) bool

	// Login authenticates the session as the supplied user.
	Login(s *Session, req *comm.AuthPayload) bool

	// Logout returns an authenticated session to anonymous.
	Logout(s *Session) bool

	// ListInbox fetches the user's mails, caches the listing
	// in the session and answers with the summary lines.
	ListInbox(s *Session) bool

	// ReadMail answers with the full mail at the supplied
	// 1-based position of the last cached listing.
	ReadMail(s *Session, choice int) bool

	// SendMail routes one composed mail to a local mailbox
	// or the external relay.
	SendMail(s *Session, req *comm.MailPayload) bool

	// Stats answers with mail count and total byte size of
	// the user's mailbox.
	Stats(s *Session) bool
}

// Structs

type service struct {
	logger        log.Logger
	authenticator auth.Authenticator
	store         mailbox.Store
	relay         relay.Relayer
	domain        string
}

// Functions

// NewService takes in all collaborators required for
// serving sessions and returns a service struct wrapping
// this information.
func NewService(logger log.Logger, authenticator auth.Authenticator, store mailbox.Store, relayer relay.Relayer, domain string) Service {

	return &service{
		logger:        logger,
		authenticator: authenticator,
		store:         store,
		relay:         relayer,
		domain:        domain,
	}
}

// Register creates a new account from supplied credentials.
func (svc *service) Register(s *Session, req *comm.AuthPayload) bool {

	if s.IsAuthenticated {
		return s.RespondError("already authenticated")
	}

	if !usernameValid(req.Username) {
		return s.RespondError("username invalid")
	}

	if len(req.Password) < minPasswordLen {
		return s.RespondError(fmt.Sprintf("password needs at least %d characters", minPasswordLen))
	}

	err := svc.authenticator.Register(req.Username, req.Password)
	if err != nil {

		if errors.Cause(err) == auth.ErrUserExists {
			return s.RespondError("username taken")
		}

		level.Error(svc.logger).Log(
			"msg", "failed to persist new account",
			"session", s.ID,
			"err", err,
		)

		return s.RespondError("temporary server error")
	}

	return s.RespondOK()
}

// Login authenticates the session as the supplied user.
func (svc *service) Login(s *Session, req *comm.AuthPayload) bool {

	if s.IsAuthenticated {
		return s.RespondError("already authenticated")
	}

	clientID, err := svc.authenticator.AuthenticatePlain(req.Username, req.Password, s.ClientAddr)
	if err != nil {

		if errors.Cause(err) == auth.ErrInvalidCredentials {
			return s.RespondError("invalid credentials")
		}

		level.Error(svc.logger).Log(
			"msg", "failed to check supplied credentials",
			"session", s.ID,
			"err", err,
		)

		return s.RespondError("temporary server error")
	}

	s.IsAuthenticated = true
	s.UserName = req.Username
	s.ClientID = clientID

	return s.RespondOK()
}

// Logout returns an authenticated session to anonymous.
func (svc *service) Logout(s *Session) bool {

	if !s.IsAuthenticated {
		return s.RespondError("not authenticated")
	}

	s.reset()

	return s.RespondOK()
}

// ListInbox fetches and caches the user's mails and
// answers with the summary lines.
func (svc *service) ListInbox(s *Session) bool {

	entries, err := svc.store.List(s.UserName)
	if err != nil {

		level.Error(svc.logger).Log(
			"msg", "failed to list mailbox",
			"session", s.ID,
			"user", s.UserName,
			"err", err,
		)

		return s.RespondError("could not list mailbox")
	}

	s.inbox = entries

	summaries := make([]string, len(entries))
	for i, entry := range entries {
		summaries[i] = entry.Summary
	}

	return s.Respond(&comm.Message{
		Header:    comm.HeaderInboxList,
		InboxList: summaries,
	})
}

// ReadMail answers with the full mail at the supplied
// 1-based position of the last cached listing.
func (svc *service) ReadMail(s *Session, choice int) bool {

	if (choice < 1) || (choice > len(s.inbox)) {
		return s.RespondError("invalid selection")
	}

	mail, err := svc.store.Read(s.UserName, s.inbox[(choice-1)].Key)
	if err != nil {

		level.Error(svc.logger).Log(
			"msg", "failed to read mail from mailbox",
			"session", s.ID,
			"user", s.UserName,
			"err", err,
		)

		return s.RespondError("could not read mail")
	}

	return s.Respond(&comm.Message{
		Header: comm.HeaderInboxChoice,
		Mail:   mail,
	})
}

// SendMail routes one composed mail to a local mailbox or
// the external relay.
func (svc *service) SendMail(s *Session, req *comm.MailPayload) bool {

	if req.Destination == "" {
		return s.RespondError("destination missing")
	}

	// Never trust the client-supplied sender, the session
	// already knows who is talking.
	mail := *req
	mail.Sender = fmt.Sprintf("%s@%s", s.UserName, svc.domain)

	if mail.Date == "" {
		mail.Date = time.Now().UTC().Format(time.RFC1123Z)
	}

	localUser, local := svc.localUser(mail.Destination)

	if !local {

		if err := svc.relay.Relay(&mail); err != nil {

			level.Info(svc.logger).Log(
				"msg", "external relay refused mail",
				"session", s.ID,
				"destination", mail.Destination,
				"err", err,
			)

			return s.RespondError(err.Error())
		}

		return s.RespondOK()
	}

	if !svc.authenticator.Exists(localUser) {

		// Keep the stray mail for operator inspection, then
		// report the failure to the sender.
		if err := svc.store.DeliverLost(&mail); err != nil {
			level.Error(svc.logger).Log(
				"msg", "failed to preserve mail for unknown recipient",
				"session", s.ID,
				"err", err,
			)
		}

		return s.RespondError("recipient unknown")
	}

	if err := svc.store.Deliver(localUser, &mail); err != nil {

		level.Error(svc.logger).Log(
			"msg", "failed to deliver mail to local mailbox",
			"session", s.ID,
			"user", localUser,
			"err", err,
		)

		return s.RespondError("could not deliver mail")
	}

	return s.RespondOK()
}

// Stats answers with mail count and total byte size of the
// user's mailbox.
func (svc *service) Stats(s *Session) bool {

	stats, err := svc.store.Stats(s.UserName)
	if err != nil {

		level.Error(svc.logger).Log(
			"msg", "failed to compute mailbox statistics",
			"session", s.ID,
			"user", s.UserName,
			"err", err,
		)

		return s.RespondError("could not compute statistics")
	}

	return s.Respond(&comm.Message{
		Header: comm.HeaderStats,
		Stats:  stats,
	})
}

// localUser decides whether a destination address belongs
// to this server. A bare name without domain part counts
// as local, an address below the configured domain as
// local too, everything else is relayed.
func (svc *service) localUser(destination string) (string, bool) {

	at := strings.LastIndex(destination, "@")
	if at == -1 {
		return destination, true
	}

	if destination[(at+1):] == svc.domain {
		return destination[:at], true
	}

	return "", false
}

// usernameValid checks a requested username: at least one
// ASCII letter and nothing outside letters, digits and the
// characters of usernameChars.
func usernameValid(username string) bool {

	hasLetter := false

	for _, r := range username {

		isLetter := ((r >= 'a') && (r <= 'z')) || ((r >= 'A') && (r <= 'Z'))
		if isLetter {
			hasLetter = true
			continue
		}

		if !strings.ContainsRune(usernameChars, r) {
			return false
		}
	}

	return hasLetter
}
