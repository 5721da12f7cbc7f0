// Package relay hands mails addressed outside the local domain to an
// external SMTP server for delivery.
package relay

import (
	"bytes"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/go-maild/maild/comm"
)

// Structs

// Error reports a failed external delivery attempt with
// the reason handed back by the transport.
type Error struct {
	Reason string
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	return fmt.Sprintf("relay failed: %s", e.Reason)
}

// Interfaces

// Relayer defines the single method the session handlers
// require to hand off a mail for external delivery.
type Relayer interface {

	// Relay attempts to deliver supplied mail to its
	// non-local destination. Failures are reported as
	// *Error carrying the transport's reason.
	Relay(mail *comm.MailPayload) error
}

// SMTPRelay implements Relayer against a configured
// upstream SMTP server.
type SMTPRelay struct {
	Addr string
	auth sasl.Client
}

// disabledRelay implements Relayer for deployments without
// an upstream SMTP server.
type disabledRelay struct{}

// Functions

// NewSMTPRelay returns a relay speaking SMTP to the server
// at supplied address. If a user is supplied, deliveries
// authenticate with SASL PLAIN.
func NewSMTPRelay(addr string, user string, password string) *SMTPRelay {

	relay := &SMTPRelay{
		Addr: addr,
	}

	if user != "" {
		relay.auth = sasl.NewPlainClient("", user, password)
	}

	return relay
}

// NewDisabled returns a relay that rejects every delivery,
// for setups that only serve local mail.
func NewDisabled() Relayer {
	return &disabledRelay{}
}

// Relay attempts to deliver supplied mail to its non-local
// destination via the upstream SMTP server.
func (r *SMTPRelay) Relay(mail *comm.MailPayload) error {

	err := smtp.SendMail(r.Addr, r.auth, mail.Sender, []string{mail.Destination}, bytes.NewReader(mail.Raw()))
	if err != nil {
		return &Error{Reason: err.Error()}
	}

	return nil
}

// Relay on a disabled relay always fails.
func (r *disabledRelay) Relay(mail *comm.MailPayload) error {
	return &Error{Reason: "no external relay configured"}
}
