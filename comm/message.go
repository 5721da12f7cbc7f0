package comm

import (
	"fmt"
	"strconv"
	"strings"

	"encoding/base64"
)

// Constants

// Header identifies the purpose of a Message and thereby
// the shape of the payload it carries on the wire.
type Header string

// The closed set of headers this protocol knows about.
// Any other token received on the wire is a protocol error.
const (
	HeaderOK           Header = "OK"
	HeaderError        Header = "ERROR"
	HeaderBye          Header = "BYE"
	HeaderAuthRegister Header = "AUTH_REGISTER"
	HeaderAuthLogin    Header = "AUTH_LOGIN"
	HeaderAuthLogout   Header = "AUTH_LOGOUT"
	HeaderInboxList    Header = "INBOX_READING_REQUEST"
	HeaderInboxChoice  Header = "INBOX_READING_CHOICE"
	HeaderMailSend     Header = "EMAIL_SENDING"
	HeaderStats        Header = "STATS_REQUEST"
)

// Structs

// ProtocolError reports bytes that could not be parsed as
// one well-formed protocol message. Receiving one means the
// stream can no longer be trusted and the connection has to
// be torn down.
type ProtocolError struct {
	Reason string
}

// Error implements the error interface for ProtocolError.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// AuthPayload carries the credentials of an AUTH_REGISTER
// or AUTH_LOGIN request.
type AuthPayload struct {
	Username string
	Password string
}

// MailPayload carries one complete mail. It is sent by a
// client with EMAIL_SENDING and returned by the server as
// the answer to an INBOX_READING_CHOICE request.
type MailPayload struct {
	Sender      string
	Destination string
	Subject     string
	Date        string
	Content     string
}

// StatsPayload carries the mailbox statistics the server
// answers a STATS_REQUEST with.
type StatsPayload struct {
	Count int64
	Size  int64
}

// Message represents one protocol message between client
// and server. The header determines which of the payload
// members is set, all others stay at their zero value. A
// Message is built once, sent once and never mutated.
type Message struct {
	Header    Header
	ErrorText string
	Auth      *AuthPayload
	Mail      *MailPayload
	Choice    int
	InboxList []string
	Stats     *StatsPayload
}

// Functions

// String marshalls given Message m into its wire form: the
// header token followed by the payload fields, separated by
// pipe symbols. Every field value is base64-encoded so that
// neither the pipe symbol nor the newline terminating each
// frame can ever appear inside one.
func (m *Message) String() string {

	var fields []string

	switch m.Header {

	case HeaderError:
		fields = []string{encodeField(m.ErrorText)}

	case HeaderAuthRegister, HeaderAuthLogin:
		if m.Auth != nil {
			fields = []string{encodeField(m.Auth.Username), encodeField(m.Auth.Password)}
		}

	case HeaderMailSend:
		if m.Mail != nil {
			fields = encodeMail(m.Mail)
		}

	case HeaderInboxList:
		for _, summary := range m.InboxList {
			fields = append(fields, encodeField(summary))
		}

	case HeaderInboxChoice:
		// The request direction carries the 1-based selection,
		// the response direction the five fields of the mail.
		if m.Mail != nil {
			fields = encodeMail(m.Mail)
		} else {
			fields = []string{encodeField(strconv.Itoa(m.Choice))}
		}

	case HeaderStats:
		if m.Stats != nil {
			fields = []string{
				encodeField(strconv.FormatInt(m.Stats.Count, 10)),
				encodeField(strconv.FormatInt(m.Stats.Size, 10)),
			}
		}
	}

	if len(fields) == 0 {
		return string(m.Header)
	}

	return fmt.Sprintf("%s|%s", m.Header, strings.Join(fields, "|"))
}

// Parse takes in one received line without its trailing
// newline and parses it back into a Message. Unknown header
// tokens, wrong field counts, invalid base64 content and
// malformed numbers all fail with a *ProtocolError.
func Parse(raw string) (*Message, error) {

	parts := strings.Split(raw, "|")

	m := &Message{
		Header: Header(parts[0]),
	}

	// Decode all payload fields following the header token.
	fields := make([]string, 0, (len(parts) - 1))
	for _, part := range parts[1:] {

		field, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid base64 payload field in %s message", m.Header)}
		}

		fields = append(fields, string(field))
	}

	switch m.Header {

	case HeaderOK, HeaderBye, HeaderAuthLogout:
		if len(fields) != 0 {
			return nil, &ProtocolError{Reason: fmt.Sprintf("%s message does not carry a payload", m.Header)}
		}

	case HeaderError:
		if len(fields) != 1 {
			return nil, &ProtocolError{Reason: "ERROR message has to carry exactly one payload field"}
		}
		m.ErrorText = fields[0]

	case HeaderAuthRegister, HeaderAuthLogin:
		if len(fields) != 2 {
			return nil, &ProtocolError{Reason: fmt.Sprintf("%s message has to carry exactly two payload fields", m.Header)}
		}
		m.Auth = &AuthPayload{
			Username: fields[0],
			Password: fields[1],
		}

	case HeaderMailSend:
		if len(fields) != 5 {
			return nil, &ProtocolError{Reason: "EMAIL_SENDING message has to carry exactly five payload fields"}
		}
		m.Mail = decodeMail(fields)

	case HeaderInboxList:
		// Zero summaries is a legal inbox and the request
		// direction carries no payload at all.
		if len(fields) > 0 {
			m.InboxList = fields
		}

	case HeaderInboxChoice:
		switch len(fields) {
		case 1:
			choice, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, &ProtocolError{Reason: "INBOX_READING_CHOICE selection is not a number"}
			}
			m.Choice = choice
		case 5:
			m.Mail = decodeMail(fields)
		default:
			return nil, &ProtocolError{Reason: "INBOX_READING_CHOICE message has to carry one or five payload fields"}
		}

	case HeaderStats:
		switch len(fields) {
		case 0:
			// Request direction, no payload.
		case 2:
			count, errCount := strconv.ParseInt(fields[0], 10, 64)
			size, errSize := strconv.ParseInt(fields[1], 10, 64)
			if (errCount != nil) || (errSize != nil) {
				return nil, &ProtocolError{Reason: "STATS_REQUEST payload fields are not numbers"}
			}
			m.Stats = &StatsPayload{
				Count: count,
				Size:  size,
			}
		default:
			return nil, &ProtocolError{Reason: "STATS_REQUEST message has to carry zero or two payload fields"}
		}

	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown header token '%s'", parts[0])}
	}

	return m, nil
}

// encodeField base64-encodes one payload field value.
func encodeField(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(value))
}

// encodeMail lines up the five fields of a mail payload
// in their defined wire order.
func encodeMail(mail *MailPayload) []string {

	return []string{
		encodeField(mail.Sender),
		encodeField(mail.Destination),
		encodeField(mail.Subject),
		encodeField(mail.Date),
		encodeField(mail.Content),
	}
}

// decodeMail is the inverse of encodeMail over already
// base64-decoded fields.
func decodeMail(fields []string) *MailPayload {

	return &MailPayload{
		Sender:      fields[0],
		Destination: fields[1],
		Subject:     fields[2],
		Date:        fields[3],
		Content:     fields[4],
	}
}
