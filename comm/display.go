package comm

import (
	"fmt"
	"strings"
)

// The fixed display templates both sides of the protocol
// agree on. The server renders inbox summaries with
// FormatSummary, the client renders full mails and mailbox
// statistics.

// Variables

// headerSanitizer flattens line breaks out of header field
// values. The wire codec transports CR and LF unharmed
// inside its base64 fields, so a crafted Subject could
// otherwise terminate the stored header block early and
// smuggle arbitrary headers past the relay.
var headerSanitizer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Functions

// FormatSummary renders the short inbox list entry of one
// mail for a given 1-based position in the inbox.
func FormatSummary(index int, sender string, subject string, date string) string {
	return fmt.Sprintf("#%d %s - %s %s", index, sender, subject, date)
}

// FormatMail renders the full view of one mail: a header
// block followed by a separator rule and the body.
func FormatMail(mail *MailPayload) string {

	return fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: %s\n%s\n%s",
		mail.Sender, mail.Destination, mail.Subject, mail.Date,
		strings.Repeat("-", 40), mail.Content)
}

// FormatStats renders the mailbox statistics view.
func FormatStats(stats *StatsPayload) string {
	return fmt.Sprintf("Message count: %d\nMailbox size: %d bytes", stats.Count, stats.Size)
}

// Raw renders a mail into the classic internet message
// text form, header block, empty line, body. This is the
// format written into mailbox storage and handed to the
// external relay. Line breaks inside header field values
// are replaced with spaces so the header block always ends
// exactly where the body begins.
func (p *MailPayload) Raw() []byte {

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\n\r\n%s",
		headerSanitizer.Replace(p.Sender),
		headerSanitizer.Replace(p.Destination),
		headerSanitizer.Replace(p.Subject),
		headerSanitizer.Replace(p.Date),
		p.Content))
}
