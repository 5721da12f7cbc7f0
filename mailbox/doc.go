/*
Package mailbox persists the received mails of every local user in a Maildir
below a common root directory. Deliveries go through the Maildir tmp-to-new
rename, so a reader can never observe a partially written mail, and every
mutation of one user's mailbox is additionally serialized by a per-user lock.
Mails addressed to unknown local recipients are kept in a separate lost+found
Maildir instead of being dropped.
*/
package mailbox
