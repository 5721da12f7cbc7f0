package mailbox

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"path/filepath"

	"github.com/go-pluto/maildir"
	"github.com/pkg/errors"

	"github.com/go-maild/maild/comm"
)

// Structs

// Entry describes one mail in a listed inbox: the Maildir
// key it is stored under and the rendered summary line.
type Entry struct {
	Key     string
	Summary string
}

// Interfaces

// Store defines the methods the session handlers require
// from the mailbox persistence layer.
type Store interface {

	// Deliver appends one mail to the mailbox of supplied
	// local user. The append is atomic with respect to
	// concurrent List, Read and Stats calls.
	Deliver(user string, payload *comm.MailPayload) error

	// DeliverLost preserves a mail addressed to an unknown
	// local recipient in the lost+found Maildir.
	DeliverLost(payload *comm.MailPayload) error

	// List returns the user's mails ordered most-recent-first,
	// each with its storage key and rendered summary line. An
	// empty mailbox is an empty list, not an error.
	List(user string) ([]Entry, error)

	// Read loads the full mail stored under supplied key in
	// the user's mailbox.
	Read(user string, key string) (*comm.MailPayload, error)

	// Stats returns the number of mails in the user's mailbox
	// and their total size in bytes.
	Stats(user string) (*comm.StatsPayload, error)
}

// MaildirStore implements Store on a tree of Maildirs, one
// per local user, below a common root directory.
type MaildirStore struct {
	lock      sync.Mutex
	lostLock  sync.Mutex
	userLocks map[string]*sync.Mutex
	Root      string
	LostRoot  string
}

// Functions

// NewMaildirStore prepares the Maildir root and lost+found
// directories and returns an initialized store.
func NewMaildirStore(root string, lostRoot string) (*MaildirStore, error) {

	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.Wrap(err, "could not create Maildir root")
	}

	if err := os.MkdirAll(filepath.Dir(lostRoot), 0700); err != nil {
		return nil, errors.Wrap(err, "could not create parent of lost+found Maildir")
	}

	if err := ensureMaildir(maildir.Dir(lostRoot)); err != nil {
		return nil, errors.Wrap(err, "could not create lost+found Maildir")
	}

	return &MaildirStore{
		userLocks: make(map[string]*sync.Mutex),
		Root:      root,
		LostRoot:  lostRoot,
	}, nil
}

// Deliver appends one mail to the mailbox of supplied user.
func (s *MaildirStore) Deliver(user string, payload *comm.MailPayload) error {

	userLock := s.userLock(user)
	userLock.Lock()
	defer userLock.Unlock()

	dir := s.userDir(user)

	if err := ensureMaildir(dir); err != nil {
		return errors.Wrap(err, "could not create user Maildir")
	}

	return deliverTo(dir, payload)
}

// DeliverLost preserves a mail addressed to an unknown
// local recipient in the lost+found Maildir.
func (s *MaildirStore) DeliverLost(payload *comm.MailPayload) error {

	s.lostLock.Lock()
	defer s.lostLock.Unlock()

	return deliverTo(maildir.Dir(s.LostRoot), payload)
}

// List returns the user's mails ordered most-recent-first.
func (s *MaildirStore) List(user string) ([]Entry, error) {

	userLock := s.userLock(user)
	userLock.Lock()
	defer userLock.Unlock()

	dir := s.userDir(user)

	// A user who never received a mail has no Maildir yet.
	if _, err := os.Stat(string(dir)); os.IsNotExist(err) {
		return []Entry{}, nil
	}

	keys, err := allKeys(dir)
	if err != nil {
		return nil, err
	}

	type listedMail struct {
		key     string
		sender  string
		subject string
		date    string
		stamp   time.Time
	}

	listed := make([]listedMail, 0, len(keys))

	for _, key := range keys {

		msg, err := dir.Message(key)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read mail '%s' from Maildir", key)
		}

		// An unparseable date sorts the mail to the end.
		stamp, _ := msg.Header.Date()

		listed = append(listed, listedMail{
			key:     key,
			sender:  msg.Header.Get("From"),
			subject: msg.Header.Get("Subject"),
			date:    msg.Header.Get("Date"),
			stamp:   stamp,
		})
	}

	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].stamp.After(listed[j].stamp)
	})

	entries := make([]Entry, len(listed))
	for i, lm := range listed {
		entries[i] = Entry{
			Key:     lm.key,
			Summary: comm.FormatSummary((i + 1), lm.sender, lm.subject, lm.date),
		}
	}

	return entries, nil
}

// Read loads the full mail stored under supplied key in
// the user's mailbox.
func (s *MaildirStore) Read(user string, key string) (*comm.MailPayload, error) {

	userLock := s.userLock(user)
	userLock.Lock()
	defer userLock.Unlock()

	msg, err := s.userDir(user).Message(key)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read mail '%s' from Maildir", key)
	}

	content, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read body of mail '%s'", key)
	}

	return &comm.MailPayload{
		Sender:      msg.Header.Get("From"),
		Destination: msg.Header.Get("To"),
		Subject:     msg.Header.Get("Subject"),
		Date:        msg.Header.Get("Date"),
		Content:     string(content),
	}, nil
}

// Stats returns mail count and total byte size of the
// user's mailbox.
func (s *MaildirStore) Stats(user string) (*comm.StatsPayload, error) {

	userLock := s.userLock(user)
	userLock.Lock()
	defer userLock.Unlock()

	dir := s.userDir(user)

	if _, err := os.Stat(string(dir)); os.IsNotExist(err) {
		return &comm.StatsPayload{}, nil
	}

	keys, err := allKeys(dir)
	if err != nil {
		return nil, err
	}

	stats := &comm.StatsPayload{
		Count: int64(len(keys)),
	}

	for _, key := range keys {

		fileName, err := dir.Filename(key)
		if err != nil {
			return nil, errors.Wrapf(err, "could not locate mail '%s' in Maildir", key)
		}

		info, err := os.Stat(fileName)
		if err != nil {
			return nil, errors.Wrapf(err, "could not stat mail '%s' in Maildir", key)
		}

		stats.Size += info.Size()
	}

	return stats, nil
}

// userDir maps a local username onto its Maildir.
func (s *MaildirStore) userDir(user string) maildir.Dir {
	return maildir.Dir(filepath.Join(s.Root, user))
}

// userLock hands out the lock serializing all operations
// on one user's Maildir.
func (s *MaildirStore) userLock(user string) *sync.Mutex {

	s.lock.Lock()
	defer s.lock.Unlock()

	userLock, found := s.userLocks[user]
	if !found {
		userLock = new(sync.Mutex)
		s.userLocks[user] = userLock
	}

	return userLock
}

// ensureMaildir creates the Maildir structure below
// supplied path unless it is already in place.
func ensureMaildir(dir maildir.Dir) error {

	if _, err := os.Stat(filepath.Join(string(dir), "cur")); err == nil {
		return nil
	}

	return dir.Create()
}

// deliverTo writes one mail into supplied Maildir via the
// tmp-to-new delivery dance.
func deliverTo(dir maildir.Dir, payload *comm.MailPayload) error {

	delivery, err := dir.NewDelivery()
	if err != nil {
		return errors.Wrap(err, "could not begin Maildir delivery")
	}

	if _, err := delivery.Write(payload.Raw()); err != nil {
		delivery.Abort()
		return errors.Wrap(err, "could not write mail during Maildir delivery")
	}

	if err := delivery.Close(); err != nil {
		return errors.Wrap(err, "could not finish Maildir delivery")
	}

	return nil
}

// allKeys surfaces freshly delivered mails from new to cur
// and returns the keys of all mails in the Maildir.
func allKeys(dir maildir.Dir) ([]string, error) {

	if _, err := dir.Unseen(); err != nil {
		return nil, errors.Wrap(err, "could not collect unseen mails in Maildir")
	}

	keys, err := dir.Keys()
	if err != nil {
		return nil, errors.Wrap(err, "could not list keys of Maildir")
	}

	return keys, nil
}
