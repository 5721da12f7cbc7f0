package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"crypto/subtle"

	"github.com/pkg/errors"
)

// Structs

// FileAuthenticator manages accounts in a plain text file,
// one username and password hash per line, separated by a
// configurable separator. The file is read once at start
// and kept in sync with an in-memory map afterwards.
type FileAuthenticator struct {
	lock  sync.RWMutex
	file  string
	sep   string
	users map[string]string
}

// Functions

// NewFileAuthenticator opens the credentials file at
// supplied location, creating an empty one if none exists
// yet, and parses it line by line into memory.
func NewFileAuthenticator(file string, sep string) (*FileAuthenticator, error) {

	f := &FileAuthenticator{
		file:  file,
		sep:   sep,
		users: make(map[string]string),
	}

	handle, err := os.OpenFile(file, (os.O_RDONLY | os.O_CREATE), 0600)
	if err != nil {
		return nil, errors.Wrap(err, "could not open supplied credentials file")
	}
	defer handle.Close()

	scanner := bufio.NewScanner(handle)

	for scanner.Scan() {

		line := scanner.Text()
		if line == "" {
			continue
		}

		// Split read line into username and password hash.
		userData := strings.SplitN(line, sep, 2)
		if len(userData) != 2 {
			return nil, fmt.Errorf("malformed line in credentials file: '%s'", line)
		}

		f.users[userData[0]] = userData[1]
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "experienced error while scanning credentials file")
	}

	return f, nil
}

// Register creates a new account by hashing the supplied
// password and appending one line to the credentials file.
// The global lock serializes concurrent registrations, so
// two racing calls for one username cannot both succeed.
func (f *FileAuthenticator) Register(username string, password string) error {

	f.lock.Lock()
	defer f.lock.Unlock()

	if _, found := f.users[username]; found {
		return ErrUserExists
	}

	hash := hashPassword(password)

	handle, err := os.OpenFile(f.file, (os.O_WRONLY | os.O_APPEND), 0600)
	if err != nil {
		return errors.Wrap(err, "could not open credentials file for append")
	}
	defer handle.Close()

	if _, err := fmt.Fprintf(handle, "%s%s%s\n", username, f.sep, hash); err != nil {
		return errors.Wrap(err, "could not append new account to credentials file")
	}

	// Flush the new line to stable storage before the
	// account becomes visible to logins.
	if err := handle.Sync(); err != nil {
		return errors.Wrap(err, "could not sync credentials file")
	}

	f.users[username] = hash

	return nil
}

// AuthenticatePlain performs the actual authentication
// process by hashing the supplied password and comparing
// it against the stored hash of the account.
func (f *FileAuthenticator) AuthenticatePlain(username string, password string, clientAddr string) (string, error) {

	f.lock.RLock()
	defer f.lock.RUnlock()

	stored, found := f.users[username]
	if !found {
		return "", ErrInvalidCredentials
	}

	supplied := hashPassword(password)

	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return "", ErrInvalidCredentials
	}

	return clientID(clientAddr, username), nil
}

// Exists reports whether supplied username is registered.
func (f *FileAuthenticator) Exists(username string) bool {

	f.lock.RLock()
	defer f.lock.RUnlock()

	_, found := f.users[username]

	return found
}
