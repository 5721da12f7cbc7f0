package auth

import (
	"errors"
	"fmt"

	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Variables

// ErrUserExists is returned by Register when the supplied
// username is already taken.
var ErrUserExists = errors.New("username taken")

// ErrInvalidCredentials is returned by AuthenticatePlain
// when username or password do not match an account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Interfaces

// Authenticator defines the methods required to manage the
// accounts of a maild system: creating one, checking
// supplied plain credentials against it and answering
// whether a username is known at all.
type Authenticator interface {

	// Register creates a new account under supplied username.
	// Two concurrent calls for the same username can never
	// both succeed, the loser receives ErrUserExists.
	Register(username string, password string) error

	// AuthenticatePlain checks supplied credentials and, on
	// success, returns the deterministic client-specific
	// session identifier for the connecting address.
	AuthenticatePlain(username string, password string, clientAddr string) (string, error)

	// Exists reports whether an account with supplied
	// username has been registered.
	Exists(username string) bool
}

// Functions

// hashPassword derives the stored form of a password, the
// hex representation of its SHA3-224 digest.
func hashPassword(password string) string {

	digest := sha3.Sum224([]byte(password))

	return hex.EncodeToString(digest[:])
}

// clientID builds the deterministic client-specific session
// identifier out of remote address and username.
func clientID(clientAddr string, username string) string {
	return fmt.Sprintf("%s:%s", clientAddr, username)
}
