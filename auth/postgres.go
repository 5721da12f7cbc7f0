package auth

import (
	"crypto/tls"

	"github.com/pkg/errors"
	"gopkg.in/jackc/pgx.v2"
)

// Structs

// PostgresAuthenticator manages accounts in a users table
// of a PostgreSQL database, for deployments where the
// credentials file does not suffice.
type PostgresAuthenticator struct {
	Conn *pgx.Conn
}

// Functions

// NewPostgresAuthenticator expects to be supplied with
// PostgreSQL database connection information from the
// config file. It then tries to connect to the database
// and returns an initialized struct above.
func NewPostgresAuthenticator(ip string, port uint16, db string, user string, password string, useTLS bool) (*PostgresAuthenticator, error) {

	// Prepare a default TLS config if useTLS is set to true.
	// Otherwise, this config will be nil and therefore disable TLS.
	var dbTLSConfig *tls.Config
	if useTLS {
		dbTLSConfig = new(tls.Config)
	}

	connConfig := pgx.ConnConfig{
		Host:      ip,
		Port:      port,
		Database:  db,
		User:      user,
		Password:  password,
		TLSConfig: dbTLSConfig,
	}

	conn, err := pgx.Connect(connConfig)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to specified PostgreSQL database")
	}

	return &PostgresAuthenticator{
		Conn: conn,
	}, nil
}

// Register creates a new account row in the users table.
// The unique constraint on the username column guarantees
// that two concurrent registrations for the same username
// cannot both succeed.
func (p *PostgresAuthenticator) Register(username string, password string) error {

	_, err := p.Conn.Exec("INSERT INTO users (username, password) VALUES ($1, $2)", username, hashPassword(password))
	if err != nil {

		if pgErr, ok := err.(pgx.PgError); ok && (pgErr.Code == "23505") {
			return ErrUserExists
		}

		return errors.Wrap(err, "error while inserting new account into users table")
	}

	return nil
}

// AuthenticatePlain is used to perform the actual process
// of looking up whether the client supplied user credentials
// exist and match with an user entry in the database.
func (p *PostgresAuthenticator) AuthenticatePlain(username string, password string, clientAddr string) (string, error) {

	var dbUserName string

	err := p.Conn.QueryRow("SELECT username FROM users WHERE username = $1 AND password = $2", username, hashPassword(password)).Scan(&dbUserName)
	if err != nil {

		if err == pgx.ErrNoRows {
			return "", ErrInvalidCredentials
		}

		return "", errors.Wrap(err, "error while trying to locate user")
	}

	return clientID(clientAddr, username), nil
}

// Exists reports whether supplied username is registered.
func (p *PostgresAuthenticator) Exists(username string) bool {

	var dbUserName string

	err := p.Conn.QueryRow("SELECT username FROM users WHERE username = $1", username).Scan(&dbUserName)

	return err == nil
}
