/*
Package auth defines the mechanisms used to create and verify user accounts
of a maild system. Two adapters exist: a simple credentials file holding one
username and password hash per line, and a users table in a PostgreSQL
database. Passwords are never stored in the clear, only their SHA3-224 hash.
*/
package auth
