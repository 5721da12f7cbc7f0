/*
Package server implements the protocol engine of maild: the accept loop that
gives every connection its own goroutine, the per-connection session tracking
anonymous versus authenticated state, and the handlers behind each protocol
header. Handlers convert every collaborator failure into an ERROR response so
a misbehaving disk or relay can never take the session loop down; only a
violation of the wire format itself terminates a connection.
*/
package server
