/*
Package comm implements the wire protocol spoken between the maild server and
its clients: the closed set of message headers, the typed payload attached to
each of them and the newline-delimited framing used to move whole messages
over a stream socket. Encoding and decoding are exact inverses for every
valid message, anything else is rejected as a ProtocolError.
*/
package comm
