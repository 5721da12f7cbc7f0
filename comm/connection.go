package comm

import (
	"bufio"
	"fmt"
	"net"
	"strings"
)

// Structs

// Connection wraps one stream socket between client and
// server and speaks whole protocol messages over it. The
// protocol is strictly half-duplex, one request awaits one
// response, so no locking is required around Send.
type Connection struct {
	Conn   net.Conn
	Reader *bufio.Reader
}

// Functions

// NewConnection creates a new element of above connection
// struct around a connected socket.
func NewConnection(c net.Conn) *Connection {

	return &Connection{
		Conn:   c,
		Reader: bufio.NewReader(c),
	}
}

// Receive blocks until the next complete frame arrived on
// the connection and returns the parsed Message. I/O errors
// are returned as-is, malformed frames as *ProtocolError.
func (c *Connection) Receive() (*Message, error) {

	text, err := c.Reader.ReadString('\n')
	if err != nil {
		return nil, err
	}

	return Parse(strings.TrimRight(text, "\r\n"))
}

// Send marshalls given Message and writes it as one frame
// to the connection.
func (c *Connection) Send(m *Message) error {

	if _, err := fmt.Fprintf(c.Conn, "%s\n", m); err != nil {
		return err
	}

	return nil
}

// Terminate closes the underlying socket. Safe to call on
// an already closed connection.
func (c *Connection) Terminate() error {

	if c.Conn == nil {
		return nil
	}

	return c.Conn.Close()
}
