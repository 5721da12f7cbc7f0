/*
Package client implements the interactive terminal client of maild. It drives
the line protocol against one server connection and presents the two menus of
the original workflow, the authentication menu before a login succeeded and
the mailbox menu afterwards.
*/
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/go-maild/maild/comm"
)

// Structs

// Client bundles the server connection with the terminal
// streams the menus read from and write to.
type Client struct {
	conn   *comm.Connection
	input  *bufio.Reader
	output io.Writer
}

// Functions

// NewClient connects to the server at supplied address and
// returns a client driving the terminal session over it.
func NewClient(addr string) (*Client, error) {

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to server")
	}

	return &Client{
		conn:   comm.NewConnection(conn),
		input:  bufio.NewReader(os.Stdin),
		output: os.Stdout,
	}, nil
}

// Run loops over the menus until the user quits or the
// connection dies. A clean quit sends BYE before closing.
func (c *Client) Run() error {

	defer c.conn.Terminate()

	for {

		authenticated, err := c.authMenu()
		if err != nil {
			return err
		}

		if !authenticated {
			return c.conn.Send(&comm.Message{Header: comm.HeaderBye})
		}

		if err := c.mailMenu(); err != nil {
			return err
		}
	}
}

// authMenu runs the menu of an anonymous session. It
// returns true once a login succeeded and false when the
// user chose to quit.
func (c *Client) authMenu() (bool, error) {

	for {

		fmt.Fprint(c.output, "\nMenu:\n1. Create an account\n2. Log in\n3. Quit\nYour choice [1-3]: ")

		choice, err := c.readLine()
		if err != nil {
			return false, err
		}

		switch choice {

		case "1":
			if err := c.register(); err != nil {
				return false, err
			}

		case "2":
			ok, err := c.login()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}

		case "3":
			return false, nil

		default:
			fmt.Fprintln(c.output, "Please pick 1, 2 or 3.")
		}
	}
}

// mailMenu runs the menu of an authenticated session until
// the user logs out.
func (c *Client) mailMenu() error {

	for {

		fmt.Fprint(c.output, "\nMenu:\n1. Read my mails\n2. Send a mail\n3. Mailbox statistics\n4. Log out\nYour choice [1-4]: ")

		choice, err := c.readLine()
		if err != nil {
			return err
		}

		switch choice {

		case "1":
			if err := c.readMails(); err != nil {
				return err
			}

		case "2":
			if err := c.sendMail(); err != nil {
				return err
			}

		case "3":
			if err := c.stats(); err != nil {
				return err
			}

		case "4":
			answer, err := c.roundTrip(&comm.Message{Header: comm.HeaderAuthLogout})
			if err != nil {
				return err
			}
			if answer.Header == comm.HeaderOK {
				fmt.Fprintln(c.output, "Logged out.")
				return nil
			}
			fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)

		default:
			fmt.Fprintln(c.output, "Please pick 1, 2, 3 or 4.")
		}
	}
}

// register prompts for fresh credentials and asks the
// server to create the account.
func (c *Client) register() error {

	username, password, err := c.promptCredentials()
	if err != nil {
		return err
	}

	answer, err := c.roundTrip(&comm.Message{
		Header: comm.HeaderAuthRegister,
		Auth:   &comm.AuthPayload{Username: username, Password: password},
	})
	if err != nil {
		return err
	}

	if answer.Header == comm.HeaderOK {
		fmt.Fprintln(c.output, "Account created. You can log in now.")
		return nil
	}

	fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)

	return nil
}

// login prompts for credentials and attempts to log in.
// The returned bool reports whether the login succeeded.
func (c *Client) login() (bool, error) {

	username, password, err := c.promptCredentials()
	if err != nil {
		return false, err
	}

	answer, err := c.roundTrip(&comm.Message{
		Header: comm.HeaderAuthLogin,
		Auth:   &comm.AuthPayload{Username: username, Password: password},
	})
	if err != nil {
		return false, err
	}

	if answer.Header == comm.HeaderOK {
		fmt.Fprintf(c.output, "Welcome, %s.\n", username)
		return true, nil
	}

	fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)

	return false, nil
}

// readMails lists the inbox and offers to display one of
// the listed mails in full.
func (c *Client) readMails() error {

	answer, err := c.roundTrip(&comm.Message{Header: comm.HeaderInboxList})
	if err != nil {
		return err
	}

	if answer.Header == comm.HeaderError {
		fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)
		return nil
	}

	if len(answer.InboxList) == 0 {
		fmt.Fprintln(c.output, "Your mailbox is empty.")
		return nil
	}

	for _, summary := range answer.InboxList {
		fmt.Fprintln(c.output, summary)
	}

	fmt.Fprintf(c.output, "Which mail do you want to read [1-%d]: ", len(answer.InboxList))

	line, err := c.readLine()
	if err != nil {
		return err
	}

	choice, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintln(c.output, "That is not a number.")
		return nil
	}

	answer, err = c.roundTrip(&comm.Message{Header: comm.HeaderInboxChoice, Choice: choice})
	if err != nil {
		return err
	}

	if answer.Header == comm.HeaderError {
		fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)
		return nil
	}

	fmt.Fprintln(c.output, comm.FormatMail(answer.Mail))

	return nil
}

// sendMail composes one mail from terminal input and hands
// it to the server for delivery.
func (c *Client) sendMail() error {

	fmt.Fprint(c.output, "To: ")
	destination, err := c.readLine()
	if err != nil {
		return err
	}

	fmt.Fprint(c.output, "Subject: ")
	subject, err := c.readLine()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.output, "Message, finish with a single '.' on its own line:")

	var body strings.Builder

	for {

		line, err := c.readLine()
		if err != nil {
			return err
		}

		if line == "." {
			break
		}

		body.WriteString(line)
		body.WriteString("\n")
	}

	answer, err := c.roundTrip(&comm.Message{
		Header: comm.HeaderMailSend,
		Mail: &comm.MailPayload{
			Destination: destination,
			Subject:     subject,
			Content:     body.String(),
		},
	})
	if err != nil {
		return err
	}

	if answer.Header == comm.HeaderOK {
		fmt.Fprintln(c.output, "Mail sent.")
		return nil
	}

	fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)

	return nil
}

// stats fetches and displays the mailbox statistics.
func (c *Client) stats() error {

	answer, err := c.roundTrip(&comm.Message{Header: comm.HeaderStats})
	if err != nil {
		return err
	}

	if answer.Header == comm.HeaderError {
		fmt.Fprintf(c.output, "Error: %s\n", answer.ErrorText)
		return nil
	}

	fmt.Fprintln(c.output, comm.FormatStats(answer.Stats))

	return nil
}

// promptCredentials asks for a username and a password.
// The password is read with terminal echo disabled when
// stdin is a terminal.
func (c *Client) promptCredentials() (string, string, error) {

	fmt.Fprint(c.output, "Username: ")

	username, err := c.readLine()
	if err != nil {
		return "", "", err
	}

	fmt.Fprint(c.output, "Password: ")

	if term.IsTerminal(int(syscall.Stdin)) {

		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(c.output)
		if err != nil {
			return "", "", errors.Wrap(err, "could not read password")
		}

		return username, string(raw), nil
	}

	password, err := c.readLine()
	if err != nil {
		return "", "", err
	}

	return username, password, nil
}

// readLine reads one trimmed line of terminal input.
func (c *Client) readLine() (string, error) {

	line, err := c.input.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "could not read terminal input")
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// roundTrip sends one message and waits for the server's
// answer to it.
func (c *Client) roundTrip(msg *comm.Message) (*comm.Message, error) {

	if err := c.conn.Send(msg); err != nil {
		return nil, errors.Wrap(err, "could not send message to server")
	}

	answer, err := c.conn.Receive()
	if err != nil {
		return nil, errors.Wrap(err, "could not receive answer from server")
	}

	return answer, nil
}
