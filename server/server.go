package server

import (
	"net"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	uuid "github.com/satori/go.uuid"

	"github.com/go-maild/maild/comm"
)

// Structs

// Server accepts incoming client connections and runs one
// session loop per connection against the wrapped Service.
type Server struct {
	logger   log.Logger
	service  Service
	listener net.Listener
}

// Functions

// NewServer binds a listener to supplied address and
// returns a Server ready to run against supplied service.
func NewServer(logger log.Logger, service Service, addr string) (*Server, error) {

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		logger:   logger,
		service:  service,
		listener: listener,
	}, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() string {
	return srv.listener.Addr().String()
}

// Run loops over incoming requests and dispatches each
// one to a goroutine taking care of the commands.
func (srv *Server) Run() error {

	for {

		conn, err := srv.listener.Accept()
		if err != nil {
			return err
		}

		go srv.HandleConnection(conn)
	}
}

// Close shuts down the listener. Running sessions finish
// on their own when their clients disconnect.
func (srv *Server) Close() error {
	return srv.listener.Close()
}

// HandleConnection performs the main in-session loop of
// one client connection: receive frames, dispatch them to
// the service depending on session state, and terminate
// when the client says bye or violates the wire format.
func (srv *Server) HandleConnection(conn net.Conn) {

	s := &Session{
		Connection: comm.NewConnection(conn),
		ID:         uuid.NewV4().String(),
		ClientAddr: conn.RemoteAddr().String(),
	}

	defer func() {

		if err := s.Terminate(); err != nil {
			level.Warn(srv.logger).Log(
				"msg", "failed to terminate connection cleanly",
				"session", s.ID,
				"err", err,
			)
		}
	}()

	level.Debug(srv.logger).Log(
		"msg", "accepted connection",
		"session", s.ID,
		"client", s.ClientAddr,
	)

	for {

		msg, err := s.Receive()
		if err != nil {

			if _, ok := err.(*comm.ProtocolError); ok {

				// A garbled frame leaves us without any idea
				// where the next frame starts. Cut the line.
				level.Warn(srv.logger).Log(
					"msg", "closing connection after malformed frame",
					"session", s.ID,
					"err", err,
				)
			}

			return
		}

		if !srv.dispatch(s, msg) {
			return
		}
	}
}

// dispatch routes one received message to the matching
// service operation, enforcing the authentication gate for
// mailbox operations. The returned bool signals whether the
// session loop may continue.
func (srv *Server) dispatch(s *Session, msg *comm.Message) bool {

	switch msg.Header {

	case comm.HeaderBye:
		// The client leaves without expecting an answer.
		return false

	case comm.HeaderAuthRegister:
		return srv.service.Register(s, msg.Auth)

	case comm.HeaderAuthLogin:
		return srv.service.Login(s, msg.Auth)

	case comm.HeaderAuthLogout:
		return srv.service.Logout(s)
	}

	if !s.IsAuthenticated {
		return s.RespondError("not authenticated")
	}

	switch msg.Header {

	case comm.HeaderInboxList:
		return srv.service.ListInbox(s)

	case comm.HeaderInboxChoice:
		return srv.service.ReadMail(s, msg.Choice)

	case comm.HeaderMailSend:
		return srv.service.SendMail(s, msg.Mail)

	case comm.HeaderStats:
		return srv.service.Stats(s)

	default:
		return s.RespondError("unexpected message in this state")
	}
}
