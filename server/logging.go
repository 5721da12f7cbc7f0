package server

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/go-maild/maild/comm"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// Register wraps this service's Register method
// with added logging capabilities.
func (s *loggingService) Register(sess *Session, req *comm.AuthPayload) bool {

	ok := s.service.Register(sess, req)

	logger := log.With(s.logger,
		"method", "REGISTER",
		"session", sess.ID,
		"username", req.Username,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation REGISTER correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Login wraps this service's Login method
// with added logging capabilities.
func (s *loggingService) Login(sess *Session, req *comm.AuthPayload) bool {

	ok := s.service.Login(sess, req)

	logger := log.With(s.logger,
		"method", "LOGIN",
		"session", sess.ID,
		"username", req.Username,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation LOGIN correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Logout wraps this service's Logout method
// with added logging capabilities.
func (s *loggingService) Logout(sess *Session) bool {

	ok := s.service.Logout(sess)

	logger := log.With(s.logger,
		"method", "LOGOUT",
		"session", sess.ID,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation LOGOUT correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// ListInbox wraps this service's ListInbox method
// with added logging capabilities.
func (s *loggingService) ListInbox(sess *Session) bool {

	ok := s.service.ListInbox(sess)

	logger := log.With(s.logger,
		"method", "LIST",
		"session", sess.ID,
		"user", sess.UserName,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation LIST correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// ReadMail wraps this service's ReadMail method
// with added logging capabilities.
func (s *loggingService) ReadMail(sess *Session, choice int) bool {

	ok := s.service.ReadMail(sess, choice)

	logger := log.With(s.logger,
		"method", "READ",
		"session", sess.ID,
		"user", sess.UserName,
		"choice", choice,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation READ correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// SendMail wraps this service's SendMail method
// with added logging capabilities.
func (s *loggingService) SendMail(sess *Session, req *comm.MailPayload) bool {

	ok := s.service.SendMail(sess, req)

	logger := log.With(s.logger,
		"method", "SEND",
		"session", sess.ID,
		"user", sess.UserName,
		"destination", req.Destination,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation SEND correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Stats wraps this service's Stats method
// with added logging capabilities.
func (s *loggingService) Stats(sess *Session) bool {

	ok := s.service.Stats(sess)

	logger := log.With(s.logger,
		"method", "STATS",
		"session", sess.ID,
		"user", sess.UserName,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to perform operation STATS correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}
