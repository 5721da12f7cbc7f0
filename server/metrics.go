package server

import (
	"github.com/go-kit/kit/metrics"

	"github.com/go-maild/maild/comm"
)

type metricsService struct {
	service  Service
	commands metrics.Counter
	logins   metrics.Counter
	logouts  metrics.Counter
}

func NewMetricsService(s Service, commands metrics.Counter, logins metrics.Counter, logouts metrics.Counter) Service {
	return &metricsService{
		service:  s,
		commands: commands,
		logins:   logins,
		logouts:  logouts,
	}
}

func (s *metricsService) Register(sess *Session, req *comm.AuthPayload) bool {

	s.commands.With("command", "register").Add(1)

	return s.service.Register(sess, req)
}

func (s *metricsService) Login(sess *Session, req *comm.AuthPayload) bool {

	s.commands.With("command", "login").Add(1)

	ok := s.service.Login(sess, req)

	if ok {
		s.logins.Add(1)
	}

	return ok
}

func (s *metricsService) Logout(sess *Session) bool {

	s.commands.With("command", "logout").Add(1)

	ok := s.service.Logout(sess)

	if ok {
		s.logouts.Add(1)
	}

	return ok
}

func (s *metricsService) ListInbox(sess *Session) bool {

	s.commands.With("command", "list").Add(1)

	return s.service.ListInbox(sess)
}

func (s *metricsService) ReadMail(sess *Session, choice int) bool {

	s.commands.With("command", "read").Add(1)

	return s.service.ReadMail(sess, choice)
}

func (s *metricsService) SendMail(sess *Session, req *comm.MailPayload) bool {

	s.commands.With("command", "send").Add(1)

	return s.service.SendMail(sess, req)
}

func (s *metricsService) Stats(sess *Session) bool {

	s.commands.With("command", "stats").Add(1)

	return s.service.Stats(sess)
}
