package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MaildMetrics struct {
	Server *ServerMetrics
}

type ServerMetrics struct {
	Commands metrics.Counter
	Logins   metrics.Counter
	Logouts  metrics.Counter
}

func NewMaildMetrics(prometheusAddr string) *MaildMetrics {

	m := &MaildMetrics{}

	if prometheusAddr == "" {
		m.Server = &ServerMetrics{
			Commands: discard.NewCounter(),
			Logins:   discard.NewCounter(),
			Logouts:  discard.NewCounter(),
		}
	} else {
		m.Server = &ServerMetrics{
			Commands: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "maild",
				Subsystem: "server",
				Name:      "commands_total",
				Help:      "Number of received protocol commands",
			}, []string{"command"}),
			Logins: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "maild",
				Subsystem: "server",
				Name:      "logins_total",
				Help:      "Number of logins",
			}, nil),
			Logouts: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "maild",
				Subsystem: "server",
				Name:      "logouts_total",
				Help:      "Number of logouts",
			}, nil),
		}
	}

	return m
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
