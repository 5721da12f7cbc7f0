package main

import (
	"flag"
	"os"
	"runtime"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/go-maild/maild/auth"
	"github.com/go-maild/maild/client"
	"github.com/go-maild/maild/config"
	"github.com/go-maild/maild/relay"
	"github.com/go-maild/maild/server"

	"github.com/go-maild/maild/mailbox"
)

// Functions

// initAuthenticator of the correct implementation specified
// in the config to be used in the server.
func initAuthenticator(conf *config.Config) (auth.Authenticator, error) {

	switch conf.Server.AuthAdapter {
	case "AuthPostgres":
		// Connect to PostgreSQL database.
		return auth.NewPostgresAuthenticator(
			conf.Server.AuthPostgres.IP,
			conf.Server.AuthPostgres.Port,
			conf.Server.AuthPostgres.Database,
			conf.Server.AuthPostgres.User,
			conf.Server.AuthPostgres.Password,
			conf.Server.AuthPostgres.UseTLS,
		)
	default: // AuthFile
		// Open credentials file and read user information.
		return auth.NewFileAuthenticator(
			conf.Server.AuthFile.File,
			conf.Server.AuthFile.Separator,
		)
	}
}

// initRelay builds the external relay from the config and
// the secrets found in the environment.
func initRelay(conf *config.Config, env *config.Env) relay.Relayer {

	if conf.Relay.Addr == "" {
		return relay.NewDisabled()
	}

	return relay.NewSMTPRelay(conf.Relay.Addr, conf.Relay.User, env.RelayPassword)
}

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

func main() {

	// Set CPUs usable by maild to all available.
	runtime.GOMAXPROCS(runtime.NumCPU())

	serverFlag := flag.Bool("server", false, "Append this flag to run this process as the mail server.")
	clientFlag := flag.Bool("client", false, "Append this flag to run this process as the interactive terminal client.")
	addrFlag := flag.String("addr", "127.0.0.1:4130", "Provide the address of the server to connect a client to.")
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	if *serverFlag {

		// Read configuration from file.
		conf, err := config.LoadConfig(*configFlag)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to load the config",
				"err", err,
			)
			os.Exit(1)
		}

		// Read secrets from environment.
		env, err := config.LoadEnv()
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to load the environment",
				"err", err,
			)
			os.Exit(1)
		}

		authenticator, err := initAuthenticator(conf)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to initialize an authenticator",
				"err", err,
			)
			os.Exit(2)
		}

		store, err := mailbox.NewMaildirStore(conf.Server.MaildirRoot, conf.Server.LostRoot)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to initialize the mailbox store",
				"err", err,
			)
			os.Exit(3)
		}

		metrics := NewMaildMetrics(conf.Server.PrometheusAddr)
		go runPromHTTP(logger, conf.Server.PrometheusAddr)

		var svc server.Service
		svc = server.NewService(logger, authenticator, store, initRelay(conf, env), conf.Server.Domain)
		svc = server.NewLoggingService(svc, logger)
		svc = server.NewMetricsService(svc, metrics.Server.Commands, metrics.Server.Logins, metrics.Server.Logouts)

		srv, err := server.NewServer(logger, svc, conf.Server.ListenAddr)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to bind the server listener",
				"err", err,
			)
			os.Exit(4)
		}
		defer srv.Close()

		level.Info(logger).Log(
			"msg", "server listening",
			"addr", srv.Addr(),
			"domain", conf.Server.Domain,
		)

		// Loop on incoming requests.
		if err := srv.Run(); err != nil {
			level.Error(logger).Log(
				"msg", "failed to accept connections",
				"err", err,
			)
			os.Exit(5)
		}
	} else if *clientFlag {

		cl, err := client.NewClient(*addrFlag)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to connect to the server",
				"err", err,
			)
			os.Exit(6)
		}

		if err := cl.Run(); err != nil {
			level.Error(logger).Log(
				"msg", "client session ended with failure",
				"err", err,
			)
			os.Exit(7)
		}
	} else {
		// If no flags were specified, print usage
		// and return with failure value.
		flag.Usage()
		os.Exit(8)
	}
}
