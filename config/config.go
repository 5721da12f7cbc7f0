package config

import (
	"fmt"

	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Server Server
	Relay  Relay
}

// Server configures the mail server node: where it
// listens, which domain counts as local and where
// accounts and mailboxes live on disk.
type Server struct {
	ListenAddr     string
	Domain         string
	PrometheusAddr string
	MaildirRoot    string
	LostRoot       string
	AuthAdapter    string
	AuthFile       *AuthFile
	AuthPostgres   *AuthPostgres
}

// AuthFile provides information on authenticating users
// against a designated credentials text file.
type AuthFile struct {
	File      string
	Separator string
}

// AuthPostgres defines parameters for connecting to a
// PostgreSQL database for authenticating users.
type AuthPostgres struct {
	IP       string
	Port     uint16
	Database string
	User     string
	Password string
	UseTLS   bool
}

// Relay configures the upstream SMTP server used for mails
// addressed outside the local domain. The password is not
// part of the config file, it comes from the environment.
type Relay struct {
	Addr string
	User string
}

// Functions

// LoadConfig takes in the path to the main config file of
// maild in TOML syntax and places the values from the file
// in the corresponding struct. Relative paths are resolved
// against the directory of the config file.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	if _, err := toml.DecodeFile(configFile, conf); err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	if conf.Server.ListenAddr == "" {
		return nil, fmt.Errorf("config at '%s' is missing a listen address", configFile)
	}

	if conf.Server.Domain == "" {
		return nil, fmt.Errorf("config at '%s' is missing the local domain name", configFile)
	}

	if conf.Server.MaildirRoot == "" || conf.Server.LostRoot == "" {
		return nil, fmt.Errorf("config at '%s' is missing the Maildir locations", configFile)
	}

	switch conf.Server.AuthAdapter {

	case "", "AuthFile":
		conf.Server.AuthAdapter = "AuthFile"
		if conf.Server.AuthFile == nil {
			return nil, fmt.Errorf("config at '%s' selects AuthFile but does not configure it", configFile)
		}
		if conf.Server.AuthFile.Separator == "" {
			conf.Server.AuthFile.Separator = ":"
		}

	case "AuthPostgres":
		if conf.Server.AuthPostgres == nil {
			return nil, fmt.Errorf("config at '%s' selects AuthPostgres but does not configure it", configFile)
		}

	default:
		return nil, fmt.Errorf("config at '%s' names unknown auth adapter '%s'", configFile, conf.Server.AuthAdapter)
	}

	// Retrieve absolute path of the directory the config
	// file lives in and prefix each relative path with it.
	absConfigDir, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of config directory: %v", err)
	}

	if !filepath.IsAbs(conf.Server.MaildirRoot) {
		conf.Server.MaildirRoot = filepath.Join(absConfigDir, conf.Server.MaildirRoot)
	}

	if !filepath.IsAbs(conf.Server.LostRoot) {
		conf.Server.LostRoot = filepath.Join(absConfigDir, conf.Server.LostRoot)
	}

	if conf.Server.AuthFile != nil && !filepath.IsAbs(conf.Server.AuthFile.File) {
		conf.Server.AuthFile.File = filepath.Join(absConfigDir, conf.Server.AuthFile.File)
	}

	return conf, nil
}
