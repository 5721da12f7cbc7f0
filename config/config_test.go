package config_test

import (
	"testing"

	"path/filepath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-maild/maild/config"
)

// Functions

// TestLoadConfig executes a black-box test on the
// implemented functionalities to load a TOML config file.
func TestLoadConfig(t *testing.T) {

	// Try to load a broken config file. This should fail.
	_, err := config.LoadConfig("broken-config.toml")
	require.NotNil(t, err)

	// Now load a valid config.
	conf, err := config.LoadConfig("test-config.toml")
	require.Nil(t, err)

	assert.Equal(t, "127.0.0.1:4130", conf.Server.ListenAddr)
	assert.Equal(t, "example.ca", conf.Server.Domain)
	assert.Equal(t, "AuthFile", conf.Server.AuthAdapter)
	require.NotNil(t, conf.Server.AuthFile)
	assert.Equal(t, ":", conf.Server.AuthFile.Separator)
	assert.Equal(t, "smtp.relay.example:587", conf.Relay.Addr)

	// Relative paths have to be resolved against the
	// directory the config file lives in.
	assert.True(t, filepath.IsAbs(conf.Server.MaildirRoot))
	assert.True(t, filepath.IsAbs(conf.Server.LostRoot))
	assert.True(t, filepath.IsAbs(conf.Server.AuthFile.File))
	assert.Equal(t, "testdata/mail", mustRel(t, conf.Server.MaildirRoot))
	assert.Equal(t, "testdata/credentials.txt", mustRel(t, conf.Server.AuthFile.File))
}

// TestLoadConfigMissingPieces verifies that configs with
// incomplete sections are rejected.
func TestLoadConfigMissingPieces(t *testing.T) {

	_, err := config.LoadConfig("does-not-exist.toml")
	assert.NotNil(t, err)
}

func mustRel(t *testing.T, path string) string {

	cwd, err := filepath.Abs(".")
	require.Nil(t, err)

	rel, err := filepath.Rel(cwd, path)
	require.Nil(t, err)

	return filepath.ToSlash(rel)
}
