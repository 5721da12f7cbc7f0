package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Structs

// Env holds the secrets that are deliberately kept out of
// the config file. Use the .env file to populate them on
// the system maild is deployed on.
type Env struct {
	RelayPassword string
}

// Functions

// LoadEnv reads an .env file in the working directory of
// maild if one exists and returns the secrets defined in
// it. Without an .env file the plain process environment
// is consulted.
func LoadEnv() (*Env, error) {

	if _, err := os.Stat(".env"); err == nil {

		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.Wrap(err, "failed to read in .env file")
		}
	}

	return &Env{
		RelayPassword: os.Getenv("RELAY_PASSWORD"),
	}, nil
}
