// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file, and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Options holds the configuration values for the application. It is loaded
// once at process start and passed into constructors; nothing mutates it
// afterwards.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr"`

	// TokenDir is the directory holding one file per issued token.
	TokenDir string `json:"token_dir"`

	// LDAPURL is the directory service URL (ldap:// or ldaps://).
	LDAPURL string `json:"ldap_url"`

	// UserOU is the subtree holding user entries,
	// e.g. "ou=users,dc=example,dc=org".
	UserOU string `json:"user_ou"`

	// AdminDN is the administrative bind identity.
	AdminDN string `json:"admin_dn"`

	// AdminPassword is the administrative bind credential.
	AdminPassword string `json:"admin_password"`

	// Salt feeds the token fingerprint. Changing it invalidates every
	// issued token.
	Salt string `json:"salt"`

	// MinPasswordLength is the minimum accepted new-password length.
	MinPasswordLength int `json:"min_password_length"`

	// DatabaseDSN enables the Postgres audit trail when non-empty.
	DatabaseDSN string `json:"database_dsn"`

	// LogLevel is the zap log level ("debug", "info", "warn", "error").
	LogLevel string `json:"log_level"`

	// Config is the path to the config file.
	Config string `json:"-"`
}

// Defaults returns an Options with the built-in default values.
func Defaults() *Options {
	return &Options{
		Addr:              "localhost:8080",
		TokenDir:          "instance/tokens",
		MinPasswordLength: 8,
		LogLevel:          "info",
	}
}

// options holds the current configuration values.
var options = Defaults()

// init initializes command-line flags for the server binary.
func init() {
	flag.StringVar(&options.Addr, "a", options.Addr, "run on ip:port server")
	flag.StringVar(&options.TokenDir, "t", options.TokenDir, "directory holding token files")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the config file, and environment
// variables to set configuration values. It returns a pointer to the Options
// struct containing the parsed configuration values.
func Parse() (*Options, error) {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if err := load(options, options.Config); err != nil {
		return nil, err
	}
	return options, nil
}

// Load reads the config file at path (if it exists) and environment
// overrides into a fresh Options. Used by binaries that define their own
// flags, such as maketoken.
func Load(path string) (*Options, error) {
	opts := Defaults()
	opts.Config = path
	if err := load(opts, path); err != nil {
		return nil, err
	}
	return opts, nil
}

func load(opts *Options, path string) error {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Environment variables win over file and flag values.
	stringVars := map[string]*string{
		"SERVER_ADDRESS": &opts.Addr,
		"TOKEN_DIR":      &opts.TokenDir,
		"LDAP_URL":       &opts.LDAPURL,
		"USER_OU":        &opts.UserOU,
		"ADMIN_DN":       &opts.AdminDN,
		"ADMIN_PASSWORD": &opts.AdminPassword,
		"SALT":           &opts.Salt,
		"DATABASE_DSN":   &opts.DatabaseDSN,
		"LOG_LEVEL":      &opts.LogLevel,
	}
	for name, dst := range stringVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MIN_PASSWORD_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MIN_PASSWORD_LENGTH: %w", err)
		}
		opts.MinPasswordLength = n
	}
	return nil
}
