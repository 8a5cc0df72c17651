// Package config implements the CLI and environment configuration
// contract of SPEC_FULL.md §4.13/§6: two positional URL arguments per
// binary (listen_url alone for the server, listen_url + server_url for
// the client) and a RUST_LOG-style log level read from the environment.
//
// Grounded on teacher voxelrt/rt_main.go's flag.Bool("debug", ...)
// idiom — the only flag-parsing idiom any complete example repo shows —
// generalized from one named flag to a FlagSet whose positional
// arguments carry the URLs.
package config

import (
	"flag"
	"os"
	"strings"
)

// LogLevel mirrors the ordering of the RUST_LOG-style levels the spec's
// env var names.
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// String renders the level the way VOXCORE_LOG_LEVEL spells it.
func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogDebug:
		return "debug"
	default:
		return "info"
	}
}

// ParseLogLevel parses a VOXCORE_LOG_LEVEL value, defaulting to LogInfo
// for anything unrecognized (including the empty string).
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	default:
		return LogInfo
	}
}

// LogLevelFromEnv reads VOXCORE_LOG_LEVEL.
func LogLevelFromEnv() LogLevel {
	return ParseLogLevel(os.Getenv("VOXCORE_LOG_LEVEL"))
}

// DefaultListenURL and DefaultServerURL are used when a positional
// argument is omitted.
const (
	DefaultListenURL = "0.0.0.0:9000"
	DefaultServerURL = "127.0.0.1:9000"
)

// ServerConfig is voxcore-server's parsed command line.
type ServerConfig struct {
	ListenURL string
	LogLevel  LogLevel
}

// ClientConfig is voxcore-client's parsed command line.
type ClientConfig struct {
	ListenURL string
	ServerURL string
	LogLevel  LogLevel
}

// ParseServerArgs parses voxcore-server's arguments (normally
// os.Args[1:]): an optional listen_url positional argument.
func ParseServerArgs(args []string) (ServerConfig, error) {
	fs := flag.NewFlagSet("voxcore-server", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{ListenURL: DefaultListenURL, LogLevel: LogLevelFromEnv()}
	pos := fs.Args()
	if len(pos) >= 1 {
		cfg.ListenURL = pos[0]
	}
	return cfg, nil
}

// ParseClientArgs parses voxcore-client's arguments (normally
// os.Args[1:]): optional listen_url and server_url positional
// arguments, in that order.
func ParseClientArgs(args []string) (ClientConfig, error) {
	fs := flag.NewFlagSet("voxcore-client", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{ListenURL: DefaultListenURL, ServerURL: DefaultServerURL, LogLevel: LogLevelFromEnv()}
	pos := fs.Args()
	if len(pos) >= 1 {
		cfg.ListenURL = pos[0]
	}
	if len(pos) >= 2 {
		cfg.ServerURL = pos[1]
	}
	return cfg, nil
}
