package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig contains all configuration parameters for the vault HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// MetricsAddr is the address and port for the metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is the time to wait after marking server not ready
	// before shutting down, allowing load balancers to detect the change.
	DrainDuration time.Duration

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// SignatureWindow bounds how far a request's issued_at may drift from the
	// server clock in either direction.
	SignatureWindow time.Duration
}

// DefaultSignatureWindow is used when HTTPServerConfig.SignatureWindow is zero.
const DefaultSignatureWindow = 5 * time.Minute
