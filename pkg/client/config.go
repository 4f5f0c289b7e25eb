package client

import "time"

// Config holds settings for the talentflow API client.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080. The /api prefix is added by the client.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Timeout is the per-attempt timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Retries is number of retry attempts for transient failures
	Retries int `yaml:"retries" json:"retries"`
	// Backoff is the base backoff between retries; attempt n waits n*Backoff
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
	// Actor is sent as X-Actor and attributed on timeline events
	Actor string `yaml:"actor" json:"actor"`
	// CircuitFailureThreshold opens circuit after this many consecutive transient failures
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	// CircuitReset is the duration after which the circuit attempts to half-open
	CircuitReset time.Duration `yaml:"circuit_reset" json:"circuit_reset"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:                 "http://localhost:8080",
		Timeout:                 15 * time.Second,
		Retries:                 3,
		Backoff:                 250 * time.Millisecond,
		CircuitFailureThreshold: 10,
		CircuitReset:            30 * time.Second,
	}
}
