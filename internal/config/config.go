package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, database connection,
// browser automation, the scan pipeline, cookie categorization, the job queue,
// and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"cookiescan" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Browser contains the headless browser session settings
	Browser struct {
		// Headless controls whether the browser runs without a visible window
		Headless bool `env:"BROWSER_HEADLESS" env-default:"true" yaml:"headless"`
		// ViewportWidth is the width of the browsing context's viewport in pixels
		ViewportWidth int `env:"BROWSER_VIEWPORT_WIDTH" env-default:"1920" yaml:"viewportWidth"`
		// ViewportHeight is the height of the browsing context's viewport in pixels
		ViewportHeight int `env:"BROWSER_VIEWPORT_HEIGHT" env-default:"1080" yaml:"viewportHeight"`
		// UserAgent overrides the user agent sent on every request, empty keeps the built-in default
		UserAgent string `env:"BROWSER_USER_AGENT" env-default:"" yaml:"userAgent"`
		// NavigationTimeout bounds the most patient navigation tier, the fallback tiers derive shorter budgets from it
		NavigationTimeout time.Duration `env:"BROWSER_NAVIGATION_TIMEOUT" env-default:"30s" yaml:"navigationTimeout"`
		// ActionTimeout bounds non-navigation browser operations such as reading the cookie jar
		ActionTimeout time.Duration `env:"BROWSER_ACTION_TIMEOUT" env-default:"10s" yaml:"actionTimeout"`
		// NetworkIdleWait is the quiet period with no in-flight requests that counts as network idle
		NetworkIdleWait time.Duration `env:"BROWSER_NETWORK_IDLE_WAIT" env-default:"2s" yaml:"networkIdleWait"`
	} `yaml:"browser"`

	// Scanner contains the scan pipeline settings
	Scanner struct {
		// MaxAttempts is the number of delivery attempts for a scan job
		MaxAttempts int `env:"SCANNER_MAX_ATTEMPTS" env-default:"1" yaml:"maxAttempts"`
		// ConsentTimeout bounds the attempt to find and dismiss a consent banner on each page
		ConsentTimeout time.Duration `env:"SCANNER_CONSENT_TIMEOUT" env-default:"5s" yaml:"consentTimeout"`
		// ConsentSettle is how long to wait after dismissing a banner before capturing cookies
		ConsentSettle time.Duration `env:"SCANNER_CONSENT_SETTLE" env-default:"2s" yaml:"consentSettle"`
	} `yaml:"scanner"`

	// Categorizer contains the cookie categorization upstream settings
	Categorizer struct {
		// Endpoint is the URL of the categorization API
		Endpoint string `env:"CATEGORIZER_ENDPOINT" env-default:"" yaml:"endpoint"`
		// RequestTimeout bounds each individual categorization attempt
		RequestTimeout time.Duration `env:"CATEGORIZER_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// CacheEnabled toggles the in-memory categorization cache
		CacheEnabled bool `env:"CATEGORIZER_CACHE_ENABLED" env-default:"true" yaml:"cacheEnabled"`
		// CacheTTL is how long resolved categorizations are served from memory
		CacheTTL time.Duration `env:"CATEGORIZER_CACHE_TTL" env-default:"1h" yaml:"cacheTTL"`
		// RetryMaxAttempts is the number of attempts against the upstream per batch
		RetryMaxAttempts int `env:"CATEGORIZER_RETRY_MAX_ATTEMPTS" env-default:"3" yaml:"retryMaxAttempts"`
		// RetryBaseDelay is the delay before the first retry, later delays grow exponentially
		RetryBaseDelay time.Duration `env:"CATEGORIZER_RETRY_BASE_DELAY" env-default:"200ms" yaml:"retryBaseDelay"`
		// BreakerFailureRate is the failure ratio at which the circuit breaker opens
		BreakerFailureRate float64 `env:"CATEGORIZER_BREAKER_FAILURE_RATE" env-default:"0.5" yaml:"breakerFailureRate"`
		// BreakerCooldown is how long the circuit breaker stays open before allowing a trial call
		BreakerCooldown time.Duration `env:"CATEGORIZER_BREAKER_COOLDOWN" env-default:"30s" yaml:"breakerCooldown"`
	} `yaml:"categorizer"`

	// Worker contains the background job queue settings
	Worker struct {
		// MaxWorkers is the number of scan jobs processed concurrently
		MaxWorkers int `env:"WORKER_MAX_WORKERS" env-default:"4" yaml:"maxWorkers"`
	} `yaml:"worker"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
