package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LiveKit   LiveKitConfig
	Calls     CallsConfig
	AMQP      AMQPConfig
	Reconcile ReconcileConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// LiveKitConfig is validated per feature, not at startup: a missing variable
// surfaces as a configuration error on the request that needs it.
type LiveKitConfig struct {
	APIKey     string
	APISecret  string
	URL        string
	SIPTrunkID string
}

type CallsConfig struct {
	RoomEmptyTimeout time.Duration
	MaxParticipants  int
	AgentTokenTTL    time.Duration
	// MaxDuration bounds how long an answered call holds the user's call slot
	// when no terminal webhook arrives.
	MaxDuration time.Duration
}

type AMQPConfig struct {
	// URL empty disables the lifecycle event bus.
	URL      string
	Exchange string
}

type ReconcileConfig struct {
	// Interval zero disables the in-process sweep.
	Interval   time.Duration
	StaleAfter time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")

	c.LiveKit.APIKey = strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY"))
	c.LiveKit.APISecret = os.Getenv("LIVEKIT_API_SECRET")
	c.LiveKit.URL = strings.TrimRight(strings.TrimSpace(os.Getenv("LIVEKIT_URL")), "/")
	c.LiveKit.SIPTrunkID = strings.TrimSpace(os.Getenv("LIVEKIT_SIP_TRUNK_ID"))

	c.Calls.RoomEmptyTimeout, parseErrs = optionalDuration(parseErrs, "CALL_ROOM_EMPTY_TIMEOUT")
	c.Calls.AgentTokenTTL, parseErrs = optionalDuration(parseErrs, "CALL_AGENT_TOKEN_TTL")
	c.Calls.MaxDuration, parseErrs = optionalDuration(parseErrs, "CALL_MAX_DURATION")
	if v := strings.TrimSpace(os.Getenv("CALL_MAX_PARTICIPANTS")); v != "" {
		n, err := mustInt("CALL_MAX_PARTICIPANTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Calls.MaxParticipants = n
	}

	c.AMQP.URL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.AMQP.Exchange = strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))

	c.Reconcile.Interval, parseErrs = optionalDuration(parseErrs, "RECONCILE_INTERVAL")
	c.Reconcile.StaleAfter, parseErrs = optionalDuration(parseErrs, "RECONCILE_STALE_AFTER")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and applies defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Calls.RoomEmptyTimeout <= 0 {
		c.Calls.RoomEmptyTimeout = 10 * time.Minute
	}
	if c.Calls.MaxParticipants <= 0 {
		c.Calls.MaxParticipants = 10
	}
	if c.Calls.AgentTokenTTL <= 0 {
		c.Calls.AgentTokenTTL = time.Hour
	}
	if c.Calls.MaxDuration <= 0 {
		c.Calls.MaxDuration = 4 * time.Hour
	}
	if c.Calls.MaxDuration <= c.Calls.RoomEmptyTimeout {
		errs = append(errs, errors.New("CALL_MAX_DURATION must be greater than CALL_ROOM_EMPTY_TIMEOUT"))
	}

	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "virtual-mentor.sessions"
	}

	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must not be negative"))
	}
	if c.Reconcile.StaleAfter <= 0 {
		c.Reconcile.StaleAfter = 2 * time.Hour
	}
	if c.Reconcile.StaleAfter <= c.Calls.RoomEmptyTimeout {
		errs = append(errs, errors.New("RECONCILE_STALE_AFTER must be greater than CALL_ROOM_EMPTY_TIMEOUT"))
	}

	return joinErrors(errs)
}

// MissingForCalls lists the LiveKit variables the call initiator needs but lacks.
func (l LiveKitConfig) MissingForCalls() []string {
	missing := l.MissingForWebhooks()
	if l.URL == "" {
		missing = append(missing, "LIVEKIT_URL")
	}
	if l.SIPTrunkID == "" {
		missing = append(missing, "LIVEKIT_SIP_TRUNK_ID")
	}
	return missing
}

// MissingForWebhooks lists the LiveKit variables webhook verification needs but lacks.
func (l LiveKitConfig) MissingForWebhooks() []string {
	var missing []string
	if l.APIKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY")
	}
	if l.APISecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET")
	}
	return missing
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optionalDuration returns zero when key is unset; defaults are applied in Validate.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
