package config

import (
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string `env:"ADDR,default=:8080"`
	DatabaseDSN    string `env:"DB_DSN,required=true"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	// MediaUploadURL is the endpoint of the external media store. Empty
	// disables uploads; messages can still carry plain text.
	MediaUploadURL string `env:"MEDIA_UPLOAD_URL"`

	TokenDuration      time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	SeenRetention      time.Duration `env:"SEEN_RETENTION,default=2h"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	MembershipCacheTTL time.Duration `env:"MEMBERSHIP_CACHE_TTL,default=5m"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`
	ClientURL    string `env:"CLIENT_URL,default=http://localhost:5173"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
