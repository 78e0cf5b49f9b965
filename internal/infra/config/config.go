package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	DBQueryTimeout time.Duration
	DBMaxOpenConns int
	DBPingTimeout  time.Duration

	SigaaBaseURL string
	SigaaToken   string
	SigaaTimeout time.Duration

	ClientsFile string

	StudentRoleID int64
	TeacherRoleID int64

	CronSpecStudents     string
	CronSpecTeachers     string
	SecondTermStartMonth time.Month
	MissingPersonPolicy  string

	RedisAddr string
	LockTTL   time.Duration

	TelegramToken   string // optional, enables run alerts
	AdminTelegramID int64

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.DBQueryTimeout, err = durationEnv("DB_QUERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBPingTimeout, err = durationEnv("DB_PING_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	cfg.DBMaxOpenConns = 2
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: must be a positive integer", v)
		}
		cfg.DBMaxOpenConns = n
	}

	cfg.SigaaBaseURL = strings.TrimRight(os.Getenv("SIGAA_BASE_URL"), "/")
	if cfg.SigaaBaseURL == "" {
		return nil, fmt.Errorf("SIGAA_BASE_URL is not set")
	}
	cfg.SigaaToken = os.Getenv("SIGAA_TOKEN")
	if cfg.SigaaTimeout, err = durationEnv("SIGAA_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	cfg.ClientsFile = os.Getenv("CLIENTS_FILE")
	if cfg.ClientsFile == "" {
		cfg.ClientsFile = "clients.toml"
	}

	if cfg.StudentRoleID, err = requiredIDEnv("STUDENT_ROLE_ID"); err != nil {
		return nil, err
	}
	if cfg.TeacherRoleID, err = requiredIDEnv("TEACHER_ROLE_ID"); err != nil {
		return nil, err
	}

	cfg.CronSpecStudents = os.Getenv("CRON_SPEC_STUDENTS")
	if cfg.CronSpecStudents == "" {
		cfg.CronSpecStudents = "0 2 * * *" // Default: 02:00 daily
	}
	cfg.CronSpecTeachers = os.Getenv("CRON_SPEC_TEACHERS")
	if cfg.CronSpecTeachers == "" {
		cfg.CronSpecTeachers = "30 3 * * *" // Default: 03:30 daily
	}

	cfg.SecondTermStartMonth = time.July
	if v := os.Getenv("SECOND_TERM_START_MONTH"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("invalid SECOND_TERM_START_MONTH %q: must be 1-12", v)
		}
		cfg.SecondTermStartMonth = time.Month(m)
	}

	cfg.MissingPersonPolicy = strings.ToLower(os.Getenv("MISSING_PERSON_POLICY"))

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		if cfg.AdminTelegramID, err = requiredIDEnv("ADMIN_TELEGRAM_ID"); err != nil {
			return nil, fmt.Errorf("TELEGRAM_TOKEN is set: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func requiredIDEnv(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is not set", key)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}
