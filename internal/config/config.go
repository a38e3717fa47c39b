package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	APIBaseURL    string
	CableURL      string
	CableChannel  string
	BettingPeriod time.Duration
	HistorySize   int
	TickInterval  time.Duration
	HTTPTimeout   time.Duration
	GatewayAddr   string
	LoginEmail    string
	LoginPassword string
	TokenProfile  string
	LogLevel      string
	LogFormat     string
}

func Load() Config {
	return Config{
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3000/api/v1"), "/"),
		CableURL:      getEnv("CABLE_URL", "ws://localhost:3000/cable"),
		CableChannel:  getEnv("CABLE_CHANNEL", "DoubleChannel"),
		BettingPeriod: time.Duration(getEnvAsInt("DOUBLE_BETTING_SECONDS", 30)) * time.Second,
		HistorySize:   getEnvAsInt("DOUBLE_HISTORY_SIZE", 20),
		TickInterval:  time.Duration(getEnvAsInt("DOUBLE_TICK_MS", 1000)) * time.Millisecond,
		HTTPTimeout:   time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8090"),
		LoginEmail:    os.Getenv("LOGIN_EMAIL"),
		LoginPassword: os.Getenv("LOGIN_PASSWORD"),
		TokenProfile:  getEnv("TOKEN_PROFILE", "default"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func (c Config) AutoLogin() bool {
	return c.LoginEmail != "" && c.LoginPassword != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}
