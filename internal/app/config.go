package app

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	HTTPAddr            string
	DBDriver            string
	DBDSN               string
	DBMaxOpenConns      int
	DBMaxIdleConns      int
	DBConnMaxLifeMins   int
	CORSOrigins         []string
	CSRFEnforced        bool
	AuthRateLimitPerMin int

	JWTSecret       string
	JWTIssuer       string
	TokenTTLMinutes int
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string

	BlobBasePath string
	ImageMaxW    int
	ImageMaxH    int
	ImageQuality int

	GeminiAPIKey string
	GeminiModel  string

	PracticeSessionTTLMins int
}

// LoadConfig reads .env when present; real environment variables win.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return Config{
		AppEnv:                 envOrDefault("APP_ENV", "development"),
		HTTPAddr:               envOrDefault("HTTP_ADDR", ":8080"),
		DBDriver:               envOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:                  os.Getenv("DB_DSN"),
		DBMaxOpenConns:         intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:         intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins:      intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		CORSOrigins:            csvOrDefault("CORS_ORIGINS", []string{"http://localhost:5173"}),
		CSRFEnforced:           boolOrDefault("CSRF_ENFORCED", false),
		AuthRateLimitPerMin:    intOrDefault("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		JWTSecret:              envOrDefault("AUTH_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:              envOrDefault("AUTH_JWT_ISSUER", "psikoadmin"),
		TokenTTLMinutes:        intOrDefault("AUTH_TOKEN_TTL_MINUTES", 480),
		EnableLocalAuth:        boolOrDefault("ENABLE_LOCAL_AUTH", true),
		AdminUser:              envOrDefault("ADMIN_USER", "admin"),
		AdminPassHash:          os.Getenv("ADMIN_PASS_HASH"),
		BlobBasePath:           envOrDefault("BLOB_BASE_PATH", "./data/blobs"),
		ImageMaxW:              intOrDefault("IMAGE_MAX_W", 1600),
		ImageMaxH:              intOrDefault("IMAGE_MAX_H", 1600),
		ImageQuality:           intOrDefault("IMAGE_QUALITY", 80),
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY"),
		GeminiModel:            envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		PracticeSessionTTLMins: intOrDefault("PRACTICE_SESSION_TTL_MINUTES", 120),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func csvOrDefault(key string, fallback []string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
