package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// MaxUploadBytes caps a single pending file sent to the studio.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig holds the secret shared with the SkillSphere backend, which issues the tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// BackendConfig points at the SkillSphere REST API.
type BackendConfig struct {
	BaseURL  string `mapstructure:"base_url"`  // e.g. https://api.skillsphere.io/api/
	MediaURL string `mapstructure:"media_url"` // Prefix for relative media paths, defaults to BaseURL's origin
	// Timeout of 0 means no client-side timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the shared submission lock. Empty Addr keeps the lock in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	// LockTTL bounds how long a crashed holder blocks a draft. Live holders refresh it.
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // "dev" or "prod"
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, backend.base_url -> BACKEND_BASE_URL
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_upload_bytes", 2<<30)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "course_studio")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("backend.base_url", "http://localhost:8000/api/")
	v.SetDefault("backend.media_url", "")
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.lock_ttl", "1m")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	err = v.ReadInConfig()
	// A missing file is fine: defaults and env vars still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	// Comma-separated env values may arrive untrimmed.
	config.CORS.AllowedOrigins = splitList(strings.Join(config.CORS.AllowedOrigins, ","))
	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
