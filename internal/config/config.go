package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Upload     UploadConfig
	Processing ProcessingConfig
	Cleanup    CleanupConfig
	RateLimit  RateLimitConfig
	Limits     LimitsConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessExpiration  time.Duration
	RefreshExpiration time.Duration
	GuestExpiration   time.Duration
}

type UploadConfig struct {
	Dir            string
	MaxFileSizeMB  int64
	AllowedFormats []string
	ExpiryHours    int
}

type ProcessingConfig struct {
	OutputDir   string
	ModelName   string
	Command     string
	SoftTimeout time.Duration
	HardTimeout time.Duration
	Concurrency int
}

type CleanupConfig struct {
	// Cron spec for the daily sweep.
	Schedule string
}

type RateLimitConfig struct {
	UploadsPerHour int
}

type LimitsConfig struct {
	UserFiles             int64
	UserStorageMB         int64
	UserProcessingMinutes int64

	GuestFiles             int64
	GuestStorageMB         int64
	GuestProcessingMinutes int64
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.access_expiration_minutes", 30)
	viper.SetDefault("jwt.refresh_expiration_days", 7)
	viper.SetDefault("jwt.guest_expiration_days", 7)
	viper.SetDefault("upload.dir", "./uploads")
	viper.SetDefault("upload.max_file_size_mb", 100)
	viper.SetDefault("upload.allowed_formats", []string{".wav", ".mp3", ".flac", ".m4a", ".ogg"})
	viper.SetDefault("upload.expiry_hours", 24)
	viper.SetDefault("processing.output_dir", "./processed_audio")
	viper.SetDefault("processing.model_name", "MossFormer2_SE_48K")
	viper.SetDefault("processing.command", "clearvoice")
	viper.SetDefault("processing.soft_timeout_minutes", 55)
	viper.SetDefault("processing.hard_timeout_minutes", 60)
	viper.SetDefault("processing.concurrency", 2)
	viper.SetDefault("cleanup.schedule", "0 2 * * *")
	viper.SetDefault("ratelimit.uploads_per_hour", 50)
	viper.SetDefault("limits.user_files", 100)
	viper.SetDefault("limits.user_storage_mb", 1000)
	viper.SetDefault("limits.user_processing_minutes", 60)
	viper.SetDefault("limits.guest_files", 5)
	viper.SetDefault("limits.guest_storage_mb", 50)
	viper.SetDefault("limits.guest_processing_minutes", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:            viper.GetString("jwt.secret"),
			AccessExpiration:  time.Duration(viper.GetInt("jwt.access_expiration_minutes")) * time.Minute,
			RefreshExpiration: time.Duration(viper.GetInt("jwt.refresh_expiration_days")) * 24 * time.Hour,
			GuestExpiration:   time.Duration(viper.GetInt("jwt.guest_expiration_days")) * 24 * time.Hour,
		},
		Upload: UploadConfig{
			Dir:            viper.GetString("upload.dir"),
			MaxFileSizeMB:  viper.GetInt64("upload.max_file_size_mb"),
			AllowedFormats: viper.GetStringSlice("upload.allowed_formats"),
			ExpiryHours:    viper.GetInt("upload.expiry_hours"),
		},
		Processing: ProcessingConfig{
			OutputDir:   viper.GetString("processing.output_dir"),
			ModelName:   viper.GetString("processing.model_name"),
			Command:     viper.GetString("processing.command"),
			SoftTimeout: time.Duration(viper.GetInt("processing.soft_timeout_minutes")) * time.Minute,
			HardTimeout: time.Duration(viper.GetInt("processing.hard_timeout_minutes")) * time.Minute,
			Concurrency: viper.GetInt("processing.concurrency"),
		},
		Cleanup: CleanupConfig{
			Schedule: viper.GetString("cleanup.schedule"),
		},
		RateLimit: RateLimitConfig{
			UploadsPerHour: viper.GetInt("ratelimit.uploads_per_hour"),
		},
		Limits: LimitsConfig{
			UserFiles:              viper.GetInt64("limits.user_files"),
			UserStorageMB:          viper.GetInt64("limits.user_storage_mb"),
			UserProcessingMinutes:  viper.GetInt64("limits.user_processing_minutes"),
			GuestFiles:             viper.GetInt64("limits.guest_files"),
			GuestStorageMB:         viper.GetInt64("limits.guest_storage_mb"),
			GuestProcessingMinutes: viper.GetInt64("limits.guest_processing_minutes"),
		},
	}

	return cfg, nil
}
