package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "fleet-telemetry-reporter/pkg/errors"
)

type Config struct {
	Server Server
	Wialon Wialon
	Report Report
	CORS   CORS
}

type Server struct {
	Port        string
	Host        string
	Environment string
}

type Wialon struct {
	BaseURL    string  `validate:"required,url"`
	Token      string  `validate:"required"`
	MaxRetries int     `validate:"gte=1,lte=10"`
	RateRPS    float64 `validate:"gt=0"`
	RateBurst  int     `validate:"gte=1"`
	// MessageLoadCount caps how many messages one interval request returns.
	MessageLoadCount int `validate:"gte=1"`
}

type Report struct {
	OutputDir        string
	Department       string
	VehicleType      string
	DriverAssignment string
}

type CORS struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(".env"); statErr == nil || !os.IsNotExist(statErr) {
				log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
			}
		}
	}

	setDefaults()

	cfg := &Config{
		Server: Server{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Wialon: Wialon{
			BaseURL:          viper.GetString("WIALON_BASE_URL"),
			Token:            viper.GetString("WIALON_TOKEN"),
			MaxRetries:       viper.GetInt("WIALON_MAX_RETRIES"),
			RateRPS:          viper.GetFloat64("WIALON_RATE_RPS"),
			RateBurst:        viper.GetInt("WIALON_RATE_BURST"),
			MessageLoadCount: viper.GetInt("WIALON_MESSAGE_LOAD_COUNT"),
		},
		Report: Report{
			OutputDir:        viper.GetString("REPORT_OUTPUT_DIR"),
			Department:       viper.GetString("REPORT_DEPARTMENT"),
			VehicleType:      viper.GetString("REPORT_VEHICLE_TYPE"),
			DriverAssignment: viper.GetString("REPORT_DRIVER_ASSIGNMENT"),
		},
		CORS: CORS{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENVIRONMENT", "development")

	viper.SetDefault("WIALON_BASE_URL", "https://hst-api.wialon.com")
	viper.SetDefault("WIALON_MAX_RETRIES", 3)
	viper.SetDefault("WIALON_RATE_RPS", 4.0)
	viper.SetDefault("WIALON_RATE_BURST", 8)
	viper.SetDefault("WIALON_MESSAGE_LOAD_COUNT", 10000)

	viper.SetDefault("REPORT_OUTPUT_DIR", ".")
	viper.SetDefault("REPORT_DEPARTMENT", "PTT TANKER")
	viper.SetDefault("REPORT_VEHICLE_TYPE", "TANKER")
	viper.SetDefault("REPORT_DRIVER_ASSIGNMENT", "PTT TANKER DRIVERS")

	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept"})
	viper.SetDefault("CORS_ALLOW_CREDENTIALS", false)
	viper.SetDefault("CORS_MAX_AGE", 300)
}

// Validate checks the Wialon section; the token may also be supplied on the
// command line, so validation runs after flags are merged in.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c.Wialon); err != nil {
		return fmt.Errorf("%w: wialon: %v", apperrors.ErrInvalidConfig, err)
	}
	return nil
}
