package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"credit-scoring/internal/common"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelURI         string
	GitCommit        string
	ConfigPath       string
	Port             int
	TrackingURI      string
	TrackingToken    string
	TrackingUsername string
	TrackingPassword string
	RegistryTimeout  time.Duration
	ModelLoadTimeout time.Duration
	PredictTimeout   time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
	DataPath         string
	LogLevel         string
	LogFormat        string
	FeedBufferSize   int
}

// ConfigFile mirrors configs/config.yaml. The training and batch tooling share
// the same document, so unknown sections are ignored.
type ConfigFile struct {
	MLflow struct {
		ModelURI    string `yaml:"model_uri"`
		ModelName   string `yaml:"model_name"`
		TrackingURI string `yaml:"tracking_uri"`
	} `yaml:"mlflow"`

	Server struct {
		Port            int    `yaml:"port"`
		RegistryTimeout string `yaml:"registryTimeout"`
	} `yaml:"server"`
}

// Load assembles the service settings from the environment and the optional
// configuration document. The document is read once; a missing or broken
// document never fails Load.
func Load() (Settings, error) {
	configPath := getEnvOrDefault(common.EnvConfigFile, common.DefaultConfigPath)

	doc, docErr := readConfigFile(configPath)
	if docErr != nil {
		log.Debug().Err(docErr).Str("path", configPath).Msg("config document unavailable, using environment and defaults")
		doc = &ConfigFile{}
	}

	registryTimeout := getDurationOrDefault(common.EnvRegistryTimeout, parseDurationOr(doc.Server.RegistryTimeout, mustDuration(common.DefaultRegistryTimeout)))

	settings := Settings{
		ModelURI: ResolveModelReference(
			EnvReference(common.EnvModelURI),
			documentReference(configPath, doc, docErr),
			DefaultReference(common.DefaultModelURI),
		),
		GitCommit:        getEnvOrDefault(common.EnvGitCommit, common.DefaultGitCommit),
		ConfigPath:       configPath,
		Port:             getIntFromEnvOrConfig(common.EnvPort, doc.Server.Port, common.DefaultPort),
		TrackingURI:      getEnvOrDefault(common.EnvTrackingURI, stringOr(doc.MLflow.TrackingURI, common.DefaultTrackingURI)),
		TrackingToken:    os.Getenv(common.EnvTrackingToken),
		TrackingUsername: os.Getenv(common.EnvTrackingUsername),
		TrackingPassword: os.Getenv(common.EnvTrackingPassword),
		RegistryTimeout:  registryTimeout,
		ModelLoadTimeout: getDurationOrDefault(common.EnvModelLoadTimeout, mustDuration(common.DefaultModelLoadTimeout)),
		PredictTimeout:   getDurationOrDefault(common.EnvPredictTimeout, mustDuration(common.DefaultPredictTimeout)),
		WriteTimeout:     getDurationOrDefault(common.EnvWriteTimeout, mustDuration(common.DefaultWriteTimeout)),
		ShutdownTimeout:  getDurationOrDefault(common.EnvShutdownTimeout, mustDuration(common.DefaultShutdownTimeout)),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:        getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		FeedBufferSize:   getIntOrDefault(common.EnvDecisionFeedBufferSize, common.DefaultFeedBufferSize),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func readConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var doc ConfigFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}

	return &doc, nil
}

// validateSettings checks the values that would otherwise fail late at runtime
func validateSettings(settings *Settings) error {
	if settings.ModelURI == "" {
		return fmt.Errorf("model reference cannot be empty")
	}
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.RegistryTimeout <= 0 || settings.RegistryTimeout > time.Minute {
		return fmt.Errorf("registry timeout must be between 0 and 1m, got %v", settings.RegistryTimeout)
	}
	if settings.ModelLoadTimeout <= 0 {
		return fmt.Errorf("model load timeout must be positive, got %v", settings.ModelLoadTimeout)
	}
	if settings.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive, got %v", settings.WriteTimeout)
	}
	// a prediction must fail while the response can still be written
	if settings.PredictTimeout <= 0 || settings.PredictTimeout >= settings.WriteTimeout {
		return fmt.Errorf("predict timeout must be positive and below the HTTP write timeout %v, got %v", settings.WriteTimeout, settings.PredictTimeout)
	}
	if settings.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", settings.ShutdownTimeout)
	}
	if settings.FeedBufferSize <= 0 {
		return fmt.Errorf("decision feed buffer must be positive, got %d", settings.FeedBufferSize)
	}
	switch settings.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func stringOr(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("cfg: bad default duration %q: %v", v, err))
	}
	return d
}
