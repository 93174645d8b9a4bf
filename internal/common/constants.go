package common

// Environment variable keys
const (
	EnvModelURI               = "MODEL_URI"
	EnvGitCommit              = "GIT_COMMIT"
	EnvConfigFile             = "CONFIG_FILE"
	EnvPort                   = "PORT"
	EnvTrackingURI            = "MLFLOW_TRACKING_URI"
	EnvTrackingToken          = "MLFLOW_TRACKING_TOKEN"
	EnvTrackingUsername       = "MLFLOW_TRACKING_USERNAME"
	EnvTrackingPassword       = "MLFLOW_TRACKING_PASSWORD"
	EnvRegistryTimeout        = "REGISTRY_TIMEOUT"
	EnvModelLoadTimeout       = "MODEL_LOAD_TIMEOUT"
	EnvPredictTimeout         = "PREDICT_TIMEOUT"
	EnvWriteTimeout           = "HTTP_WRITE_TIMEOUT"
	EnvDataPath               = "DATA_PATH"
	EnvLogLevel               = "LOG_LEVEL"
	EnvLogFormat              = "LOG_FORMAT"
	EnvShutdownTimeout        = "SHUTDOWN_TIMEOUT"
	EnvDecisionFeedBufferSize = "DECISION_FEED_BUFFER"
)

// Configuration defaults
const (
	DefaultConfigPath       = "configs/config.yaml"
	DefaultModelURI         = "models:/credit-default-model@production"
	DefaultTrackingURI      = "http://localhost:5000"
	DefaultGitCommit        = "unknown"
	DefaultPort             = 8000
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultFeedBufferSize   = 64
	DefaultRegistryTimeout  = "3s"
	DefaultModelLoadTimeout = "30s"
	DefaultPredictTimeout   = "5s"
	DefaultWriteTimeout     = "10s"
	DefaultShutdownTimeout  = "15s"
)

// Scoring contract
const (
	// ExpectedFeatures is the length of the ordered feature vector the model was trained on.
	ExpectedFeatures = 11

	// DecisionThreshold is the default-probability cutoff. Probabilities at or
	// above it are rejected: refusing a good borrower is cheaper than lending
	// to a defaulter.
	DecisionThreshold = 0.05

	// UnknownVersion is reported when the registry cannot name the served version.
	UnknownVersion = "unknown"
)

// Model reference dialects
const (
	RegistryScheme = "models:/"
	AliasSeparator = "@"
	ArtifactFile   = "model.json"
)

// Common error messages
const (
	ErrMsgBoom            = "boom"
	ErrMsgPredictFailed   = "prediction failed"
	ErrMsgInternal        = "Internal Server Error"
	ErrMsgNotFound        = "Not Found"
	ErrMsgMethodNotAllow  = "Method Not Allowed"
	ErrMsgFeaturesMissing = "data.features is required"
	ErrMsgFeaturesEmpty   = "data.features must contain at least 1 item"
)

// Validation constants
const (
	MinPort         = 1
	MaxPort         = 65535
	MaxRequestBytes = 1 << 20
)
