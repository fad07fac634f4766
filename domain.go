package colly

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultEnv             = "live"
	DefaultRegion          = "eu-west-1"
	DefaultRuntime         = "provided.al2023"
	DefaultMemorySize      = 128
	DefaultTimeout         = 3
	DefaultHandlerExt      = ".so"
	DefaultSessionName     = "colly"
	DefaultWaitTimeout     = 5 * time.Minute
	DefaultLogsSince       = 15 * time.Minute
	DefaultTimestampLayout = "20060102T150405"
	LambdaConfigFile       = "function.json"
	ProjectConfigPrefix    = "colly"
	ProjectConfigExt       = ".json"
	Version                = "0.0.0"
)

// Environment variable names read and written by the option projector.
const (
	EnvVarEnv         = "ENV"
	EnvVarLambdaName  = "COLLY__LAMBDA_NAME"
	EnvVarEventFile   = "COLLY__LAMBDA_EVENT_FILE"
	EnvVarContextFile = "COLLY__LAMBDA_CONTEXT_FILE"
	EnvVarRunLocal    = "COLLY__RUN_LAMBDA_LOCAL"
	EnvVarProjectDir  = "COLLY__PROJECT_DIR"
	EnvVarUseBastion  = "COLLY__USE_BASTION"
	EnvVarAwsProfile  = "AWS_PROFILE"
)

// Option keys, shared by the CLI flags and the project config file.
const (
	OptEnv        = "env"
	OptName       = "name"
	OptEvent      = "event"
	OptContext    = "context"
	OptProjectDir = "project_dir"
	OptLocal      = "local"
	OptUseBastion = "use_bastion"
	OptAwsProfile = "aws_profile"
	OptRegion     = "region"
)

// ConfigFileOptions is the whitelist of keys a project config file may set on behalf of the CLI.
var ConfigFileOptions = []string{
	OptUseBastion,
	OptAwsProfile,
	OptEvent,
	OptContext,
	OptLocal,
}

// Options are the resolved runtime options for a single invocation.
type Options struct {
	Env         string
	Name        string
	EventFile   string
	ContextFile string
	ProjectDir  string
	AwsProfile  string
	Region      string
	Local       bool
	UseBastion  bool
}

type ProjectConfig struct {
	EnvironmentVariables map[string]string `json:"environmentVariables"`
	Region               string            `json:"region"`
	Bastion              *BastionConfig    `json:"bastion"`

	// Settings is the whole decoded file, used to pick up CLI-equivalent keys.
	Settings map[string]interface{} `json:"-"`
}

type BastionConfig struct {
	RoleArn     string `json:"roleArn"`
	SessionName string `json:"sessionName"`
	ExternalID  string `json:"externalId"`
}

type LambdaConfig struct {
	Name        string `json:"name" validate:"required"`
	Handler     string `json:"handler" validate:"required,contains=."`
	Region      string `json:"region"`
	Runtime     string `json:"runtime"`
	Role        string `json:"role"`
	Description string `json:"description"`
	MemorySize  int32  `json:"memorySize" validate:"omitempty,min=128,max=10240"`
	Timeout     int32  `json:"timeout" validate:"omitempty,min=1,max=900"`
	S3Bucket    string `json:"s3Bucket"`

	Raw map[string]interface{} `json:"-"`
}

// InvokeResult is the outcome of one invocation, local or remote. A handler failure
// is carried in FunctionError with the error payload in Payload.
type InvokeResult struct {
	StatusCode      int32
	Payload         []byte
	LogResult       string
	FunctionError   string
	ExecutedVersion string
}

type Config struct {
	Options         Options
	HandlerExt      string
	Loader          Loader
	Logger          *log.Logger
	Out             io.Writer
	TimestampLayout string
	WaitTimeout     time.Duration
}

var DefaultConfig = Config{
	Options:         Options{Env: DefaultEnv},
	HandlerExt:      DefaultHandlerExt,
	Loader:          nil,
	Logger:          nil,
	Out:             nil,
	TimestampLayout: DefaultTimestampLayout,
	WaitTimeout:     DefaultWaitTimeout,
}

// withDefaults fills the unset fields of config from DefaultConfig.
func withDefaults(config *Config) *Config {
	if config == nil {
		c := DefaultConfig
		config = &c
	}
	if config.Options.Env == "" {
		config.Options.Env = DefaultEnv
	}
	if config.HandlerExt == "" {
		config.HandlerExt = DefaultConfig.HandlerExt
	}
	if config.Loader == nil {
		config.Loader = PluginLoader{}
	}
	if config.Logger == nil {
		config.Logger = log.NewWithOptions(os.Stdout, log.Options{Prefix: "colly"})
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.TimestampLayout == "" {
		config.TimestampLayout = DefaultConfig.TimestampLayout
	}
	if config.WaitTimeout == 0 {
		config.WaitTimeout = DefaultConfig.WaitTimeout
	}
	return config
}
