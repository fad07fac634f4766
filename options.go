package colly

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// optionEnvVars maps each option key to the environment variable it is projected to.
var optionEnvVars = map[string]string{
	OptEnv:        EnvVarEnv,
	OptName:       EnvVarLambdaName,
	OptEvent:      EnvVarEventFile,
	OptContext:    EnvVarContextFile,
	OptProjectDir: EnvVarProjectDir,
	OptLocal:      EnvVarRunLocal,
	OptUseBastion: EnvVarUseBastion,
	OptAwsProfile: EnvVarAwsProfile,
}

// newOptionsViper returns a viper seeded with the option defaults. Environment
// variables are only read when bindEnv is set.
func newOptionsViper(bindEnv bool) *viper.Viper {
	v := viper.New()
	v.SetDefault(OptEnv, DefaultEnv)
	v.SetDefault(OptProjectDir, ".")
	v.SetDefault(OptLocal, false)
	v.SetDefault(OptUseBastion, false)

	if bindEnv {
		for key, env := range optionEnvVars {
			_ = v.BindEnv(key, env)
		}
	}
	return v
}

func optionsFromViper(v *viper.Viper) (Options, error) {
	opts := Options{
		Env:         v.GetString(OptEnv),
		Name:        v.GetString(OptName),
		EventFile:   v.GetString(OptEvent),
		ContextFile: v.GetString(OptContext),
		AwsProfile:  v.GetString(OptAwsProfile),
		Region:      v.GetString(OptRegion),
		Local:       v.GetBool(OptLocal),
		UseBastion:  v.GetBool(OptUseBastion),
	}
	if opts.Env == "" {
		opts.Env = DefaultEnv
	}

	dir, err := homedir.Expand(v.GetString(OptProjectDir))
	if err != nil {
		return Options{}, fmt.Errorf("unable to expand project directory: %w", err)
	}
	opts.ProjectDir = dir

	return opts, nil
}

// OptionsFromEnv reads the options previously projected into the process environment.
func OptionsFromEnv() (Options, error) {
	return optionsFromViper(newOptionsViper(true))
}

// SetOptions resolves the runtime options and projects them into the process environment.
// CLI values take precedence over the settings in the project config file for the
// selected environment. Values already in the process environment are not read.
func SetOptions(cliOptions map[string]interface{}) (Options, error) {
	v := newOptionsViper(false)
	for k, val := range cliOptions {
		v.Set(k, val)
	}

	opts, err := optionsFromViper(v)
	if err != nil {
		return Options{}, err
	}

	pc, err := NewResolver(opts, "").ProjectConfig()
	var notFound *NotFoundError
	var missing *ConfigMissingError
	switch {
	case err == nil:
		if err := v.MergeConfigMap(FormatConfigFile(pc.Settings)); err != nil {
			return Options{}, fmt.Errorf("unable to merge project settings: %w", err)
		}
	case errors.As(err, &notFound), errors.As(err, &missing):
		// no project config for this environment, CLI and env values only
	default:
		return Options{}, err
	}

	opts, err = optionsFromViper(v)
	if err != nil {
		return Options{}, err
	}

	if err := opts.Export(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// EnvVars returns the options keyed by their environment variable names.
func (o Options) EnvVars() map[string]string {
	return map[string]string{
		EnvVarEnv:         o.Env,
		EnvVarLambdaName:  o.Name,
		EnvVarEventFile:   o.EventFile,
		EnvVarContextFile: o.ContextFile,
		EnvVarProjectDir:  o.ProjectDir,
		EnvVarRunLocal:    strconv.FormatBool(o.Local),
		EnvVarUseBastion:  strconv.FormatBool(o.UseBastion),
		EnvVarAwsProfile:  o.AwsProfile,
	}
}

// Export writes the options into the process environment.
func (o Options) Export() error {
	return AddLambdaEnvironmentVariablesToProcess(o.EnvVars())
}

// AddLambdaEnvironmentVariablesToProcess copies every variable into the process
// environment. Existing values are overwritten.
func AddLambdaEnvironmentVariablesToProcess(vars map[string]string) error {
	for k, v := range vars {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("unable to set environment variable %s: %w", k, err)
		}
	}
	return nil
}

// RunningLocally parses the run-local flag from the process environment.
func RunningLocally() (bool, error) {
	raw := os.Getenv(EnvVarRunLocal)
	if raw == "" {
		return false, nil
	}
	local, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParseError{Path: EnvVarRunLocal, Err: err}
	}
	return local, nil
}

// SetAwsRegion sets the region on cfg from the lambda config, then the project config,
// falling back to DefaultRegion. The chosen region is returned.
func SetAwsRegion(cfg *aws.Config, lc *LambdaConfig, pc *ProjectConfig) string {
	region := DefaultRegion
	switch {
	case lc != nil && lc.Region != "":
		region = lc.Region
	case pc != nil && pc.Region != "":
		region = pc.Region
	}
	cfg.Region = region
	return region
}

// LoadDotEnv reads the optional .env file in dir. A missing file yields an empty map.
func LoadDotEnv(dir string) (map[string]string, error) {
	path := dir + "/.env"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return vars, nil
}

// LambdaEnvironment merges the lambda's .env values with the project environmentVariables.
// Project values win on collision.
func LambdaEnvironment(dotEnv, project map[string]string) map[string]string {
	vars := make(map[string]string, len(dotEnv)+len(project))
	for k, v := range dotEnv {
		vars[k] = v
	}
	for k, v := range project {
		vars[k] = v
	}
	return vars
}
