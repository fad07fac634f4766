package colly

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/silinternational/colly/internal"
)

var (
	envFilePattern = regexp.MustCompile(`^` + ProjectConfigPrefix + `(?:\.([A-Za-z0-9_-]+))?` + regexp.QuoteMeta(ProjectConfigExt) + `$`)
	validate       = validator.New()
)

// Resolver locates and reads the project and lambda configuration files for one
// environment and one lambda.
type Resolver struct {
	ProjectDir string
	Env        string
	Name       string
	HandlerExt string

	ReadFile  func(name string) ([]byte, error)
	WriteFile func(name string, data []byte, perm os.FileMode) error
}

func NewResolver(opts Options, handlerExt string) *Resolver {
	if handlerExt == "" {
		handlerExt = DefaultHandlerExt
	}
	return &Resolver{
		ProjectDir: opts.ProjectDir,
		Env:        opts.Env,
		Name:       opts.Name,
		HandlerExt: handlerExt,
		ReadFile:   os.ReadFile,
		WriteFile:  os.WriteFile,
	}
}

// ListEnvFiles maps each environment name to its config file in projectDir.
// colly.json is the live environment, colly.<env>.json any other.
func ListEnvFiles(projectDir string) (map[string]string, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, &NotFoundError{Path: projectDir, Err: err}
	}

	files := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := envFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		env := strings.ToLower(m[1])
		if env == "" {
			env = DefaultEnv
		}
		files[env] = e.Name()
	}

	return files, nil
}

// ChooseProjectFile returns the config file for env, defaulting to live when env is empty.
func ChooseProjectFile(envFiles map[string]string, env string) (string, error) {
	key := strings.ToLower(env)
	if key == "" {
		key = DefaultEnv
	}

	file, ok := envFiles[key]
	if !ok {
		return "", &ConfigMissingError{Key: key, Source: "project config files"}
	}
	return file, nil
}

// FormatConfigFile converts the camelCase keys of a config object to their snake_case
// CLI equivalents and drops every key that is not a recognised CLI option.
func FormatConfigFile(configObject map[string]interface{}) map[string]interface{} {
	formatted := map[string]interface{}{}
	for k, v := range configObject {
		key := internal.CamelToSnake(k)
		if internal.IsStringInSlice(key, ConfigFileOptions) {
			formatted[key] = v
		}
	}
	return formatted
}

// EverythingAfterTheLastDot returns the part of s after its last dot, or s if it has none.
func EverythingAfterTheLastDot(s string) string {
	return s[strings.LastIndex(s, ".")+1:]
}

func (r *Resolver) isLive() bool {
	return r.Env == "" || strings.EqualFold(r.Env, DefaultEnv)
}

// AnyEnvButLive returns the upper cased environment name, or an empty string for live.
func (r *Resolver) AnyEnvButLive() string {
	if r.isLive() {
		return ""
	}
	return strings.ToUpper(r.Env)
}

// LambdaName returns the remote function name for name in the current environment.
func (r *Resolver) LambdaName(name string) string {
	return name + r.AnyEnvButLive()
}

// FunctionName is the remote name of the resolver's lambda.
func (r *Resolver) FunctionName() string {
	return r.LambdaName(r.Name)
}

func (r *Resolver) ProjectFilePath() (string, error) {
	files, err := ListEnvFiles(r.ProjectDir)
	if err != nil {
		return "", err
	}
	file, err := ChooseProjectFile(files, r.Env)
	if err != nil {
		return "", err
	}
	return r.ProjectDir + "/" + file, nil
}

func (r *Resolver) ProjectConfig() (*ProjectConfig, error) {
	path, err := r.ProjectFilePath()
	if err != nil {
		return nil, err
	}

	settings, err := r.readJSON(path)
	if err != nil {
		return nil, err
	}

	var pc ProjectConfig
	if err := internal.ConvertToOtherType(settings, &pc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	pc.Settings = settings
	if pc.EnvironmentVariables == nil {
		pc.EnvironmentVariables = map[string]string{}
	}

	return &pc, nil
}

func (r *Resolver) LambdaDir() string {
	return r.ProjectDir + "/" + r.Name
}

func (r *Resolver) LambdaConfigFilePath() string {
	return r.LambdaDir() + "/" + LambdaConfigFile
}

// LambdaConfigFile reads and validates the function.json of the resolver's lambda.
func (r *Resolver) LambdaConfigFile() (*LambdaConfig, error) {
	if r.Name == "" {
		return nil, &ConfigMissingError{Key: OptName, Source: "options"}
	}

	path := r.LambdaConfigFilePath()
	raw, err := r.readJSON(path)
	if err != nil {
		return nil, err
	}

	var lc LambdaConfig
	if err := internal.ConvertToOtherType(raw, &lc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	lc.Raw = raw

	if err := validate.Struct(lc); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && ve[0].Tag() == "required" {
			return nil, &ConfigMissingError{Key: strings.ToLower(ve[0].Field()), Source: path}
		}
		return nil, fmt.Errorf("invalid lambda config %s: %w", path, err)
	}

	return &lc, nil
}

// LambdaHandlerName returns the exported function name from the handler property.
func (r *Resolver) LambdaHandlerName() (string, error) {
	lc, err := r.LambdaConfigFile()
	if err != nil {
		return "", err
	}
	return EverythingAfterTheLastDot(lc.Handler), nil
}

// LambdaFilePath returns the path of the handler module. When offsetDir is given it
// replaces the project directory as the start of the path.
func (r *Resolver) LambdaFilePath(offsetDir string) (string, error) {
	lc, err := r.LambdaConfigFile()
	if err != nil {
		return "", err
	}

	root := r.ProjectDir
	if offsetDir != "" {
		root = offsetDir
	}

	file := lc.Handler[:strings.LastIndex(lc.Handler, ".")]
	return root + "/" + file + r.HandlerExt, nil
}

// AddValueToLambdaConfig sets the value at the dot separated key path in function.json
// and writes the file back. The file is overwritten in place.
func (r *Resolver) AddValueToLambdaConfig(keyPath string, value interface{}) error {
	path := r.LambdaConfigFilePath()
	raw, err := r.readJSON(path)
	if err != nil {
		return err
	}

	if err := internal.SetNestedValue(raw, keyPath, value); err != nil {
		return err
	}

	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := r.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (r *Resolver) readJSON(path string) (map[string]interface{}, error) {
	b, err := r.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}
