package colly

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambda/messages"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const handlerNotFoundHint = "Cannot find the lambda you are trying to run. Check the `--name` or the handler property in the lambda's function file."

type Invoker interface {
	Invoke(ctx context.Context, params *awslambda.InvokeInput, optFns ...func(*awslambda.Options)) (*awslambda.InvokeOutput, error)
}

// Runner executes a lambda handler in-process or invokes the deployed function.
type Runner struct {
	options  Options
	resolver *Resolver
	loader   Loader
	logger   *log.Logger
	out      io.Writer

	authenticate func(ctx context.Context) (aws.Config, error)
	newInvoker   func(cfg aws.Config) Invoker
}

func NewRunner(config *Config) *Runner {
	config = withDefaults(config)

	r := &Runner{
		options:  config.Options,
		resolver: NewResolver(config.Options, config.HandlerExt),
		loader:   config.Loader,
		logger:   config.Logger,
		out:      config.Out,
		newInvoker: func(cfg aws.Config) Invoker {
			return awslambda.NewFromConfig(cfg)
		},
	}
	r.authenticate = r.defaultAuthenticate

	return r
}

// NewRunnerFromEnv builds a Runner from the options exported to the process environment
// by SetOptions. The run-local flag is parsed strictly. Region is not exported and is
// taken from config.
func NewRunnerFromEnv(config *Config) (*Runner, error) {
	opts, err := OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	if opts.Local, err = RunningLocally(); err != nil {
		return nil, err
	}

	c := Config{}
	if config != nil {
		c = *config
	}
	opts.Region = c.Options.Region
	c.Options = opts
	return NewRunner(&c), nil
}

func (r *Runner) defaultAuthenticate(ctx context.Context) (aws.Config, error) {
	pc, err := r.optionalProjectConfig()
	if err != nil {
		return aws.Config{}, err
	}
	return Authenticate(ctx, r.options, pc)
}

// RunningLocally reports whether the handler should run in-process.
func (r *Runner) RunningLocally() bool {
	return r.options.Local
}

// Run authenticates and then runs the lambda locally or remotely. Authentication and
// local failures are returned. A failed remote invocation is logged and abandoned.
func (r *Runner) Run(ctx context.Context) (*InvokeResult, error) {
	cfg, err := r.authenticate(ctx)
	if err != nil {
		r.logger.Error("authentication failed", "err", err)
		return nil, err
	}

	if r.RunningLocally() {
		result, err := r.RunLocally(ctx)
		if err != nil {
			r.logger.Error("local invocation failed", "lambda", r.resolver.Name, "err", err)
			return result, err
		}
		_, _ = fmt.Fprintln(r.out, string(result.Payload))
		return result, nil
	}

	result, err := r.RunDeployed(ctx, cfg)
	if err != nil {
		r.logger.Error("remote invocation failed", "lambda", r.resolver.FunctionName(), "err", err)
		return nil, nil
	}
	return result, nil
}

// RunLocally loads the handler and calls it with the event and context fixtures. An
// error returned by the handler fails the run, with the error payload in the result.
func (r *Runner) RunLocally(ctx context.Context) (*InvokeResult, error) {
	pc, err := r.resolver.ProjectConfig()
	if err != nil {
		return nil, err
	}

	lc, err := r.resolver.LambdaConfigFile()
	if err != nil {
		return nil, err
	}

	dotEnv, err := LoadDotEnv(r.resolver.LambdaDir())
	if err != nil {
		return nil, err
	}
	if err := AddLambdaEnvironmentVariablesToProcess(LambdaEnvironment(dotEnv, pc.EnvironmentVariables)); err != nil {
		return nil, err
	}

	handler, err := r.lambdaHandler()
	if err != nil {
		return nil, err
	}

	event, err := r.EventFile()
	if err != nil {
		return nil, err
	}

	lctx, err := r.ContextFile()
	if err != nil {
		return nil, err
	}

	timeout := lc.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	memorySize := lc.MemorySize
	if memorySize == 0 {
		memorySize = DefaultMemorySize
	}
	lambdacontext.FunctionName = r.resolver.FunctionName()
	lambdacontext.FunctionVersion = "$LATEST"
	lambdacontext.MemoryLimitInMB = int(memorySize)

	invokeCtx, cancel := context.WithTimeout(lambdacontext.NewContext(ctx, lctx), time.Duration(timeout)*time.Second)
	defer cancel()

	r.logger.Info("running lambda locally", "lambda", r.resolver.Name, "requestId", lctx.AwsRequestID)
	payload, err := invokeHandler(invokeCtx, handler, event)
	if err != nil {
		errPayload, _ := json.Marshal(messages.InvokeResponse_Error{
			Message: err.Error(),
			Type:    fmt.Sprintf("%T", err),
		})
		return &InvokeResult{StatusCode: 200, Payload: errPayload, FunctionError: "Unhandled"}, err
	}

	return &InvokeResult{StatusCode: 200, Payload: payload, ExecutedVersion: lambdacontext.FunctionVersion}, nil
}

// invokeHandler calls the handler, turning a panic into an error.
func invokeHandler(ctx context.Context, handler lambda.Handler, event []byte) (payload []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			payload = nil
			err = &HandlerPanicError{Value: p}
		}
	}()
	return handler.Invoke(ctx, event)
}

// RunDeployed invokes the deployed function synchronously and prints the status code,
// payload and tail of the execution log.
func (r *Runner) RunDeployed(ctx context.Context, cfg aws.Config) (*InvokeResult, error) {
	lc, err := r.resolver.LambdaConfigFile()
	if err != nil {
		return nil, err
	}

	pc, err := r.optionalProjectConfig()
	if err != nil {
		return nil, err
	}

	if r.options.Region != "" {
		cfg.Region = r.options.Region
	} else {
		SetAwsRegion(&cfg, lc, pc)
	}

	event, err := r.EventFile()
	if err != nil {
		return nil, err
	}

	return r.InvokeDeployed(ctx, cfg, event)
}

// InvokeDeployed calls the deployed function with event, using the region already set on cfg.
func (r *Runner) InvokeDeployed(ctx context.Context, cfg aws.Config, event json.RawMessage) (*InvokeResult, error) {
	name := r.resolver.FunctionName()
	r.logger.Info("invoking deployed lambda", "lambda", name, "region", cfg.Region)

	out, err := r.newInvoker(cfg).Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: lambdaTypes.InvocationTypeRequestResponse,
		Payload:        event,
		LogType:        lambdaTypes.LogTypeTail,
	})
	if err != nil {
		return nil, &ApiError{Op: "Invoke", Err: err}
	}

	result := &InvokeResult{
		StatusCode:      out.StatusCode,
		Payload:         out.Payload,
		FunctionError:   aws.ToString(out.FunctionError),
		ExecutedVersion: aws.ToString(out.ExecutedVersion),
	}
	if out.LogResult != nil {
		decoded, err := base64.StdEncoding.DecodeString(*out.LogResult)
		if err != nil {
			return nil, &ParseError{Path: "LogResult", Err: err}
		}
		result.LogResult = string(decoded)
	}

	r.report(result)
	return result, nil
}

func (r *Runner) report(result *InvokeResult) {
	_, _ = fmt.Fprintf(r.out, "Status code: %d\n", result.StatusCode)
	_, _ = fmt.Fprintf(r.out, "Payload: %s\n", result.Payload)
	if result.FunctionError != "" {
		_, _ = fmt.Fprintf(r.out, "Function error: %s\n", result.FunctionError)
	}
	if result.LogResult != "" {
		_, _ = fmt.Fprintln(r.out, result.LogResult)
	}
}

// EventFile reads the event fixture. A missing fixture is an empty JSON object.
func (r *Runner) EventFile() (json.RawMessage, error) {
	empty := json.RawMessage("{}")
	if r.options.EventFile == "" {
		return empty, nil
	}

	path := r.resolver.ProjectDir + "/" + r.options.EventFile
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}

	if !json.Valid(b) {
		return nil, &ParseError{Path: path, Err: errors.New("invalid JSON")}
	}
	return b, nil
}

// ContextFile reads the context fixture. Without one a minimal context with a fresh
// request id is used.
func (r *Runner) ContextFile() (*lambdacontext.LambdaContext, error) {
	lctx := &lambdacontext.LambdaContext{}

	if r.options.ContextFile != "" {
		path := r.resolver.ProjectDir + "/" + r.options.ContextFile
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, &NotFoundError{Path: path, Err: err}
		default:
			if err := json.Unmarshal(b, lctx); err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
		}
	}

	if lctx.AwsRequestID == "" {
		lctx.AwsRequestID = uuid.New().String()
	}
	if lctx.InvokedFunctionArn == "" {
		region := r.options.Region
		if region == "" {
			region = DefaultRegion
		}
		lctx.InvokedFunctionArn = fmt.Sprintf("arn:aws:lambda:%s:000000000000:function:%s", region, r.resolver.FunctionName())
	}
	return lctx, nil
}

func (r *Runner) lambdaHandler() (lambda.Handler, error) {
	path, err := r.resolver.LambdaFilePath("")
	if err != nil {
		return nil, err
	}
	name, err := r.resolver.LambdaHandlerName()
	if err != nil {
		return nil, err
	}

	sym, err := r.loader.Load(path, name)
	if err != nil {
		r.logger.Error(handlerNotFoundHint)
		return nil, err
	}

	if h, ok := sym.(lambda.Handler); ok {
		return h, nil
	}
	return lambda.NewHandler(sym), nil
}

// optionalProjectConfig returns nil when the environment has no project config file.
func (r *Runner) optionalProjectConfig() (*ProjectConfig, error) {
	pc, err := r.resolver.ProjectConfig()
	if err != nil {
		return nil, ignoreMissing(err)
	}
	return pc, nil
}
