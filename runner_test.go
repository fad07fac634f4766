package colly

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/charmbracelet/log"
)

type fakeInvoker struct {
	input *awslambda.InvokeInput
	out   *awslambda.InvokeOutput
	err   error
}

func (f *fakeInvoker) Invoke(ctx context.Context, params *awslambda.InvokeInput, optFns ...func(*awslambda.Options)) (*awslambda.InvokeOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type echoEvent struct {
	Message string `json:"message"`
}

func echoHandler(ctx context.Context, event echoEvent) (map[string]string, error) {
	lc, _ := lambdacontext.FromContext(ctx)
	return map[string]string{
		"message":   event.Message,
		"stage":     os.Getenv("STAGE"),
		"secret":    os.Getenv("SECRET"),
		"requestId": lc.AwsRequestID,
		"function":  lambdacontext.FunctionName,
	}, nil
}

func failingHandler(ctx context.Context) error {
	return errors.New("boom")
}

func panickingHandler(ctx context.Context) error {
	panic("handler blew up")
}

// runnerProject lays out a project with a lambda whose handler is index.handler.
func runnerProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "colly.json"), `{"environmentVariables": {"STAGE": "live"}}`)
	writeFile(t, filepath.Join(dir, "colly.test.json"), `{"environmentVariables": {"STAGE": "test"}, "region": "us-east-1"}`)
	writeFile(t, filepath.Join(dir, "myLambda", "function.json"), `{"name": "myLambda", "handler": "myLambda/index.handler"}`)
	writeFile(t, filepath.Join(dir, "myLambda", ".env"), "SECRET=local\n")
	writeFile(t, filepath.Join(dir, "events", "hello.json"), `{"message": "hello"}`)
	writeFile(t, filepath.Join(dir, "events", "broken.json"), `{"message": `)
	writeFile(t, filepath.Join(dir, "contexts", "fixed.json"), `{"awsRequestId": "fixed-request-id"}`)
	return dir
}

func newTestRunner(t *testing.T, opts Options, loader Loader) (*Runner, *bytes.Buffer) {
	t.Helper()
	t.Setenv("STAGE", "")
	t.Setenv("SECRET", "")

	out := new(bytes.Buffer)
	r := NewRunner(&Config{
		Options: opts,
		Loader:  loader,
		Logger:  log.New(io.Discard),
		Out:     out,
	})
	r.authenticate = func(ctx context.Context) (aws.Config, error) {
		return aws.Config{Region: "eu-west-1"}, nil
	}
	return r, out
}

func TestRunLocally(t *testing.T) {
	dir := runnerProject(t)
	loader := StaticLoader{
		dir + "/myLambda/index.so": {"handler": echoHandler},
	}

	tests := []struct {
		name string
		opts Options
		want map[string]string
	}{
		{
			name: "event and context fixtures",
			opts: Options{ProjectDir: dir, Env: "test", Name: "myLambda", EventFile: "events/hello.json", ContextFile: "contexts/fixed.json", Local: true},
			want: map[string]string{
				"message":   "hello",
				"stage":     "test",
				"secret":    "local",
				"requestId": "fixed-request-id",
				"function":  "myLambdaTEST",
			},
		},
		{
			name: "missing fixtures",
			opts: Options{ProjectDir: dir, Env: "live", Name: "myLambda", EventFile: "events/nope.json", Local: true},
			want: map[string]string{
				"message":  "",
				"stage":    "live",
				"secret":   "local",
				"function": "myLambda",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, out := newTestRunner(t, tt.opts, loader)

			result, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			var got map[string]string
			if err := json.Unmarshal(result.Payload, &got); err != nil {
				t.Fatalf("payload is not JSON: %s", result.Payload)
			}
			if got["requestId"] == "" {
				t.Error("requestId is empty")
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s got = %q, want %q", k, got[k], v)
				}
			}
			if !strings.Contains(out.String(), `"stage":"`+tt.want["stage"]+`"`) {
				t.Errorf("output got = %q", out.String())
			}
		})
	}
}

func TestRunLocallyHandlerError(t *testing.T) {
	dir := runnerProject(t)
	loader := StaticLoader{
		dir + "/myLambda/index.so": {"handler": failingHandler},
	}
	r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda", Local: true}, loader)

	result, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected the handler error")
	}
	if result == nil || result.FunctionError != "Unhandled" {
		t.Fatalf("Run() result = %+v", result)
	}
	if !strings.Contains(string(result.Payload), "boom") {
		t.Errorf("Payload got = %s", result.Payload)
	}
}

func TestRunLocallyHandlerPanic(t *testing.T) {
	dir := runnerProject(t)
	loader := StaticLoader{
		dir + "/myLambda/index.so": {"handler": panickingHandler},
	}
	r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda", Local: true}, loader)

	result, err := r.Run(context.Background())

	var panicErr *HandlerPanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Run() error = %v, want HandlerPanicError", err)
	}
	if result == nil || result.FunctionError != "Unhandled" {
		t.Fatalf("Run() result = %+v", result)
	}
	if !strings.Contains(string(result.Payload), "handler blew up") {
		t.Errorf("Payload got = %s", result.Payload)
	}
}

func TestNewRunnerFromEnv(t *testing.T) {
	dir := runnerProject(t)

	tests := []struct {
		name      string
		runLocal  string
		wantLocal bool
		wantErr   bool
	}{
		{name: "local", runLocal: "true", wantLocal: true},
		{name: "remote", runLocal: "false", wantLocal: false},
		{name: "unset", runLocal: "", wantLocal: false},
		{name: "invalid", runLocal: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOptionEnv(t)
			t.Setenv(EnvVarProjectDir, dir)
			t.Setenv(EnvVarEnv, "test")
			t.Setenv(EnvVarLambdaName, "myLambda")
			t.Setenv(EnvVarEventFile, "events/hello.json")
			t.Setenv(EnvVarRunLocal, tt.runLocal)

			r, err := NewRunnerFromEnv(&Config{
				Options: Options{Region: "ap-south-1"},
				Logger:  log.New(io.Discard),
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRunnerFromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("NewRunnerFromEnv() error = %v, want ParseError", err)
				}
				return
			}

			if r.RunningLocally() != tt.wantLocal {
				t.Errorf("RunningLocally() got = %v, want %v", r.RunningLocally(), tt.wantLocal)
			}
			if r.resolver.FunctionName() != "myLambdaTEST" || r.options.EventFile != "events/hello.json" {
				t.Errorf("NewRunnerFromEnv() options = %+v", r.options)
			}
			if r.options.Region != "ap-south-1" {
				t.Errorf("Region got = %v, want ap-south-1", r.options.Region)
			}
		})
	}
}

func TestRunLocallyHandlerNotFound(t *testing.T) {
	dir := runnerProject(t)

	tests := []struct {
		name     string
		loader   Loader
		wantKind HandlerNotFoundKind
	}{
		{
			name:     "missing module",
			loader:   StaticLoader{},
			wantKind: HandlerModuleNotFound,
		},
		{
			name:     "missing export",
			loader:   StaticLoader{dir + "/myLambda/index.so": {"other": echoHandler}},
			wantKind: HandlerExportNotFound,
		},
		{
			name:     "missing plugin file",
			loader:   PluginLoader{},
			wantKind: HandlerModuleNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda", Local: true}, tt.loader)

			_, err := r.Run(context.Background())

			var notFound *HandlerNotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Run() error = %v, want HandlerNotFoundError", err)
			}
			if notFound.Kind != tt.wantKind {
				t.Errorf("Kind got = %v, want %v", notFound.Kind, tt.wantKind)
			}
		})
	}
}

func TestRunDeployed(t *testing.T) {
	dir := runnerProject(t)
	invoker := &fakeInvoker{out: &awslambda.InvokeOutput{
		StatusCode:      200,
		Payload:         []byte(`{"ok":true}`),
		LogResult:       aws.String(base64.StdEncoding.EncodeToString([]byte("START RequestId: abc\nEND RequestId: abc"))),
		ExecutedVersion: aws.String("$LATEST"),
	}}

	r, out := newTestRunner(t, Options{ProjectDir: dir, Env: "test", Name: "myLambda", EventFile: "events/hello.json"}, nil)
	var region string
	r.newInvoker = func(cfg aws.Config) Invoker {
		region = cfg.Region
		return invoker
	}

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	in := invoker.input
	if aws.ToString(in.FunctionName) != "myLambdaTEST" {
		t.Errorf("FunctionName got = %v", aws.ToString(in.FunctionName))
	}
	if in.InvocationType != lambdaTypes.InvocationTypeRequestResponse || in.LogType != lambdaTypes.LogTypeTail {
		t.Errorf("InvocationType = %v, LogType = %v", in.InvocationType, in.LogType)
	}
	if string(in.Payload) != `{"message": "hello"}` {
		t.Errorf("Payload got = %s", in.Payload)
	}
	if region != "us-east-1" {
		t.Errorf("region got = %v, want us-east-1", region)
	}

	if result.StatusCode != 200 || result.LogResult != "START RequestId: abc\nEND RequestId: abc" {
		t.Errorf("Run() result = %+v", result)
	}
	for _, want := range []string{"Status code: 200", `Payload: {"ok":true}`, "START RequestId: abc"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

func TestRunDeployedFunctionError(t *testing.T) {
	dir := runnerProject(t)
	invoker := &fakeInvoker{out: &awslambda.InvokeOutput{
		StatusCode:    200,
		Payload:       []byte(`{"errorMessage":"boom"}`),
		FunctionError: aws.String("Unhandled"),
	}}

	r, out := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda"}, nil)
	r.newInvoker = func(cfg aws.Config) Invoker { return invoker }

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.FunctionError != "Unhandled" {
		t.Errorf("FunctionError got = %v", result.FunctionError)
	}
	if !strings.Contains(out.String(), "Function error: Unhandled") {
		t.Errorf("output got = %q", out.String())
	}
}

func TestRunDeployedFailureIsNotReturned(t *testing.T) {
	dir := runnerProject(t)
	invoker := &fakeInvoker{err: &lambdaTypes.ResourceNotFoundException{Message: aws.String("Function not found")}}

	r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda"}, nil)
	r.newInvoker = func(cfg aws.Config) Invoker { return invoker }

	result, err := r.Run(context.Background())
	if err != nil || result != nil {
		t.Errorf("Run() result = %+v, error = %v, want nil and nil", result, err)
	}
	if invoker.input == nil {
		t.Error("Invoke() was not called")
	}
}

func TestRunAuthenticationFailure(t *testing.T) {
	dir := runnerProject(t)
	invoker := &fakeInvoker{}

	r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "live", Name: "myLambda"}, nil)
	authErr := &ApiError{Op: "GetCallerIdentity", Err: errors.New("expired token")}
	r.authenticate = func(ctx context.Context) (aws.Config, error) {
		return aws.Config{}, authErr
	}
	r.newInvoker = func(cfg aws.Config) Invoker { return invoker }

	_, err := r.Run(context.Background())
	if !errors.Is(err, authErr) {
		t.Errorf("Run() error = %v, want %v", err, authErr)
	}
	if invoker.input != nil {
		t.Error("Invoke() should not be called after an authentication failure")
	}
}

func TestEventFile(t *testing.T) {
	dir := runnerProject(t)

	tests := []struct {
		name      string
		eventFile string
		want      string
		wantErr   bool
	}{
		{name: "unset", eventFile: "", want: "{}"},
		{name: "missing", eventFile: "events/nope.json", want: "{}"},
		{name: "present", eventFile: "events/hello.json", want: `{"message": "hello"}`},
		{name: "invalid", eventFile: "events/broken.json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRunner(t, Options{ProjectDir: dir, Name: "myLambda", EventFile: tt.eventFile}, nil)

			got, err := r.EventFile()
			if (err != nil) != tt.wantErr {
				t.Errorf("EventFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("EventFile() error = %v, want ParseError", err)
				}
				return
			}
			if string(got) != tt.want {
				t.Errorf("EventFile() got = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContextFile(t *testing.T) {
	dir := runnerProject(t)

	r, _ := newTestRunner(t, Options{ProjectDir: dir, Env: "test", Name: "myLambda"}, nil)
	got, err := r.ContextFile()
	if err != nil {
		t.Fatalf("ContextFile() error = %v", err)
	}
	if got.AwsRequestID == "" {
		t.Error("AwsRequestID is empty")
	}
	if got.InvokedFunctionArn != "arn:aws:lambda:eu-west-1:000000000000:function:myLambdaTEST" {
		t.Errorf("InvokedFunctionArn got = %v", got.InvokedFunctionArn)
	}

	r, _ = newTestRunner(t, Options{ProjectDir: dir, Name: "myLambda", ContextFile: "contexts/fixed.json"}, nil)
	got, err = r.ContextFile()
	if err != nil {
		t.Fatalf("ContextFile() error = %v", err)
	}
	if got.AwsRequestID != "fixed-request-id" {
		t.Errorf("AwsRequestID got = %v, want fixed-request-id", got.AwsRequestID)
	}
}
