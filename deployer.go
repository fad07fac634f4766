package colly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdaTypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/silinternational/colly/internal"
)

const errCodeResourceNotFound = "ResourceNotFoundException"

type LambdaAPI interface {
	lambda.GetFunctionAPIClient
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Decision holds the two branches taken after checking whether a lambda is deployed.
type Decision struct {
	Yes func(ctx context.Context) error
	No  func(ctx context.Context) error
}

type Deployer struct {
	options         Options
	handlerExt      string
	logger          *log.Logger
	timestampLayout string
	waitTimeout     time.Duration

	resolver      *Resolver
	lambdaConfig  *LambdaConfig
	projectConfig *ProjectConfig

	awsCfg       aws.Config
	lambdaClient LambdaAPI
	iamClient    IAMAPI
	s3Client     S3API
}

func NewDeployer(awsCfg aws.Config, config *Config) (*Deployer, error) {
	config = withDefaults(config)

	d := &Deployer{
		options:         config.Options,
		handlerExt:      config.HandlerExt,
		logger:          config.Logger,
		timestampLayout: config.TimestampLayout,
		waitTimeout:     config.WaitTimeout,
		resolver:        NewResolver(config.Options, config.HandlerExt),
		awsCfg:          awsCfg,
	}

	if err := d.loadProject(); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if d.options.Region != "" {
		d.awsCfg.Region = d.options.Region
	} else {
		SetAwsRegion(&d.awsCfg, d.lambdaConfig, d.projectConfig)
	}

	d.lambdaClient = lambda.NewFromConfig(d.awsCfg)
	d.iamClient = iam.NewFromConfig(d.awsCfg)
	d.s3Client = s3.NewFromConfig(d.awsCfg)

	return d, nil
}

func (d *Deployer) loadProject() error {
	lc, err := d.resolver.LambdaConfigFile()
	if err != nil {
		return err
	}
	d.lambdaConfig = lc

	pc, err := d.resolver.ProjectConfig()
	if err != nil {
		return err
	}
	d.projectConfig = pc

	return nil
}

// FunctionName is the remote name of the lambda in the selected environment.
func (d *Deployer) FunctionName() string {
	return d.resolver.FunctionName()
}

func (d *Deployer) Region() string {
	return d.awsCfg.Region
}

// Deploy updates the lambda when it already exists and creates it otherwise.
func (d *Deployer) Deploy(ctx context.Context) error {
	startTime := time.Now()
	d.logger.Printf("Beginning deployment of %s to %s", d.FunctionName(), d.options.Env)

	err := d.IsLambdaAlreadyDeployed(ctx, Decision{
		Yes: d.UpdateLambda,
		No:  d.CreateLambda,
	})
	if err != nil {
		return err
	}

	d.logger.Printf("Deployment completed in %s", time.Since(startTime))
	return nil
}

// IsLambdaAlreadyDeployed looks the function up and runs decision.Yes when it exists
// or decision.No when it does not. Any other API failure is returned without retry.
func (d *Deployer) IsLambdaAlreadyDeployed(ctx context.Context, decision Decision) error {
	_, err := d.GetFunction(ctx)
	if err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) && apiErr.Code() == errCodeResourceNotFound {
			d.logger.Printf("Lambda %s is not deployed yet", d.FunctionName())
			return decision.No(ctx)
		}
		return err
	}

	d.logger.Printf("Lambda %s is already deployed", d.FunctionName())
	return decision.Yes(ctx)
}

func (d *Deployer) GetFunction(ctx context.Context) (*lambda.GetFunctionOutput, error) {
	out, err := d.lambdaClient.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(d.FunctionName()),
	})
	if err != nil {
		return nil, &ApiError{Op: "GetFunction", Err: err}
	}
	return out, nil
}

func (d *Deployer) CreateLambda(ctx context.Context) error {
	name := d.FunctionName()
	lc := d.lambdaConfig

	roleArn, err := d.roleArn(ctx)
	if err != nil {
		return err
	}

	code, err := d.functionCode(ctx)
	if err != nil {
		return err
	}

	env, err := d.environment()
	if err != nil {
		return err
	}

	runtime := lc.Runtime
	if runtime == "" {
		runtime = DefaultRuntime
	}
	memorySize := lc.MemorySize
	if memorySize == 0 {
		memorySize = DefaultMemorySize
	}
	timeout := lc.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	d.logger.Printf("Creating lambda %s with runtime %s", name, runtime)
	out, err := d.lambdaClient.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(name),
		Role:         aws.String(roleArn),
		Handler:      aws.String(lc.Handler),
		Runtime:      lambdaTypes.Runtime(runtime),
		Code:         code,
		Description:  aws.String(lc.Description),
		MemorySize:   aws.Int32(memorySize),
		Timeout:      aws.Int32(timeout),
		Environment:  &lambdaTypes.Environment{Variables: env},
	})
	if err != nil {
		return &ApiError{Op: "CreateFunction", Err: err}
	}

	waiter := lambda.NewFunctionActiveV2Waiter(d.lambdaClient)
	if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, d.waitTimeout); err != nil {
		return fmt.Errorf("error waiting for lambda %s to become active: %w", name, err)
	}
	d.logger.Printf("Lambda %s created: %s", name, aws.ToString(out.FunctionArn))

	return d.recordDeployment(aws.ToString(out.FunctionArn))
}

func (d *Deployer) UpdateLambda(ctx context.Context) error {
	name := d.FunctionName()

	code, err := d.functionCode(ctx)
	if err != nil {
		return err
	}

	d.logger.Printf("Updating code for lambda %s", name)
	out, err := d.lambdaClient.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      code.ZipFile,
		S3Bucket:     code.S3Bucket,
		S3Key:        code.S3Key,
	})
	if err != nil {
		return &ApiError{Op: "UpdateFunctionCode", Err: err}
	}

	waiter := lambda.NewFunctionUpdatedV2Waiter(d.lambdaClient)
	if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, d.waitTimeout); err != nil {
		return fmt.Errorf("error waiting for lambda %s update to finish: %w", name, err)
	}
	d.logger.Printf("Lambda %s updated", name)

	return d.recordDeployment(aws.ToString(out.FunctionArn))
}

// recordDeployment stores the function ARN for the current environment in function.json.
func (d *Deployer) recordDeployment(arn string) error {
	if arn == "" {
		return nil
	}
	key := fmt.Sprintf("deployments.%s.arn", strings.ToLower(d.options.Env))
	if err := d.resolver.AddValueToLambdaConfig(key, arn); err != nil {
		return fmt.Errorf("lambda deployed but failed to record arn: %w", err)
	}
	return nil
}

func (d *Deployer) roleArn(ctx context.Context) (string, error) {
	role := d.lambdaConfig.Role
	if role == "" {
		return "", &ConfigMissingError{Key: "role", Source: d.resolver.LambdaConfigFilePath()}
	}
	if strings.HasPrefix(role, "arn:") {
		return role, nil
	}

	out, err := d.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(role)})
	if err != nil {
		return "", &ApiError{Op: "GetRole", Err: err}
	}
	return aws.ToString(out.Role.Arn), nil
}

// functionCode packages the lambda directory. The package is uploaded to S3 when the
// lambda config names a bucket, otherwise it is sent inline.
func (d *Deployer) functionCode(ctx context.Context) (*lambdaTypes.FunctionCode, error) {
	zipped, err := BuildPackage(d.resolver.LambdaDir(), d.handlerExt)
	if err != nil {
		return nil, err
	}
	d.logger.Printf("Package built for %s, %d bytes", d.resolver.Name, len(zipped))

	bucket := d.lambdaConfig.S3Bucket
	if bucket == "" {
		return &lambdaTypes.FunctionCode{ZipFile: zipped}, nil
	}

	key := fmt.Sprintf("%s/%s.zip", d.FunctionName(), internal.CurrentTimestamp(d.timestampLayout))
	_, err = d.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(zipped),
	})
	if err != nil {
		return nil, &ApiError{Op: "PutObject", Err: err}
	}
	d.logger.Printf("Package uploaded to s3://%s/%s", bucket, key)

	return &lambdaTypes.FunctionCode{S3Bucket: aws.String(bucket), S3Key: aws.String(key)}, nil
}

func (d *Deployer) environment() (map[string]string, error) {
	dotEnv, err := LoadDotEnv(d.resolver.LambdaDir())
	if err != nil {
		return nil, err
	}
	return LambdaEnvironment(dotEnv, d.projectConfig.EnvironmentVariables), nil
}
