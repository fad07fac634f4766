package colly

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type identityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// LoadAwsConfig loads the default AWS config for the given profile and region.
func LoadAwsConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var cfgOpts []func(options *config.LoadOptions) error

	if profile != "" {
		cfgOpts = append(cfgOpts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config with profile %q: %w", profile, err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return cfg, nil
}

// AssumeBastionRole returns a copy of cfg whose credentials come from assuming the
// bastion role.
func AssumeBastionRole(cfg aws.Config, bastion *BastionConfig) (aws.Config, error) {
	if bastion == nil || bastion.RoleArn == "" {
		return aws.Config{}, &ConfigMissingError{Key: "bastion.roleArn", Source: "project config"}
	}

	sessionName := bastion.SessionName
	if sessionName == "" {
		sessionName = DefaultSessionName
	}

	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), bastion.RoleArn,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionName
			if bastion.ExternalID != "" {
				o.ExternalID = aws.String(bastion.ExternalID)
			}
		})

	assumed := cfg.Copy()
	assumed.Credentials = aws.NewCredentialsCache(provider)
	return assumed, nil
}

// Authenticate builds the AWS config for opts, assuming the bastion role when requested,
// and confirms the credentials with a caller identity check.
func Authenticate(ctx context.Context, opts Options, pc *ProjectConfig) (aws.Config, error) {
	cfg, err := LoadAwsConfig(ctx, opts.AwsProfile, opts.Region)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.UseBastion {
		var bastion *BastionConfig
		if pc != nil {
			bastion = pc.Bastion
		}
		if cfg, err = AssumeBastionRole(cfg, bastion); err != nil {
			return aws.Config{}, err
		}
	}

	if err := checkIdentity(ctx, sts.NewFromConfig(cfg)); err != nil {
		return aws.Config{}, err
	}
	return cfg, nil
}

func checkIdentity(ctx context.Context, client identityAPI) error {
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return &ApiError{Op: "GetCallerIdentity", Err: err}
	}
	return nil
}
