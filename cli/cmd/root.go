package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/silinternational/colly"
)

var (
	env        string
	name       string
	projectDir string
	Profile    string
	Region     string
	useBastion bool

	// The following vars are updated by build process

	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// optionFlags maps CLI flag names to option keys
var optionFlags = map[string]string{
	"env":         colly.OptEnv,
	"name":        colly.OptName,
	"project-dir": colly.OptProjectDir,
	"profile":     colly.OptAwsProfile,
	"region":      colly.OptRegion,
	"use-bastion": colly.OptUseBastion,
	"event":       colly.OptEvent,
	"context":     colly.OptContext,
	"local":       colly.OptLocal,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "colly",
	Short: "Deploy and run AWS Lambda functions from a colly project",
	Long: `A CLI for deploying AWS Lambda functions described by a colly project directory and
running them either locally or in AWS, per environment (live, test, ...)`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", colly.DefaultEnv, "Environment to use (live, test, ...)")
	rootCmd.PersistentFlags().StringVarP(&name, "name", "n", "", "Name of the lambda, as the directory name in the project")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "d", ".", "Project directory")
	rootCmd.PersistentFlags().StringVarP(&Profile, "profile", "p", "", "AWS shared credentials profile to use")
	rootCmd.PersistentFlags().StringVarP(&Region, "region", "r", "", "AWS region, overrides the lambda and project config")
	rootCmd.PersistentFlags().BoolVar(&useBastion, "use-bastion", false, "Assume the bastion role from the project config")
}

// resolveOptions projects the flags that were set, together with the environment and
// project config, into the runtime options.
func resolveOptions(cmd *cobra.Command) colly.Options {
	cli := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := optionFlags[f.Name]; ok {
			cli[key] = f.Value.String()
		}
	})

	opts, err := colly.SetOptions(cli)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return opts
}

func initAwsCfg(opts colly.Options) aws.Config {
	pc, err := colly.NewResolver(opts, "").ProjectConfig()
	if err != nil && opts.UseBastion {
		fmt.Printf("unable to read bastion settings: %s\n", err)
		os.Exit(1)
	}

	cfg, err := colly.Authenticate(context.Background(), opts, pc)
	if err != nil {
		fmt.Printf("failed to authenticate with profile %q: %s\n", opts.AwsProfile, err)
		os.Exit(1)
	}
	return cfg
}
