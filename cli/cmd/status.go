package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the deployed configuration of the lambda",
	Long:  "Command returns the configuration of the lambda as deployed in the environment",
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveOptions(cmd)
		awsCfg := initAwsCfg(opts)

		deployer, err := colly.NewDeployer(awsCfg, &colly.Config{Options: opts})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		out, err := deployer.GetFunction(context.Background())
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("Lambda %s is deployed in %s:\n\n", deployer.FunctionName(), deployer.Region())
		jb, err := json.MarshalIndent(out.Configuration, "", "  ")
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", string(jb))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
