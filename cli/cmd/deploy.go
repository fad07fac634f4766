package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

var waitTimeout int

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create or update the lambda in AWS",
	Long:  "Creates the lambda for the environment if it does not exist yet, otherwise updates its code",
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveOptions(cmd)
		awsCfg := initAwsCfg(opts)

		deployer, err := colly.NewDeployer(awsCfg, &colly.Config{
			Options:     opts,
			WaitTimeout: time.Duration(waitTimeout) * time.Second,
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		if err := deployer.Deploy(context.Background()); err != nil {
			fmt.Printf("Error deploying lambda: %s\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().IntVar(&waitTimeout, "wait-timeout-seconds",
		int(colly.DefaultWaitTimeout.Seconds()), "Number of seconds to wait for the lambda to become ready.")
}
