package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

var (
	eventFile   string
	contextFile string
	local       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a lambda locally or invoke the deployed function",
	Long: `Runs the lambda handler in-process with the event and context fixtures when --local is set,
otherwise invokes the function deployed for the environment and prints its response and log tail`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveOptions(cmd)

		runner, err := colly.NewRunnerFromEnv(&colly.Config{Options: colly.Options{Region: opts.Region}})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if _, err := runner.Run(context.Background()); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&eventFile, "event", "", "Event fixture file, relative to the project directory")
	runCmd.Flags().StringVar(&contextFile, "context", "", "Context fixture file, relative to the project directory")
	runCmd.Flags().BoolVarP(&local, "local", "l", false, "Run the handler locally instead of invoking the deployed lambda")
}
