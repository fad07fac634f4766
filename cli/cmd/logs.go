package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

var since time.Duration

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print recent CloudWatch log events of the deployed lambda",
	Long:  "",
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveOptions(cmd)
		awsCfg := initAwsCfg(opts)

		tailer, err := colly.NewLogTailer(awsCfg, &colly.Config{Options: opts})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		n, err := tailer.Tail(context.Background(), since)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if n == 0 {
			fmt.Printf("No log events in %s since %s ago\n", tailer.LogGroupName(), since)
		}
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().DurationVar(&since, "since", colly.DefaultLogsSince, "How far back to read log events")
}
