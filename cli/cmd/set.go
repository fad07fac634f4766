package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <key.path> <value>",
	Short: "Set a value in the lambda's function.json",
	Long: `Sets the value at a dot separated key path in the lambda's function.json, creating nested
objects as needed. Values that parse as JSON are stored as such, anything else as a string`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		opts := resolveOptions(cmd)

		var value interface{}
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}

		resolver := colly.NewResolver(opts, "")
		if err := resolver.AddValueToLambdaConfig(args[0], value); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Printf("Set %s in %s\n", args[0], resolver.LambdaConfigFilePath())
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
