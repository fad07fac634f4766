package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/silinternational/colly"
)

// envsCmd represents the envs command
var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List the environments configured in the project",
	Long:  "Command returns each environment name along with its config file and the lambda name used in it",
	Run: func(cmd *cobra.Command, args []string) {
		listEnvs(resolveOptions(cmd))
	},
}

func init() {
	rootCmd.AddCommand(envsCmd)
}

func listEnvs(opts colly.Options) {
	files, err := colly.ListEnvFiles(opts.ProjectDir)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	envs := make([]string, 0, len(files))
	for e := range files {
		envs = append(envs, e)
	}
	sort.Strings(envs)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "Environment \t Config File \t Lambda Name")

	for _, e := range envs {
		lambdaName := "-"
		if opts.Name != "" {
			lambdaName = (&colly.Resolver{Env: e}).LambdaName(opts.Name)
		}
		_, _ = fmt.Fprintf(w, "%s \t %s \t %s\n", e, files[e], lambdaName)
	}
	_ = w.Flush()
	fmt.Println("")
}
