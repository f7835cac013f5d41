package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// runEvalTimeout bounds a whole script file, which may download
// several models.
const runEvalTimeout = 5 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Evaluate an AR script file",
	Long: `Evaluates a script file as a single form sequence against a
fresh session and prints the value of the last form. Script errors
report the source line when the interpreter provides one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := buildStack(runEvalTimeout)
		if err != nil {
			return err
		}
		defer st.close()

		result, evalErrs, err := st.console.EvalFile(args[0])
		if err != nil {
			return err
		}
		if len(evalErrs) > 0 {
			for _, e := range evalErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Error())
			}
			return fmt.Errorf("%s: script failed", filepath.Base(args[0]))
		}
		if result != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result)
		}
		return nil
	},
}
