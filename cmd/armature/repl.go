package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive AR script console",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	st, err := buildStack(0)
	if err != nil {
		return err
	}
	defer st.close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "armature console. (ar-init) starts a session; ctrl-d exits.")

	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending strings.Builder
	depth := 0
	for {
		if pending.Len() == 0 {
			fmt.Fprint(out, "ar> ")
		} else {
			fmt.Fprint(out, "..> ")
		}
		if !sc.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := sc.Text()
		if pending.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
		}

		pending.WriteString(line)
		pending.WriteString("\n")
		depth += parenBalance(line)
		if depth > 0 {
			// Open forms continue on the next line.
			continue
		}

		source := pending.String()
		pending.Reset()
		depth = 0

		result, evalErrs, err := st.console.Eval(source)
		if err != nil {
			fmt.Fprintf(out, "fatal: %v\n", err)
			continue
		}
		for _, e := range evalErrs {
			fmt.Fprintf(out, "error: %s\n", e.Error())
		}
		if len(evalErrs) == 0 && result != "" {
			fmt.Fprintln(out, result)
		}
	}
	return sc.Err()
}

// parenBalance counts unclosed parens and brackets outside string
// literals and comments.
func parenBalance(line string) int {
	depth := 0
	inString := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ';':
			return depth
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
	}
	return depth
}
