package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/structsync/structsync/internal/executor"
	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

// ---------- compare ----------

type compareFlags struct {
	sourceDB   string
	targetDB   string
	jsonOutput bool
	out        string
}

func (f *compareFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sourceDB, "source-db", "", "Source database (default: the profile's database)")
	cmd.Flags().StringVar(&f.targetDB, "target-db", "", "Target database (default: the profile's database)")
}

func (f compareFlags) request(source, target string) service.CompareRequest {
	return service.CompareRequest{
		SourceID: source,
		TargetID: target,
		SourceDB: f.sourceDB,
		TargetDB: f.targetDB,
	}
}

func newCompareCmd() *cobra.Command {
	var f compareFlags

	cmd := &cobra.Command{
		Use:     "compare <source> <target>",
		Aliases: []string{"diff"},
		Short:   "Compare two schemas and print the SQL that syncs the target",
		Long: `Read the schema behind both connection profiles and list every difference.
The generated SQL, in the target's dialect, makes the target match the source.
Nothing is executed; use 'structsync apply' for that.`,
		Example: `  structsync compare dev prod
  structsync compare dev prod --target-db shop_v2 --out sync.sql
  structsync compare dev prod --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.Compare(cmd.Context(), f.request(args[0], args[1]))
			if err != nil {
				return err
			}
			return writeResult(a, result, f.jsonOutput, f.out)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the full result as JSON")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the SQL script to a file")

	return cmd
}

// writeResult prints a comparison: JSON, or a summary table followed by the
// script. With out set the script goes to that file instead.
func writeResult(a *app, result *model.DiffResult, jsonOutput bool, out string) error {
	if jsonOutput {
		return printJSON(result)
	}

	printSummary(os.Stdout, result)
	script := result.Script()
	if script == "" {
		return nil
	}
	if out != "" {
		if err := a.svc.SaveSQLFile(out, script); err != nil {
			return err
		}
		fmt.Printf("\nWrote %d statement group(s) to %s\n", len(result.SelectedSQL()), out)
		return nil
	}
	fmt.Println()
	fmt.Print(script)
	return nil
}

func printSummary(w io.Writer, result *model.DiffResult) {
	fmt.Fprintf(w, "Source tables: %d, target tables: %d\n", result.SourceTables, result.TargetTables)
	if len(result.Items) == 0 {
		fmt.Fprintln(w, "Schemas are in sync.")
		return
	}
	fmt.Fprintf(w, "%d difference(s):\n\n", len(result.Items))
	fmt.Fprintf(w, "%-4s  %-27s %-24s %s\n", "ID", "TYPE", "TABLE", "OBJECT")
	for _, item := range result.Items {
		object := ""
		if item.ObjectName != nil {
			object = *item.ObjectName
		}
		mark := ""
		if !item.Selected {
			mark = " (excluded)"
		}
		fmt.Fprintf(w, "%-4s  %-27s %-24s %s%s\n", item.ID, item.DiffType, item.TableName, object, mark)
	}
}

// ---------- apply ----------

func newApplyCmd() *cobra.Command {
	var (
		f       compareFlags
		exclude []string
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "apply <source> <target>",
		Short: "Compare two schemas and execute the sync SQL on the target",
		Long: `Compare the schemas, then run the generated statements on the target in order.
Execution stops at the first failing statement. Statements that already ran
stay applied; there is no transaction around the script.`,
		Example: `  structsync apply dev staging
  structsync apply dev staging --exclude 3,7 --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			req := f.request(args[0], args[1])
			result, err := a.svc.Compare(ctx, req)
			if err != nil {
				return err
			}
			if n := result.Deselect(exclude...); n > 0 {
				a.logger.Info("excluded differences", "count", n)
			}

			printSummary(os.Stdout, result)
			stmts := result.SelectedSQL()
			if len(stmts) == 0 {
				return nil
			}
			fmt.Println()
			fmt.Print(result.Script())

			if !yes {
				ok, err := confirm(os.Stdin, os.Stdout, fmt.Sprintf("\nExecute on %q? [y/N] ", args[1]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}

			n, err := a.svc.Execute(ctx, service.ExecuteRequest{
				TargetID:   req.TargetID,
				TargetDB:   req.TargetDB,
				Statements: stmts,
			})
			var stmtErr *executor.StatementError
			if errors.As(err, &stmtErr) {
				fmt.Fprintf(os.Stderr, "statement %d failed:\n%s\n", stmtErr.Index, stmtErr.SQL)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Sync completed: %d statement(s) executed.\n", n)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Difference IDs to skip")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
