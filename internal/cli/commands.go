package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/specialistvlad/rendergraph/internal/applier"
)

func newApplyCommand(o *options) *cobra.Command {
	var (
		root   string
		mode   string
		dump   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "apply <document>...",
		Short: "Apply the task reachable from a root node to the scene",
		Example: `  rendergraph apply shot010.hcl --root viewer
  rendergraph apply 'shots/**/*.hcl' --root beauty --mode render --dump yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := applier.ParseMode(mode)
			if err != nil {
				return usageError(err)
			}
			if err := checkFormat(dump, sceneFormats); err != nil {
				return usageError(err)
			}
			a, err := o.newApp(cmd, args, m, dryRun)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			out, err := a.Apply(cmd.Context(), root)
			if err != nil {
				return passError(fmt.Errorf("pass from %q failed: %w", root, err))
			}
			printOutcome(cmd.OutOrStdout(), out)
			if dump == "" {
				return nil
			}
			return dumpScene(cmd.OutOrStdout(), a.Store(), dump)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&root, "root", "r", "", "name of the node to start from (task, viewer or any linked node)")
	f.StringVarP(&mode, "mode", "m", string(applier.Viewer), "viewer or render")
	f.StringVar(&dump, "dump", "", "print the resulting scene as yaml, json or hcl")
	f.BoolVar(&dryRun, "dry-run", false, "count changes without writing them")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func newQueueCommand(o *options) *cobra.Command {
	var (
		list string
		dump string
	)
	cmd := &cobra.Command{
		Use:   "queue <document>...",
		Short: "Apply every task of a render list in render mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(dump, sceneFormats); err != nil {
				return usageError(err)
			}
			a, err := o.newApp(cmd, args, applier.Render, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			items, err := a.Queue(cmd.Context(), list)
			if err != nil {
				return passError(err)
			}
			w := cmd.OutOrStdout()
			failed := 0
			for _, item := range items {
				if item.Err != nil {
					failed++
					fmt.Fprintf(w, "task %s: failed: %v\n", item.Task, item.Err)
					continue
				}
				printOutcome(w, item.Outcome)
			}
			if dump != "" {
				if err := dumpScene(w, a.Store(), dump); err != nil {
					return err
				}
			}
			if failed > 0 {
				return passError(fmt.Errorf("%d of %d tasks in %q failed", failed, len(items), list))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&list, "list", "l", "", "name of the render list node")
	cmd.Flags().StringVar(&dump, "dump", "", "print the resulting scene as yaml, json or hcl")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func newWatchCommand(o *options) *cobra.Command {
	var (
		root       string
		statusPort int
		debounce   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <document>...",
		Short: "Re-apply a root in viewer mode whenever the documents change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("status-port") {
				o.prefs.Watch.StatusPort = statusPort
			}
			if cmd.Flags().Changed("debounce") {
				o.prefs.Watch.Debounce = debounce
			}
			a, err := o.newApp(cmd, args, applier.Viewer, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())
			if err := a.Watch(cmd.Context(), root); err != nil {
				return passError(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&root, "root", "r", "", "name of the node to start from")
	f.IntVar(&statusPort, "status-port", 0, "serve /health and /status on this port; 0 disables")
	f.DurationVar(&debounce, "debounce", 0, "quiet period before a change triggers a refresh")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func newInspectCommand(o *options) *cobra.Command {
	var (
		root   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "inspect <document>...",
		Short: "Print the task data a root resolves to without applying it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, dataFormats); err != nil {
				return usageError(err)
			}
			a, err := o.newApp(cmd, args, applier.Viewer, true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			plan, err := a.Inspect(cmd.Context(), root)
			if err != nil {
				return passError(fmt.Errorf("resolving %q failed: %w", root, err))
			}
			return encode(cmd.OutOrStdout(), newPlanView(plan, a.Tree()), format)
		},
	}
	cmd.Flags().StringVarP(&root, "root", "r", "", "name of the node to start from")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}
