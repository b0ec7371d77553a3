package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daarxwalker/revmig"
)

func newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade [target]",
		Short: "Apply pending steps up to the target revision (default head)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := revmig.Head
			if len(args) == 1 {
				target = args[0]
			}
			engine, closePool, newErr := newEngine(cmd)
			if newErr != nil {
				return newErr
			}
			defer closePool()
			return engine.Upgrade(cmd.Context(), target)
		},
	}
}

func newDowngradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade <target>",
		Short: "Revert applied steps down to the target revision (base reverts all)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closePool, newErr := newEngine(cmd)
			if newErr != nil {
				return newErr
			}
			defer closePool()
			warnings, downgradeErr := engine.Downgrade(cmd.Context(), args[0])
			for _, warning := range warnings {
				color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "⚠️ %s\n", warning)
			}
			return downgradeErr
		},
	}
}

func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the applied head revision of each branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closePool, newErr := newEngine(cmd)
			if newErr != nil {
				return newErr
			}
			defer closePool()
			heads, currentErr := engine.Current(cmd.Context())
			if currentErr != nil {
				return currentErr
			}
			if len(heads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(base)")
				return nil
			}
			for _, head := range heads {
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), head)
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the chain in execution order with applied status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closePool, newErr := newEngine(cmd)
			if newErr != nil {
				return newErr
			}
			defer closePool()
			entries, historyErr := engine.History(cmd.Context())
			if historyErr != nil {
				return historyErr
			}
			applied := color.New(color.FgGreen)
			pending := color.New(color.Faint)
			for entry := range entries {
				branch := entry.Branch
				if branch == "" {
					branch = "default"
				}
				if entry.Applied {
					applied.Fprintf(
						cmd.OutOrStdout(), "✅ %s  %s  applied %s\n",
						entry.Step.Revision, branch, entry.AppliedAt.Format("2006-01-02 15:04:05"),
					)
					continue
				}
				pending.Fprintf(cmd.OutOrStdout(), "·  %s  %s  pending\n", entry.Step.Revision, branch)
			}
			return nil
		},
	}
}
