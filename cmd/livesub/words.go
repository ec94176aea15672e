package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/vocab"
	"github.com/spf13/cobra"
)

func newWordsCommand(ctx *commandContext) *cobra.Command {
	wordsCmd := &cobra.Command{
		Use:   "words",
		Short: "Manage the saved-word list",
	}
	wordsCmd.AddCommand(newWordsListCommand(ctx))
	wordsCmd.AddCommand(newWordsSaveCommand(ctx))
	wordsCmd.AddCommand(newWordsRemoveCommand(ctx))
	wordsCmd.AddCommand(newWordsClearCommand(ctx))
	return wordsCmd
}

func newWordsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show saved words, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openWords()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := store.Rows()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No saved words yet")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Word", "Translation", "Updated"}, wordRows(rows), nil))
			fmt.Fprintf(out, "%d saved\n", len(rows))
			return nil
		},
	}
}

func newWordsSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save WORD TRANSLATION",
		Short: "Save a word with its translation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openWords()
			if err != nil {
				return err
			}
			translation := strings.Join(args[1:], " ")
			if err := store.Save(args[0], translation); err != nil {
				return err
			}
			w, _ := store.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s = %s\n", w.Word, w.Translation)
			return nil
		},
	}
}

func newWordsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove WORD...",
		Aliases: []string{"rm"},
		Short:   "Remove saved words",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openWords()
			if err != nil {
				return err
			}
			byWord := make(map[string]vocab.Row)
			for _, row := range store.Rows() {
				byWord[row.Word] = row
			}
			var errs error
			for _, arg := range args {
				w, ok := store.Get(arg)
				if !ok {
					errs = errors.Join(errs, fmt.Errorf("%s is not saved", arg))
					continue
				}
				if err := byWord[w.Word].Remove(); err != nil {
					errs = errors.Join(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", w.Word)
			}
			return errs
		},
	}
}

func newWordsClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every saved word",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if !yes {
				return errors.New("refusing to clear saved words without --yes")
			}
			store, err := ctx.openWords()
			if err != nil {
				return err
			}
			n := store.Count()
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d words\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the list")
	return cmd
}

func wordRows(rows []vocab.Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{row.Word, row.Translation, row.UpdatedAt.Local().Format(time.DateTime)})
	}
	return out
}
