package main

import (
	"errors"
	"fmt"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/livesub"
	"github.com/harunnryd/livesub/pkg/vocab"
	"github.com/spf13/cobra"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var from string
	var to string
	var save bool

	cmd := &cobra.Command{
		Use:   "translate WORD...",
		Short: "Look up words the way a tapped caption word is looked up",
		Long: "Translates each word (normalized like a tapped caption word) and reports\n" +
			"whether it can be added to the saved-word list. Requests are spaced at\n" +
			"translation.min_interval and repeated words are served from the cache.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if from != "" {
				cfg.Translation.Source = from
			}
			if to != "" {
				cfg.Translation.Target = to
			}
			obs, err := ctx.observability()
			if err != nil {
				return err
			}
			tr, err := livesub.BuildTranslator(cfg, ctx.registry(nil), obs.Observer, ctx.logger)
			if err != nil {
				return err
			}
			words, err := ctx.openWords()
			if err != nil {
				return err
			}
			lookup := vocab.NewLookup(tr, words)

			rows := make([][]string, 0, len(args))
			for _, arg := range args {
				for _, tok := range wordsOf(arg) {
					p := lookup.Show(cmd.Context(), tok)
					if save && p.State == vocab.CanSave {
						saved, err := lookup.Save(p)
						if err != nil && !errors.Is(err, vocab.ErrAlreadySaved) {
							return fmt.Errorf("save %q: %w", p.Word, err)
						}
						p = saved
					}
					rows = append(rows, []string{p.Word, p.Translation, string(p.State)})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Word", "Translation", "Saved"}, rows, nil))
			stats := tr.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "requests=%d cache_hits=%d cached=%d/%d\n", stats.Requests, stats.Hits, stats.Size, stats.MaxSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source language code, or auto")
	cmd.Flags().StringVar(&to, "to", "", "Target language code")
	cmd.Flags().BoolVar(&save, "save", false, "Save words that have a usable translation")
	return cmd
}

// wordsOf splits arg into tappable words; a bare word maps to itself.
func wordsOf(arg string) []string {
	tokens := caption.Tokens(arg)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Key != "" {
			out = append(out, t.Key)
		}
	}
	return out
}
