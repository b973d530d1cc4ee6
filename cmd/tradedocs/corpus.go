package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tradedocs/internal/app"
	"github.com/joseph-ayodele/tradedocs/internal/chat"
)

func indexCmd(c *cli) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or load the reference corpus index",
		Long: `Loads the index from INDEX_DIR when it exists; otherwise reads every
document from CORPUS_DIR (or CORPUS_GCS_BUCKET), chunks it and writes the
index. --rebuild discards the existing index first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, built, err := app.OpenCorpus(cmd.Context(), c.cfg.Corpus, rebuild, c.logger)
			if err != nil {
				return err
			}
			if idx == nil {
				return errors.New("no corpus configured: set CORPUS_DIR or CORPUS_GCS_BUCKET")
			}
			action := "loaded"
			if built {
				action = "built"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s index at %s: %d chunks\n", action, c.cfg.Corpus.IndexDir, len(idx.Chunks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the existing index and rebuild it")
	return cmd
}

func chatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the trade-document assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gen, closeGen, err := app.NewGenerator(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer closeQuietly(c.logger, "generator", closeGen)

			idx, _, err := app.OpenCorpus(ctx, c.cfg.Corpus, false, c.logger)
			if err != nil {
				return err
			}
			var retriever chat.Retriever
			if idx != nil {
				retriever = idx
			}
			svc := chat.NewService(gen, retriever, c.cfg.Corpus.TopK, c.logger)
			reply, err := svc.Reply(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
			if len(reply.Sources) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nsources: %s\n", strings.Join(reply.Sources, ", "))
			}
			return nil
		},
	}
}
