package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"promptmaster/internal/prompt"
	"promptmaster/internal/service/ai"
)

var (
	askMode  string
	askStyle string
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog := prompt.Default()
		mode, err := prompt.ParseMode(askMode)
		if err != nil {
			return err
		}
		style, err := catalog.DefaultStyle(mode)
		if err != nil {
			return err
		}
		if askStyle != "" {
			if style, err = prompt.ParseStyle(askStyle); err != nil {
				return err
			}
			if _, err := catalog.Lookup(mode, style); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		provider, provCfg := cfg.ActiveProvider()
		backend, models, err := ai.NewBackend(ctx, provider, provCfg)
		if err != nil {
			return err
		}
		dispatcher := ai.NewDispatcher(catalog, backend, models)
		res := dispatcher.Dispatch(ctx, strings.Join(args, " "), mode, style)
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		if res.Err != nil {
			return res.Err
		}
		return nil
	},
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List modes and their styles",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := prompt.Default()
		out := cmd.OutOrStdout()
		for _, mode := range catalog.Modes() {
			label, desc := catalog.ModeLabel(mode)
			fmt.Fprintf(out, "%s  %s (%s)\n", mode, label, desc)
			for _, style := range catalog.StylesFor(mode) {
				cfg, err := catalog.Lookup(mode, style)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-16s %s: %s\n", style, cfg.Label, cfg.Description)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", string(prompt.Default().Modes()[0]), "Q_AND_A, SUMMARIZER or CREATIVE")
	askCmd.Flags().StringVar(&askStyle, "style", "", "style of the mode (default: first style)")
}
