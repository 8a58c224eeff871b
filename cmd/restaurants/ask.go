package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/imkonsowa/restaurant-qa/bootstrap"
	"github.com/imkonsowa/restaurant-qa/router"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *options) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			engine, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			return answer(cmd.Context(), engine.Router, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr(), explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print the routing decision and context to stderr")

	return cmd
}

func newChatCmd(opts *options) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Answer questions read from stdin, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			engine, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			return chat(cmd.Context(), engine.Router, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print the routing decision and context to stderr")

	return cmd
}

func chat(ctx context.Context, r *router.Router, in io.Reader, out, errOut io.Writer, explain bool) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		if err := answer(ctx, r, question, out, errOut, explain); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
		}
		fmt.Fprint(out, "> ")
	}

	return scanner.Err()
}

// answer streams the answer to out.
func answer(ctx context.Context, r *router.Router, question string, out, errOut io.Writer, explain bool) error {
	if explain {
		res, err := r.Prepare(ctx, question)
		if err == nil {
			fmt.Fprintf(errOut, "path: %s\nintent: %s\ncontext:\n%s\n\n", res.Path, res.Descriptor, res.Context)
		}
	}

	_, err := r.AnswerStream(ctx, question, func(_ context.Context, chunk []byte) error {
		_, err := out.Write(chunk)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)

	return nil
}
