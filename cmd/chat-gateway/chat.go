package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/llm-chat-gateway/app"
	"github.com/upb/llm-chat-gateway/handlers"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/services/chat"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/utils"
)

type chatOptions struct {
	credential string
	model      string
	system     string
	noStream   bool
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one chat turn using a stored credential",
		Long: "Send one chat turn using a stored credential. The prompt is read from the\n" +
			"arguments, or from stdin when none are given. Answer text goes to stdout and\n" +
			"reasoning to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read prompt: %w", err)
				}
				prompt = strings.TrimSpace(string(data))
			}
			if prompt == "" {
				return fmt.Errorf("prompt is required")
			}

			ctx := cmd.Context()
			deps, err := bootstrap(ctx, root, "warn")
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			cred, err := loadCredential(ctx, deps, opts.credential)
			if err != nil {
				return err
			}

			req := chat.TurnRequest{
				Credential: cred,
				Model:      opts.model,
				System:     opts.system,
				Messages:   []providers.Message{{Role: providers.RoleUser, Content: prompt}},
			}
			if opts.noStream {
				return runTurn(ctx, deps, req, cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			return streamTurn(ctx, deps, req, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.credential, "credential", "", "credential ID")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override")
	cmd.Flags().StringVar(&opts.system, "system", "", "system prompt")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "wait for the full answer")
	_ = cmd.MarkFlagRequired("credential")
	return cmd
}

func streamTurn(ctx context.Context, deps *app.Dependencies, req chat.TurnRequest, stdout, stderr io.Writer) error {
	var turnErr error
	for ev := range deps.Chat.StreamTurn(ctx, req) {
		switch ev.Type {
		case chat.EventText:
			fmt.Fprint(stdout, ev.Text)
		case chat.EventReasoning:
			fmt.Fprint(stderr, ev.Text)
		case chat.EventError:
			turnErr = ev.Err
		}
	}
	fmt.Fprintln(stdout)

	if turnErr != nil {
		return fmt.Errorf("turn failed: %s", secrets.MaskAllSecrets(turnErr.Error()))
	}
	return nil
}

func runTurn(ctx context.Context, deps *app.Dependencies, req chat.TurnRequest, stdout, stderr io.Writer) error {
	res, err := deps.Chat.SendTurn(ctx, req)
	if err != nil {
		return fmt.Errorf("turn failed: %s", secrets.MaskAllSecrets(err.Error()))
	}
	if res.Reasoning != "" {
		fmt.Fprintln(stderr, res.Reasoning)
	}
	fmt.Fprintln(stdout, res.Content)
	return nil
}

type modelsOptions struct {
	credential string
	refresh    bool
	filter     string
}

func newModelsCmd(root *rootOptions) *cobra.Command {
	opts := &modelsOptions{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models a credential can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := bootstrap(ctx, root, "warn")
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			cred, err := loadCredential(ctx, deps, opts.credential)
			if err != nil {
				return err
			}

			list, err := deps.Chat.ListModels(ctx, cred, opts.refresh)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "model discovery failed, showing fallback list: %s\n",
					secrets.MaskAllSecrets(err.Error()))
				list = deps.Chat.FallbackModels(cred)
			}

			for _, m := range handlers.FilterModels(list, opts.filter) {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.credential, "credential", "", "credential ID")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the model cache")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "fuzzy filter")
	_ = cmd.MarkFlagRequired("credential")
	return cmd
}

func loadCredential(ctx context.Context, deps *app.Dependencies, raw string) (*models.ProviderCredential, error) {
	id, err := utils.ParseUUID(raw)
	if err != nil {
		return nil, err
	}
	cred, err := deps.Credentials.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", id, err)
	}
	return cred, nil
}
