package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-story-service/pkg/httpclient"
)

type options struct {
	server  string
	tenant  string
	timeout time.Duration
}

// client returns a resty client rooted at the tenant's stories collection.
func (o *options) client() (*resty.Client, error) {
	if strings.TrimSpace(o.tenant) == "" {
		return nil, fmt.Errorf("--tenant is required")
	}
	base := strings.TrimRight(o.server, "/") + "/api/v1/tenants/" + url.PathEscape(o.tenant) + "/stories"
	return httpclient.NewRestyHTTPClient(httpclient.Options{
		Timeout:   o.timeout,
		UserAgent: "storyctl",
		BaseURL:   base,
	}), nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Operate on stories through the story service API",
		Long: `storyctl talks to a running story service.

Example usage:
  storyctl find --tenant news --url https://example.com/a
  storyctl close --tenant news s1
  storyctl merge --tenant news dst src1 src2
  storyctl remove --tenant news --include-comments s1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("STORYCTL_SERVER", "http://localhost:8080"), "story service base url")
	root.PersistentFlags().StringVar(&opts.tenant, "tenant", os.Getenv("STORYCTL_TENANT"), "tenant id")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newFindCmd(opts),
		newFindOrCreateCmd(opts),
		newStateCmd(opts, "open", "Reopen commenting on a story"),
		newStateCmd(opts, "close", "Close commenting on a story"),
		newRemoveCmd(opts),
		newMergeCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newFindCmd(opts *options) *cobra.Command {
	var id, storyURL string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Look a story up by id or url",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" && storyURL == "" {
				return fmt.Errorf("--id or --url is required")
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.R().
				SetContext(cmd.Context()).
				SetQueryParams(map[string]string{"id": id, "url": storyURL}).
				Get("")
			return printResponse(cmd, resp, err)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "story id")
	cmd.Flags().StringVar(&storyURL, "url", "", "story url")
	return cmd
}

func newFindOrCreateCmd(opts *options) *cobra.Command {
	var id, storyURL string
	cmd := &cobra.Command{
		Use:   "find-or-create",
		Short: "Find a story, creating it when missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.R().
				SetContext(cmd.Context()).
				SetBody(map[string]string{"id": id, "url": storyURL}).
				Post("/find-or-create")
			return printResponse(cmd, resp, err)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "story id")
	cmd.Flags().StringVar(&storyURL, "url", "", "story url")
	return cmd
}

func newStateCmd(opts *options, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <story-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.R().
				SetContext(cmd.Context()).
				Post("/" + url.PathEscape(args[0]) + "/" + action)
			return printResponse(cmd, resp, err)
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	var includeComments bool
	cmd := &cobra.Command{
		Use:   "remove <story-id>",
		Short: "Remove a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.R().
				SetContext(cmd.Context()).
				SetQueryParam("includeComments", strconv.FormatBool(includeComments)).
				Delete("/" + url.PathEscape(args[0]))
			return printResponse(cmd, resp, err)
		},
	}
	cmd.Flags().BoolVar(&includeComments, "include-comments", false, "also delete the story's comments and actions")
	return cmd
}

func newMergeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <destination-id> <source-id>...",
		Short: "Merge source stories into a destination story",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.R().
				SetContext(cmd.Context()).
				SetBody(map[string][]string{"source_ids": args[1:]}).
				Post("/" + url.PathEscape(args[0]) + "/merge")
			return printResponse(cmd, resp, err)
		},
	}
}

// printResponse writes the indented JSON body, failing on non-2xx statuses.
func printResponse(cmd *cobra.Command, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	body := resp.Body()
	var pretty any
	if json.Unmarshal(body, &pretty) == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			body = out
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))

	if resp.IsError() {
		return fmt.Errorf("server returned %s", resp.Status())
	}
	return nil
}
