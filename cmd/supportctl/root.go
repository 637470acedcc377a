package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/config"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client/adapter"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg     config.Client
	jsonOut bool
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "supportctl",
		Short:         "Customer support console and widget",
		Long:          "Work the support queue as an employee, or chat as a customer, against the support API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.String("api-url", "", "support API base URL (SUPPORT_API_URL)")
	f.String("ws-url", "", "push socket URL (SUPPORT_WS_URL)")
	f.String("token", "", "bearer token (SUPPORT_TOKEN)")
	f.String("role", "", "dev-mode role: EMP or CUSTOMER (SUPPORT_ROLE)")
	f.String("subject", "", "employee or customer id (SUPPORT_SUBJECT)")
	f.String("token-file", "", "guest token file (SUPPORT_TOKEN_FILE)")
	f.BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log client activity to stderr")

	cmd.AddCommand(newQueueCmd(a))
	cmd.AddCommand(newMineCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newClaimCmd(a))
	cmd.AddCommand(newReleaseCmd(a))
	cmd.AddCommand(newOpenCmd(a))
	cmd.AddCommand(newReplyCmd(a))
	cmd.AddCommand(newWidgetCmd(a))
	cmd.AddCommand(newTokenCmd(a))
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if v, _ := flags.GetString(name); v != "" {
			*dst = v
		}
	}
	override("api-url", &cfg.APIURL)
	override("ws-url", &cfg.WSURL)
	override("token", &cfg.Token)
	override("role", &cfg.Role)
	override("subject", &cfg.Subject)
	override("token-file", &cfg.TokenFile)
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Role = strings.ToUpper(cfg.Role)
	if cfg.TokenFile == "" {
		cfg.TokenFile = adapter.DefaultTokenPath()
	}
	a.cfg = cfg

	level := slog.LevelError
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) credentials() adapter.Credentials {
	return adapter.Credentials{Token: a.cfg.Token, Role: a.cfg.Role, Subject: a.cfg.Subject}
}

// options tunes the client for a terminal: there is no stale compose buffer to protect
// against, so sends are allowed right after open.
func (a *app) options() client.Options {
	o := client.DefaultOptions()
	o.PollInterval = a.cfg.PollInterval
	o.PageSize = a.cfg.PageSize
	o.MinOpenBeforeSend = 0
	o.Logger = a.logger
	return o
}

func (a *app) api() *adapter.APIClient {
	return adapter.NewAPIClient(a.cfg.APIURL, a.credentials(), nil)
}

func (a *app) push(ctx context.Context) *adapter.SocketPush {
	p := adapter.NewSocketPush(a.cfg.WSURL, a.credentials(), a.logger)
	p.Start(ctx)
	return p
}

// console starts an employee console. The returned func releases it.
func (a *app) console(ctx context.Context) (*client.Console, func(), error) {
	if a.cfg.Subject == "" {
		return nil, nil, errors.New("an employee id is required: pass --subject or set SUPPORT_SUBJECT")
	}
	if a.cfg.Token == "" && a.cfg.Role == "" {
		a.cfg.Role = "EMP"
	}
	push := a.push(ctx)
	c := client.NewConsole(a.api(), push, a.cfg.Subject, a.options())
	closeFn := func() {
		c.Close()
		push.Close()
	}
	if err := c.Start(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return c, closeFn, nil
}

// widget starts a customer widget; without a customer id it runs as a guest.
func (a *app) widget(ctx context.Context) (*client.Widget, func(), error) {
	customerID := ""
	if a.cfg.Role == "CUSTOMER" || (a.cfg.Token != "" && a.cfg.Subject != "") {
		customerID = a.cfg.Subject
	}
	push := a.push(ctx)
	w := client.NewWidget(a.api(), push, adapter.NewFileTokenStore(a.cfg.TokenFile), customerID, a.options())
	closeFn := func() {
		w.Close()
		push.Close()
	}
	if err := w.Start(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return w, closeFn, nil
}
