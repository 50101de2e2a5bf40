package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/config"
	"ingest-router/internal/distribution"
	"ingest-router/internal/localization"
	"ingest-router/internal/notification"
)

func checkCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load both configuration trees and report problems without starting",
		Long: `Loads distribution patterns and notification rules from LOCALIZATION_ROOTS,
registers DISTRIBUTION_ROUTES and prints what was accepted and rejected.
Nothing is connected or delivered.

Exits non-zero when a required plugin has no patterns or a notification
rule was rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Check(cfg(), cmd.OutOrStdout(), logging.GetGlobalLogger())
		},
	}
}

// plannedTransport answers Supports from configuration alone so rules are
// checked against the brokers serve would connect.
type plannedTransport struct {
	rabbitmq bool
	redis    bool
}

func (p plannedTransport) Supports(t notification.EndpointType) bool {
	switch t {
	case notification.Direct:
		return true
	case notification.Queue, notification.Topic:
		return p.rabbitmq
	case notification.Broadcast:
		return p.redis
	}
	return false
}

func (p plannedTransport) Deliver(ctx context.Context, rule *notification.Rule, payload []byte) error {
	return errors.ValidationError("check does not deliver notifications")
}

// Check loads the configuration trees named by cfg and writes a report to
// out.
func Check(cfg *config.Config, out io.Writer, logger logging.Logger) error {
	source, err := localization.NewPathManager(cfg.LocalizationRoots...)
	if err != nil {
		return errors.ConfigError("invalid LOCALIZATION_ROOTS: " + err.Error())
	}

	problems := 0

	patterns := distribution.NewRegistry(source, logger, nil)
	if err := patterns.Refresh(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Localization roots: %s\n\n", strings.Join(source.Roots(), ", "))
	fmt.Fprintln(out, "Distribution plugins:")
	for _, set := range patterns.Plugins() {
		fmt.Fprintf(out, "  %s: %d inclusions, %d exclusions\n", set.Plugin, len(set.Inclusions), len(set.Exclusions))
	}

	router := distribution.NewRouter(patterns, logger, nil)
	fmt.Fprintln(out, "\nDistribution routes:")
	for _, route := range cfg.Routes() {
		if err := router.Register(route.Plugin, route.Destination, route.Required); err != nil {
			fmt.Fprintf(out, "  %s -> %s: %v\n", route.Plugin, route.Destination, err)
			problems++
			continue
		}
		status := "ok"
		if !patterns.HasPatternsForPlugin(route.Plugin) {
			status = "no patterns, will never match"
		}
		fmt.Fprintf(out, "  %s -> %s: %s\n", route.Plugin, route.Destination, status)
	}

	transport := plannedTransport{rabbitmq: cfg.RabbitMQURL != "", redis: cfg.RedisAddress != ""}
	notifier, err := notification.NewNotifier(source, transport, logger, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\nNotification endpoints:")
	for _, rule := range notifier.Endpoints() {
		scope := "filtered"
		if rule.ReceiveAll() {
			scope = "receive-all"
		}
		fmt.Fprintf(out, "  %s (%s, %s, %s) from %s\n", rule.EndpointName, rule.EndpointType, rule.Format, scope, rule.Source)
	}

	rejections := notifier.Rejections()
	if len(rejections) > 0 {
		fmt.Fprintln(out, "\nRejected notification rules:")
		for _, r := range rejections {
			fmt.Fprintf(out, "  %s #%d %s: %s\n", r.File, r.Index, r.Endpoint, r.Reason)
		}
		problems += len(rejections)
	}

	if problems > 0 {
		return errors.ConfigError(fmt.Sprintf("configuration check found %d problem(s)", problems))
	}
	fmt.Fprintln(out, "\nConfiguration OK")
	return nil
}
