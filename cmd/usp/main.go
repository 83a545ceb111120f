package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	gositemaptree "github.com/enot-style/go-sitemap-tree"
	"github.com/spf13/cobra"
)

const (
	formatTabTree = "tabtree"
	formatPages   = "pages"
)

func main() {
	root := &cobra.Command{
		Use:           "usp",
		Short:         "Discover and inspect website sitemap trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLsCommand() *cobra.Command {
	var (
		format       string
		noRobots     bool
		noKnownPaths bool
		stripPrefix  bool
		verbosity    int
		logFile      string
	)

	cmd := &cobra.Command{
		Use:   "ls URL",
		Short: "Fetch a site's sitemap tree and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatTabTree && format != formatPages {
				return fmt.Errorf("invalid format %q (use %s or %s)", format, formatTabTree, formatPages)
			}

			logger, closeLog, err := buildLogger(verbosity, logFile)
			if err != nil {
				return err
			}
			defer closeLog()

			builder := gositemaptree.New(gositemaptree.Options{
				SkipRobotsTxt:  noRobots,
				SkipKnownPaths: noKnownPaths,
				Logger:         logger,
			})
			tree, err := builder.TreeForHomepage(context.Background(), args[0])
			if err != nil {
				return err
			}
			defer tree.Close()

			strip := func(u string) string { return u }
			if stripPrefix {
				prefix := strings.TrimSuffix(tree.URL(), "/")
				strip = func(u string) string {
					return strings.TrimPrefix(u, prefix)
				}
			}

			out := cmd.OutOrStdout()
			if format == formatPages {
				return gositemaptree.AllPages(tree, func(page gositemaptree.Page) error {
					_, err := fmt.Fprintln(out, strip(page.URL))
					return err
				})
			}
			printTabTree(out, tree, 0, strip)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", formatTabTree, "Output format (tabtree or pages)")
	flags.BoolVarP(&noRobots, "no-robots", "r", false, "Do not discover sitemaps through robots.txt")
	flags.BoolVarP(&noKnownPaths, "no-known-paths", "k", false, "Do not probe well-known sitemap paths")
	flags.BoolVarP(&stripPrefix, "strip-prefix", "u", false, "Strip the homepage URL prefix from output")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.StringVarP(&logFile, "log-file", "l", "", "Write logs to this file instead of stderr")
	return cmd
}

func printTabTree(w io.Writer, s gositemaptree.Sitemap, depth int, strip func(string) string) {
	label := strip(s.URL())
	if invalid, ok := s.(*gositemaptree.InvalidSitemap); ok {
		label += " (invalid: " + invalid.Reason() + ")"
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("\t", depth), label)
	for _, sub := range s.SubSitemaps() {
		printTabTree(w, sub, depth+1, strip)
	}
}

func buildLogger(verbosity int, logFile string) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	switch {
	case verbosity == 1:
		level = slog.LevelInfo
	case verbosity >= 2:
		level = slog.LevelDebug
	}

	writer := io.Writer(os.Stderr)
	closeLog := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writer = file
		closeLog = func() { _ = file.Close() }
	}
	return slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})), closeLog, nil
}
