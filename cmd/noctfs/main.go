// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"git.lukeshu.com/noctfs/lib/profile"
	"git.lukeshu.com/noctfs/lib/textui"
)

type logLevelFlag struct {
	logrus.Level
}

func (lvl *logLevelFlag) Type() string { return "loglevel" }
func (lvl *logLevelFlag) Set(str string) error {
	var err error
	lvl.Level, err = logrus.ParseLevel(str)
	return err
}

var _ pflag.Value = (*logLevelFlag)(nil)

// subcommand wraps a cobra.Command whose RunE receives a ready
// context (logging configured, profiling started/stopped around the
// call) instead of doing that setup itself.
type subcommand struct {
	cobra.Command
	RunE func(ctx context.Context, cmd *cobra.Command, args []string) error
}

var subcommands []subcommand

func main() {
	logLevel := logLevelFlag{Level: logrus.InfoLevel}

	argparser := &cobra.Command{
		Use:   "noctfs {[flags]|SUBCOMMAND}",
		Short: "Inspect and manipulate a NoctFS filesystem image",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true,
		SilenceUsage:  true,

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevel, "verbosity", "set the verbosity")
	stopProfile := profile.AddProfileFlags(argparser.PersistentFlags(), "")

	for _, child := range subcommands {
		cmd := child.Command
		runE := child.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logrus.New()
			logger.SetLevel(logLevel.Level)
			ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: true,
			})
			grp.Go("main", func(ctx context.Context) error {
				return runE(ctx, cmd, args)
			})
			return grp.Wait()
		}
		argparser.AddCommand(&cmd)
	}

	err := argparser.ExecuteContext(context.Background())
	if stopErr := stopProfile(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
