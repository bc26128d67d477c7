// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process sets up the command line environment of depositcore
// binaries: configuration from flags, environment and a config file,
// logging, and the debug endpoint.
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/boxc/depositcore/internal/errs2"
	"github.com/boxc/depositcore/pkg/cfgstruct"
)

// EnvPrefix prefixes environment variables overriding flags, so that
// --deposits.idle-timeout may be set with DEPOSITCORE_DEPOSITS_IDLE_TIMEOUT.
const EnvPrefix = "depositcore"

var mon = monkit.Package()

var (
	// Error is a process error class
	Error = errs.Class("process error")

	contexts = struct {
		mu sync.Mutex
		m  map[*cobra.Command]context.Context
	}{m: map[*cobra.Command]context.Context{}}
)

// Bind sets flags on a command that match the configuration struct
// 'config'. It ensures that the config has all of the values loaded into it
// when the command runs.
func Bind(cmd *cobra.Command, config interface{}, opts ...cfgstruct.BindOpt) {
	cfgstruct.Bind(cmd.Flags(), config, opts...)
}

// Exec runs a cobra command. If "config-file" is set as a persistent flag,
// the file is loaded before the command runs.
func Exec(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config-file", "", "configuration file (yaml or json)")
	cmd.PersistentFlags().AddFlagSet(logFlags)
	cmd.PersistentFlags().AddFlagSet(debugFlags)

	cleanup(cmd)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Ctx returns the context of a running command, canceled on SIGINT and
// SIGTERM.
func Ctx(cmd *cobra.Command) context.Context {
	contexts.mu.Lock()
	defer contexts.mu.Unlock()
	for c := cmd; c != nil; c = c.Parent() {
		if ctx := contexts.m[c]; ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// Viper returns a viper instance holding the flags of cmd overlaid with the
// environment and the config file.
func Viper(cmd *cobra.Command) (*viper.Viper, error) {
	vip := viper.New()
	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	if flag := cmd.Flags().Lookup("config-file"); flag != nil && flag.Value.String() != "" {
		vip.SetConfigFile(flag.Value.String())
		if err := vip.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return vip, nil
}

func cleanup(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		cleanup(c)
	}

	internalRun := cmd.Run
	internalRunE := cmd.RunE
	if internalRunE == nil && internalRun == nil {
		return
	}
	cmd.Run = nil

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		if err := loadSettings(cmd); err != nil {
			return err
		}

		log, err := NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		defer zap.ReplaceGlobals(log)()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(signals)
			select {
			case sig := <-signals:
				log.Info("got signal, shutting down", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()

		contexts.mu.Lock()
		contexts.m[cmd] = ctx
		contexts.mu.Unlock()
		defer func() {
			contexts.mu.Lock()
			delete(contexts.m, cmd)
			contexts.mu.Unlock()
		}()

		if err := initDebug(log.Named("debug"), monkit.Default); err != nil {
			log.Error("failed to start debug endpoint", zap.Error(err))
		}

		defer mon.TaskNamed(cmd.Name())(&ctx)(&err)
		if internalRunE != nil {
			err = internalRunE(cmd, args)
		} else {
			internalRun(cmd, args)
		}
		if ctx.Err() != nil {
			// interrupted by a signal
			err = errs2.IgnoreCanceled(err)
		}
		if err != nil {
			log.Debug("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
		}
		return err
	}
}

// loadSettings sets every flag not given on the command line from the
// environment or the config file.
func loadSettings(cmd *cobra.Command) error {
	vip, err := Viper(cmd)
	if err != nil {
		return Error.Wrap(err)
	}

	var group errs.Group
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !vip.IsSet(f.Name) {
			return
		}
		value := vip.GetString(f.Name)
		if sliceValue, ok := f.Value.(pflag.SliceValue); ok {
			group.Add(sliceValue.Replace(vip.GetStringSlice(f.Name)))
			return
		}
		if err := f.Value.Set(value); err != nil {
			group.Add(fmt.Errorf("invalid value %q for %s: %v", value, f.Name, err))
		}
	})
	return Error.Wrap(group.Err())
}
