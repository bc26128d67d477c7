// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/pkg/cfgstruct"
	"github.com/boxc/depositcore/pkg/depositmodel"
	"github.com/boxc/depositcore/pkg/process"
	"github.com/boxc/depositcore/pkg/storagelocation"
)

// Error is the error class for the depositcore command
var Error = errs.Class("depositcore error")

// Config is the configuration shared by all commands.
type Config struct {
	Deposits       depositmodel.Config
	Storage        storagelocation.Config
	RepositoryPath string `help:"path to a JSON or YAML map of repository object ids to parent ids; default locations of objects below the root resolve only through it" default:""`
}

var (
	rootCmd = &cobra.Command{
		Use:   "depositcore",
		Short: "Deposit graph and binary storage tooling",
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configSaveCmd = &cobra.Command{
		Use:   "save <path>",
		Short: "Write the effective configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdConfigSave,
	}

	runCfg Config
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSaveCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(transferCmd)

	for _, cmd := range []*cobra.Command{
		configSaveCmd,
		locationsCheckCmd, locationsResolveCmd,
		graphLoadCmd, graphDumpCmd, graphRemoveCmd,
		transferCmd,
	} {
		process.Bind(cmd, &runCfg, cfgstruct.ConfDir("$HOME/.depositcore"))
	}
}

func cmdConfigSave(cmd *cobra.Command, args []string) error {
	if err := process.SaveConfig(cmd, args[0], nil); err != nil {
		return err
	}
	zap.L().Info("saved configuration", zap.String("path", args[0]))
	return nil
}

// openDeposits opens the deposit model manager.
func (config Config) openDeposits() (*depositmodel.Manager, error) {
	return depositmodel.New(zap.L().Named("deposits"), config.Deposits)
}

// repository returns the ancestry of repository objects.
func (config Config) repository() (storagelocation.ParentMap, error) {
	if config.RepositoryPath == "" {
		return storagelocation.ParentMap{}, nil
	}
	return storagelocation.LoadParentMap(config.RepositoryPath)
}

// openLocations loads the storage location manager resolving ancestry
// with ancestors.
func (config Config) openLocations(ancestors storagelocation.AncestorLookup) (*storagelocation.Manager, error) {
	return storagelocation.LoadManager(zap.L().Named("locations"), config.Storage, ancestors)
}

func main() {
	process.Exec(rootCmd)
}
