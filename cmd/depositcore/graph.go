// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/pkg/depositmodel"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/process"
	"github.com/boxc/depositcore/pkg/rdf"
)

var (
	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Inspect and edit deposit graphs",
	}
	graphLoadCmd = &cobra.Command{
		Use:   "load <deposit> <file.nt> [parent]",
		Short: "Add the triples of an N-Triples file to a deposit graph",
		Long: "Add the triples of an N-Triples file to a deposit graph. When a parent " +
			"is given, it is linked to the deposit as a contained object.",
		Args: cobra.RangeArgs(2, 3),
		RunE: cmdGraphLoad,
	}
	graphDumpCmd = &cobra.Command{
		Use:   "dump <deposit>",
		Short: "Write a deposit graph as N-Triples to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdGraphDump,
	}
	graphRemoveCmd = &cobra.Command{
		Use:   "remove <deposit>",
		Short: "Delete a deposit graph and its store",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdGraphRemove,
	}
)

func init() {
	graphCmd.AddCommand(graphLoadCmd)
	graphCmd.AddCommand(graphDumpCmd)
	graphCmd.AddCommand(graphRemoveCmd)
}

// withDeposits runs fn with an open manager that is closed afterwards.
func withDeposits(fn func(*depositmodel.Manager) error) (err error) {
	manager, err := runCfg.openDeposits()
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, manager.Close()) }()
	return fn(manager)
}

func cmdGraphLoad(cmd *cobra.Command, args []string) error {
	ctx := process.Ctx(cmd)

	deposit, err := pid.Parse(args[0])
	if err != nil {
		return err
	}

	file, err := os.Open(args[1])
	if err != nil {
		return Error.Wrap(err)
	}
	model, err := rdf.Decode(file)
	err = errs.Combine(err, file.Close())
	if err != nil {
		return err
	}

	var newID, parentID *pid.PID
	if len(args) == 3 {
		child, err := pid.Parse(args[2])
		if err != nil {
			return err
		}
		newID, parentID = &child, &deposit
	}

	return withDeposits(func(manager *depositmodel.Manager) error {
		if err := manager.AddTriples(ctx, deposit, model, newID, parentID); err != nil {
			return err
		}
		zap.L().Info("loaded triples",
			zap.Stringer("deposit", deposit),
			zap.Int("triples", model.Len()))
		return nil
	})
}

func cmdGraphDump(cmd *cobra.Command, args []string) error {
	ctx := process.Ctx(cmd)

	deposit, err := pid.Parse(args[0])
	if err != nil {
		return err
	}
	return withDeposits(func(manager *depositmodel.Manager) error {
		return manager.Read(ctx, deposit, func(txn *depositmodel.Txn) error {
			model, err := txn.Model()
			if err != nil {
				return err
			}
			return model.Encode(os.Stdout)
		})
	})
}

func cmdGraphRemove(cmd *cobra.Command, args []string) error {
	ctx := process.Ctx(cmd)

	deposit, err := pid.Parse(args[0])
	if err != nil {
		return err
	}
	return withDeposits(func(manager *depositmodel.Manager) error {
		return manager.RemoveModel(ctx, deposit)
	})
}
