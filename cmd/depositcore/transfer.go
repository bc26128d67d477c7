// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/pkg/depositmodel"
	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/process"
	"github.com/boxc/depositcore/pkg/transfer"
	"github.com/boxc/depositcore/storage/storelogger"
)

var transferCmd = &cobra.Command{
	Use:   "transfer <deposit> <destination> <target> <staged-file>",
	Short: "Move a staged binary of a deposit into its storage location",
	Long: "Move a staged binary of a deposit into its storage location. The " +
		"destination is the repository container the deposit is ingested into. " +
		"Completed transfers are recorded in the deposit graph, so running the " +
		"same transfer again does not copy the file twice.",
	Args: cobra.ExactArgs(4),
	RunE: cmdTransfer,
}

func cmdTransfer(cmd *cobra.Command, args []string) error {
	ctx := process.Ctx(cmd)

	var ids [3]pid.PID
	for i := range ids {
		id, err := pid.Parse(args[i])
		if err != nil {
			return err
		}
		ids[i] = id
	}
	deposit, destination, target := ids[0], ids[1], ids[2]

	staged, err := filepath.Abs(args[3])
	if err != nil {
		return Error.Wrap(err)
	}
	source := &url.URL{Scheme: "file", Path: filepath.ToSlash(staged)}

	repository, err := runCfg.repository()
	if err != nil {
		return err
	}

	return withDeposits(func(manager *depositmodel.Manager) error {
		locations, err := runCfg.openLocations(&depositmodel.GraphAncestors{
			Manager:     manager,
			Deposit:     deposit,
			Destination: destination,
			Repository:  repository,
		})
		if err != nil {
			return err
		}

		recorder := storelogger.New(zap.L().Named("records"), manager.TransferRecorder(deposit))
		service := transfer.NewService(zap.L().Named("transfer"), recorder, transfer.Options{
			Notifier: func(ctx context.Context, record transfer.Record) {
				zap.L().Info("transferred binary",
					zap.Stringer("target", record.Target),
					zap.Stringer("destination", record.Destination),
					zap.String("digest", record.Digest.String()))
			},
		})
		defer service.Wait()

		session := service.OpenMulti(locations, manager.Objects(deposit))
		uri, err := session.Transfer(ctx, target, source)
		if closeErr := session.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		fmt.Println(uri)
		return nil
	})
}
