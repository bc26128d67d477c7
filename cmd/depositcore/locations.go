// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shirou/gopsutil/disk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boxc/depositcore/pkg/pid"
	"github.com/boxc/depositcore/pkg/process"
	"github.com/boxc/depositcore/pkg/storagelocation"
)

var (
	locationsCmd = &cobra.Command{
		Use:   "locations",
		Short: "Inspect storage locations",
	}
	locationsCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Validate the location definitions and mappings and list the locations",
		Args:  cobra.NoArgs,
		RunE:  cmdLocationsCheck,
	}
	locationsResolveCmd = &cobra.Command{
		Use:   "resolve <pid> [location-id]",
		Short: "Show the storage location of an object and the locations available to it",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  cmdLocationsResolve,
	}
)

func init() {
	locationsCmd.AddCommand(locationsCheckCmd)
	locationsCmd.AddCommand(locationsResolveCmd)
}

func cmdLocationsCheck(cmd *cobra.Command, args []string) error {
	repository, err := runCfg.repository()
	if err != nil {
		return err
	}
	locations, err := runCfg.openLocations(repository)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBASE\tFREE")
	for _, loc := range locations.Locations() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", loc.ID(), loc.Name(), loc.Type(), loc.BaseURI(), freeSpace(loc))
	}
	return w.Flush()
}

// freeSpace reports the free space of the filesystem a location is on.
func freeSpace(loc storagelocation.StorageLocation) string {
	fs, ok := loc.(*storagelocation.FilesystemLocation)
	if !ok {
		return "-"
	}
	usage, err := disk.Usage(fs.Root())
	if err != nil {
		zap.L().Warn("failed to read disk usage", zap.String("location", loc.ID()), zap.Error(err))
		return "?"
	}
	return fmt.Sprintf("%.1f GiB (%.0f%% used)", float64(usage.Free)/(1<<30), usage.UsedPercent)
}

func cmdLocationsResolve(cmd *cobra.Command, args []string) error {
	ctx := process.Ctx(cmd)

	target, err := pid.Parse(args[0])
	if err != nil {
		return err
	}
	repository, err := runCfg.repository()
	if err != nil {
		return err
	}
	locations, err := runCfg.openLocations(repository)
	if err != nil {
		return err
	}

	obj := storagelocation.StaticObject{ID: target}
	if len(args) == 2 {
		obj.LocationID = args[1]
	}

	loc, err := locations.GetStorageLocation(ctx, obj)
	if err != nil {
		return err
	}
	available, err := locations.ListAvailableStorageLocations(ctx, target)
	if err != nil {
		return err
	}

	fmt.Printf("location:    %s\n", loc.ID())
	fmt.Printf("storage uri: %s\n", loc.StorageURI(target))
	for _, a := range available {
		fmt.Printf("available:   %s (%s)\n", a.ID(), a.Name())
	}
	return nil
}
