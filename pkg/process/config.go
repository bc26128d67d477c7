// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"sigs.k8s.io/yaml"
)

// SaveConfig writes the current value of every flag of cmd, except the
// process flags, to outfile as yaml that Exec can load back with
// --config-file. Values in overrides replace flag values.
func SaveConfig(cmd *cobra.Command, outfile string, overrides map[string]interface{}) error {
	settings := map[string]interface{}{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || isProcessFlag(f.Name) {
			return
		}
		var value interface{} = f.Value.String()
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			value = slice.GetSlice()
		}
		setNested(settings, f.Name, value)
	})
	for key, value := range overrides {
		setNested(settings, key, value)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(atomicWrite(outfile, 0600, data))
}

func isProcessFlag(name string) bool {
	return name == "config-file" || name == "help" ||
		logFlags.Lookup(name) != nil || debugFlags.Lookup(name) != nil
}

// setNested stores value under a dotted key as nested maps.
func setNested(settings map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := settings[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			settings[part] = next
		}
		settings = next
	}
	settings[parts[len(parts)-1]] = value
}

// atomicWrite is a helper to atomically write the data to the outfile.
func atomicWrite(outfile string, mode os.FileMode, data []byte) (err error) {
	fh, err := ioutil.TempFile(filepath.Dir(outfile), filepath.Base(outfile))
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, fh.Close())
			err = errs.Combine(err, os.Remove(fh.Name()))
		}
	}()
	if _, err := fh.Write(data); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Sync(); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Chmod(mode); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Close(); err != nil {
		return errs.Wrap(err)
	}
	if err := os.Rename(fh.Name(), outfile); err != nil {
		return errs.Wrap(err)
	}
	return nil
}
