// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storagelocation

import (
	"io/ioutil"

	"sigs.k8s.io/yaml"
)

// Config points at the location and mapping definition files.
type Config struct {
	LocationsPath string `help:"path to the storage location definitions (JSON or YAML)" default:""`
	MappingsPath  string `help:"path to the container to storage location mappings (JSON or YAML)" default:""`
}

// LocationConfig defines one storage location.
type LocationConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type Type   `json:"type"`
	Base string `json:"base"`
}

// MappingConfig assigns a default storage location to a container.
type MappingConfig struct {
	ID              string `json:"id"`
	DefaultLocation string `json:"defaultLocation"`
}

// ParseLocations parses a list of location definitions.
func ParseLocations(data []byte) ([]LocationConfig, error) {
	var locations []LocationConfig
	if err := yaml.UnmarshalStrict(data, &locations); err != nil {
		return nil, ErrConfig.New("invalid location definitions: %v", err)
	}
	return locations, nil
}

// ParseMappings parses a list of location mappings.
func ParseMappings(data []byte) ([]MappingConfig, error) {
	var mappings []MappingConfig
	if err := yaml.UnmarshalStrict(data, &mappings); err != nil {
		return nil, ErrConfig.New("invalid location mappings: %v", err)
	}
	return mappings, nil
}

// Load reads both definition files.
func (config Config) Load() ([]LocationConfig, []MappingConfig, error) {
	if config.LocationsPath == "" || config.MappingsPath == "" {
		return nil, nil, ErrConfig.New("location and mapping files must both be configured")
	}

	data, err := ioutil.ReadFile(config.LocationsPath)
	if err != nil {
		return nil, nil, ErrConfig.Wrap(err)
	}
	locations, err := ParseLocations(data)
	if err != nil {
		return nil, nil, err
	}

	data, err = ioutil.ReadFile(config.MappingsPath)
	if err != nil {
		return nil, nil, ErrConfig.Wrap(err)
	}
	mappings, err := ParseMappings(data)
	if err != nil {
		return nil, nil, err
	}
	return locations, mappings, nil
}
