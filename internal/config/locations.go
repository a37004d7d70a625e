package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Location is a named place the scheduler keeps warm in the cache.
type Location struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

type locationsFile struct {
	Locations []Location `yaml:"locations"`
}

// LoadLocations reads a YAML file of the form:
//
//	locations:
//	  - name: Lisbon
//	    lat: 38.7223
//	    lon: -9.1393
func LoadLocations(path string) ([]Location, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	var f locationsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	return f.Locations, nil
}
