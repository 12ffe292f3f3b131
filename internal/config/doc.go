// Package config holds the scan configuration: defaults, range presets,
// the optional .protext.yaml file, category manifests and validation.
package config
