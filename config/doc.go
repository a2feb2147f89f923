// Package config resolves adwflow configuration from layered sources.
//
// Priority, lowest to highest: built-in defaults, global config
// (~/.config/adwflow/config.yaml), local config (.adwflow.yaml in the git
// root), then ADWFLOW_* environment variables. Flag overrides can be
// applied on top by the CLI.
package config
