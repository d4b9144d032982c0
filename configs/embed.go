// Package configs provides embedded configuration templates for minirag.
//
// Templates are embedded at build time so `minirag config init` works from
// any distribution. They are commented copies of the defaults in
// internal/config NewConfig(); keep the two in sync.
package configs

import _ "embed"

// ConfigTemplate is written by `minirag config init`, either to
// .minirag.yaml in the project directory or, with --user, to
// ~/.config/minirag/config.yaml.
//
//go:embed config.example.yaml
var ConfigTemplate string
