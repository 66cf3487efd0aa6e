// Package config provides the configuration of a sysdump run.
// It defines the options collected from the command line, their defaults,
// validation, XDG directory locations and the optional .sysdump.yaml file
// that carries default overrides and named stage presets.
package config
