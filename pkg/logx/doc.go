// Package logx is a thin wrapper around zerolog.
//
// It exists so the rest of the codebase can log through a stable, value-type
// Logger whose sinks and level can be swapped at runtime (config hot reload)
// without re-plumbing a logger instance through every component.
package logx
