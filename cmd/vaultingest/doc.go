// Package main hosts the vaultingest CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the
// upload controller: submitting files, resuming or canceling persisted
// sessions, inspecting incomplete uploads, database health checks, and
// configuration scaffolding. Configuration resolution and logger setup
// are centralized here so subcommands stay declarative; the engine
// semantics live in the internal packages.
package main
