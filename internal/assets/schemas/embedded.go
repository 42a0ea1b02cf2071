// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time to ensure the CLI and library work
// correctly regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// ShareManifestSchema is the embedded share-manifest JSON schema.
//
// This allows manifest validation to work in installed binaries and library
// consumers without requiring the schema files to be present on disk.
//
//go:embed share-manifest.schema.json
var ShareManifestSchema []byte

// GateConfigSchema is the embedded gate-config JSON schema.
//
// The gate validates its YAML config against this schema before it starts
// serving, so misconfigurations fail at startup rather than per request.
//
//go:embed gate-config.schema.json
var GateConfigSchema []byte
