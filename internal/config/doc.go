// Package config loads a project's build configuration and manages the
// per-user paths of h5runner.
//
// # Configuration Loading
//
// Load merges layers from several sources, later sources winning key by key
// (see internal/merge):
//
//  1. DefaultLayer, the built-in roots of the project
//  2. .env and .env.<mode>, read with godotenv into the env section
//  3. Global config (~/.config/h5runner/h5runner.{json,jsonc,yaml,yml})
//  4. Project config (h5runner.* in the project, then .h5runner/h5runner.*)
//  5. H5RUNNER_CONFIG file
//  6. H5RUNNER_CONFIG_CONTENT inline JSON
//  7. H5RUNNER_HOST and H5RUNNER_PORT, applied to the devServer section
//
// # Supported Formats
//
//   - h5runner.json and h5runner.jsonc, with comments stripped by tidwall/jsonc
//   - h5runner.yaml and h5runner.yml, parsed with gopkg.in/yaml.v3
//
// # Variable Interpolation
//
// Files support two placeholders, expanded before parsing:
//   - {env:VAR_NAME} expands to an environment variable
//   - {file:path} expands to a file's contents, escaped for a quoted string
//
// Relative {file:} paths resolve against the directory of the file that
// contains them; ~/ expands to the home directory.
//
// # Unknown Options
//
// Top-level keys that no option uses are ignored. Each one produces a
// warning, with the closest known option name when one is near:
//
//	unknown option "publicPth" ignored, did you mean "publicPath"?
//
// # Paths
//
// GetPaths follows the XDG base directory layout. The cache directory holds
// the finalized configurations handed to the compiler process.
package config
