// Package config provides configuration loading and parsing for shelfsync.
//
// # Overview
//
// Configuration is loaded from YAML files with support for environment
// variable expansion and duration string parsing. The package validates
// required fields and returns descriptive errors for missing or invalid
// configuration.
//
// # Environment Variable Expansion
//
// Values in the format ${VAR_NAME} are replaced with the corresponding
// environment variable before YAML parsing. Unset variables expand to an
// empty string. This is typically used for secrets:
//
//	remote:
//	  auth_token: "${SHELFSYNC_TOKEN}"
//
// # Duration Parsing
//
// Duration fields are written as Go duration strings ("30s", "2m") and
// parsed into time.Duration values after unmarshaling.
//
// # Configuration Sections
//
//   - database: path to the local SQLite file
//   - remote: base URL, auth token and request timeout for the books API
//   - network: reachability probe address, probe interval, and the path of
//     the flag file that simulates being offline
//   - sync: operation log capacity and remote sample import limit
//   - logging: level and output format
//
// # Validation
//
// Load returns an error when database.path or remote.base_url is missing.
// All other fields have defaults.
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
