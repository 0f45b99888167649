// Package config resolves vault configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. Default()
//  2. a YAML (.yaml, .yml) or TOML (.toml) file
//  3. CRYPTOVAULT_* environment variables, optionally seeded from a .env file
//     by LoadDotEnv
//
// The merged result is validated against an embedded CUE schema. Unknown
// keys in a config file are errors.
//
// Environment variables:
//
//	CRYPTOVAULT_KEYSTORE_BACKEND     file | memory | keychain | secret-service | ...
//	CRYPTOVAULT_KEYSTORE_SERVICE
//	CRYPTOVAULT_KEYSTORE_ALIAS
//	CRYPTOVAULT_KEYSTORE_FILE_DIR
//	CRYPTOVAULT_KEYSTORE_PASSWORD
//	CRYPTOVAULT_STORE_BACKEND        sqlite | file | memory
//	CRYPTOVAULT_STORE_PATH
//	CRYPTOVAULT_STORE_DOCUMENT
//	CRYPTOVAULT_STORE_POLL_INTERVAL  Go duration, e.g. 500ms
//	CRYPTOVAULT_STORE_MAX_RETRIES
//	CRYPTOVAULT_STORE_RETRY_MAX_ELAPSED
//	CRYPTOVAULT_KEYS_NORMALIZE       none | nfc
//	CRYPTOVAULT_LOG_LEVEL            debug | info | warn | error
//	CRYPTOVAULT_LOG_FORMAT           text | json
package config
