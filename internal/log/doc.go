// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks sensitive values before they reach the output:
//   - Credentials and tokens identified by key name (password, token, ...)
//   - Cloud and CI credentials often present in process environments
//   - Values that look like secrets (JWTs, bearer tokens, AWS keys,
//     GitHub tokens, URLs with embedded passwords, PEM private keys)
//
// The same rules are exported through MaskIfSensitive so that report content
// such as environment dumps is redacted the same way log output is.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Info("stage completed", "stage", "env", "token", "abc") // token is masked
package log
