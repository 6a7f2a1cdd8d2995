// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a plain console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Node services accept a context and extract the logger from it, keeping
// log output scoped per node and per protocol component.
package logger
