// Package logger provides a configured slog factory and shared attribute
// helpers so every service in the module logs with consistent keys.
package logger
