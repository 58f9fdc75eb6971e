// Package testutil holds small helpers shared across package tests.
package testutil

import (
	"context"

	"github.com/flowsniper/flowsniper/internal/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any)       {}
func (nopLogger) Info(context.Context, string, ...any)        {}
func (nopLogger) Warn(context.Context, string, ...any)        {}
func (nopLogger) Error(context.Context, string, ...any)       {}
func (nopLogger) Debugc(context.Context, int, string, ...any) {}
func (nopLogger) Infoc(context.Context, int, string, ...any)  {}
func (nopLogger) Warnc(context.Context, int, string, ...any)  {}
func (nopLogger) Errorc(context.Context, int, string, ...any) {}

// NopLogger returns a logger that discards everything.
func NopLogger() logger.LoggerInterface { return nopLogger{} }
