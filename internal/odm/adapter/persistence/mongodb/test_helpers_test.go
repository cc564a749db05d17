package mongodb

import (
	"context"

	"mongodb-orm/internal/shared/logger"
)

// TestLogger implements logger.Logger for tests.
type TestLogger struct{}

func (l *TestLogger) Debug(args ...interface{})                              {}
func (l *TestLogger) Info(args ...interface{})                               {}
func (l *TestLogger) Warn(args ...interface{})                               {}
func (l *TestLogger) Error(args ...interface{})                              {}
func (l *TestLogger) Fatal(args ...interface{})                              {}
func (l *TestLogger) Debugf(format string, args ...interface{})              {}
func (l *TestLogger) Infof(format string, args ...interface{})               {}
func (l *TestLogger) Warnf(format string, args ...interface{})               {}
func (l *TestLogger) Errorf(format string, args ...interface{})              {}
func (l *TestLogger) Fatalf(format string, args ...interface{})              {}
func (l *TestLogger) WithFields(fields map[string]interface{}) logger.Logger { return l }
func (l *TestLogger) WithContext(ctx context.Context) logger.Logger          { return l }
func (l *TestLogger) WithComponent(component string) logger.Logger           { return l }
