// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger in production and a console logger elsewhere.
func New(env, level string) (*zap.Logger, error) {
	core, err := consoleCore(env, level)
	if err != nil {
		return nil, err
	}
	return build(core), nil
}

// WithOTel tees every entry into the global OpenTelemetry logger provider as well as
// the console. Call it after the log provider has been installed.
func WithOTel(env, level, serviceName string) (*zap.Logger, error) {
	console, err := consoleCore(env, level)
	if err != nil {
		return nil, err
	}
	otelCore := otelzap.NewCore(serviceName,
		otelzap.WithLoggerProvider(global.GetLoggerProvider()),
	)
	return build(zapcore.NewTee(otelCore, console)).With(zap.String("service.name", serviceName)), nil
}

func consoleCore(env, level string) (zapcore.Core, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if env == "production" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stdout), lvl), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), lvl), nil
}

func build(core zapcore.Core) *zap.Logger {
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}
