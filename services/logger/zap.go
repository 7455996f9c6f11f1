package logsvc

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/user"
)

// ZapLogger writes structured logs. Args are turned into fields:
// error → "error", map[string]interface{} → one field per key, user.Profile → "user".
type ZapLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZap builds the process logger: JSON in production, console output in debug.
func NewZap(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zl, err := config.Build(zap.AddCallerSkip(2))
	return zl, errors.Wrap(err, "building zap logger")
}

func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl}
}

func (l *ZapLogger) Sync() error { return l.zl.Sync() }

func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			flds = append(flds, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				flds = append(flds, zap.Any(k, v))
			}
		case user.Profile:
			flds = append(flds, zap.String("user", a.ID))
		default:
			flds = append(flds, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return flds
}

func (l *ZapLogger) log(level zapcore.Level, msg string, args []interface{}) {
	if ce := l.zl.Check(level, msg); ce != nil {
		ce.Write(fields(args)...)
	}
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.log(zapcore.DebugLevel, msg, args) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.log(zapcore.InfoLevel, msg, args) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.log(zapcore.WarnLevel, msg, args) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.log(zapcore.ErrorLevel, msg, args) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.log(zapcore.FatalLevel, msg, args) }
