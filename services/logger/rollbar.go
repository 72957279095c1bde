package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/user"
)

// RollbarLogger reports to rollbar and writes structured logs through zap.
type RollbarLogger struct {
	zap     *zap.SugaredLogger
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// callerSkip reports the RollbarLogger caller instead of the RollbarLogger method.
const callerSkip = 1

// NewZap builds a development logger in debug mode and a production (JSON) logger otherwise.
func NewZap(conf *core.Config) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nil, err
	}
	return zl.Sugar().With("app", conf.AppName, "env", conf.Env, "build", conf.Build), nil
}

func NewRollbarLogger(zl *zap.SugaredLogger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{zap: zl}
	l.Enable(conf.RollbarToken != "" && !conf.TestMode)
	return l
}

// NewNopLogger discards everything.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zap: zap.NewNop().Sugar()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) Sync() {
	_ = l.zap.Sync()
	if l.enabled {
		rollbar.Wait()
	}
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

// keysAndValues turns the loosely typed args into zap fields.
func keysAndValues(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			kvs = append(kvs, "error", a.Error())
		case user.User:
			kvs = append(kvs, "user_id", a.ID, "username", a.Username)
		case map[string]interface{}:
			for k, v := range a {
				kvs = append(kvs, k, v)
			}
		default:
			kvs = append(kvs, fmt.Sprintf("arg%d", i), a)
		}
	}
	return kvs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Debug(l.prepare(msg, args)...)
	}
	l.zap.Debugw(msg, keysAndValues(args)...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Info(l.prepare(msg, args)...)
	}
	l.zap.Infow(msg, keysAndValues(args)...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Warning(l.prepare(msg, args)...)
	}
	l.zap.Warnw(msg, keysAndValues(args)...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Error(l.prepare(msg, args)...)
	}
	l.zap.Errorw(msg, keysAndValues(args)...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Critical(l.prepare(msg, args)...)
		rollbar.Wait()
	}
	l.zap.Fatalw(msg, keysAndValues(args)...)
}
