package logging

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errUnpairedKey is logged as the value of a trailing key with no value.
var errUnpairedKey = errors.New("unpaired log key")

// impl fans every entry out to its appenders. Subloggers share the appender list of their parent
// so appenders added later reach the whole tree.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool
	sinks *appenderList
}

type appenderList struct {
	mu        sync.RWMutex
	appenders []Appender
}

func (al *appenderList) add(appender Appender) {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.appenders = append(al.appenders, appender)
}

func (al *appenderList) snapshot() []Appender {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return al.appenders
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{
		name:  name,
		level: NewAtomicLevelAt(level),
		inUTC: inUTC,
		sinks: &appenderList{appenders: appenders},
	}
}

// LogEntry embeds a zapcore Entry and slice of Fields.
type LogEntry struct {
	zapcore.Entry
	fields []zapcore.Field
}

func (imp *impl) AddAppender(appender Appender) {
	imp.sinks.add(appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.GetLevel().AsZap()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{name: name, level: NewAtomicLevelAt(imp.GetLevel()), inUTC: imp.inUTC, sinks: imp.sinks}
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.sinks.snapshot() {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

// asZap builds a zap logger teeing into every appender that is also a zapcore.Core, for callers
// that need a *zap.SugaredLogger.
func (imp *impl) asZap() *zap.SugaredLogger {
	var cores []zapcore.Core
	for _, appender := range imp.sinks.snapshot() {
		if core, ok := appender.(zapcore.Core); ok {
			cores = append(cores, core)
		}
	}
	if len(cores) == 0 {
		return zap.NewNop().Sugar()
	}
	tee := zapcore.NewTee(cores...)
	if leveled, err := zapcore.NewIncreaseLevelCore(tee, imp.Level()); err == nil {
		tee = leveled
	}
	return zap.New(tee, zap.AddCaller()).Sugar().Named(imp.name)
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.asZap().Desugar()
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.asZap().Named(name)
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.asZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.asZap().WithOptions(opts...)
}

// emit builds and writes one entry. It must be called directly from the exported logging method
// so that the caller lookup lands on user code.
func (imp *impl) emit(level Level, force bool, message func() string, keysAndValues []interface{}) {
	if !force && level < imp.level.Get() {
		return
	}
	entry := &LogEntry{
		Entry: zapcore.Entry{
			Level:      level.AsZap(),
			Time:       time.Now(),
			LoggerName: imp.name,
			Message:    message(),
			Caller:     getCaller(),
		},
		fields: toFields(keysAndValues),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	for _, appender := range imp.sinks.snapshot() {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up alternating keys and values. A trailing key gets errUnpairedKey as its value.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		var value interface{} = errUnpairedKey
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fields = append(fields, zap.Any(key, value))
	}
	return fields
}

func sprint(args []interface{}) func() string {
	return func() string { return fmt.Sprint(args...) }
}

func sprintf(template string, args []interface{}) func() string {
	return func() string { return fmt.Sprintf(template, args...) }
}

func literal(msg string) func() string {
	return func() string { return msg }
}

func (imp *impl) Debug(args ...interface{}) {
	imp.emit(DEBUG, false, sprint(args), nil)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.emit(DEBUG, false, sprintf(template, args), nil)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, false, literal(msg), keysAndValues)
}

func (imp *impl) Info(args ...interface{}) {
	imp.emit(INFO, false, sprint(args), nil)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.emit(INFO, false, sprintf(template, args), nil)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.emit(INFO, false, literal(msg), keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.emit(WARN, false, sprint(args), nil)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.emit(WARN, false, sprintf(template, args), nil)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.emit(WARN, false, literal(msg), keysAndValues)
}

func (imp *impl) Error(args ...interface{}) {
	imp.emit(ERROR, false, sprint(args), nil)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.emit(ERROR, false, sprintf(template, args), nil)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, false, literal(msg), keysAndValues)
}

// Fatal logs at error level regardless of the configured level, then exits.
func (imp *impl) Fatal(args ...interface{}) {
	imp.emit(ERROR, true, sprint(args), nil)
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.emit(ERROR, true, sprintf(template, args), nil)
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, true, literal(msg), keysAndValues)
	os.Exit(1)
}

// getCaller reports the frame that called the exported logging method: getCaller, emit and the
// method itself are skipped.
func getCaller() zapcore.EntryCaller {
	const skip = 3
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
