package diag

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogDir 为日志文件默认目录；日志文件按 10 MiB 轮转。
const (
	DefaultLogDir  = "logs"
	logFileName    = "txt2cwb.log"
	logMaxSizeMB   = 10
	logMaxBackups  = 5
	stderrLogDir   = "-"
	fieldCorrID    = "corr_id"
	fieldComponent = "comp"
)

// Logger 为组件/阶段事件日志器：单行 JSON（zap），写入轮转文件。
// 所有方法对 nil 接收者安全，便于测试中传 nil。
type Logger struct {
	corrID string
	z      *zap.Logger
	sink   io.Closer
}

// NewLogger 通过配置的 level 初始化。
// dir 为空时使用 DefaultLogDir；dir 为 "-" 时写 stderr（不落盘）。
func NewLogger(corrID, level, dir string) *Logger {
	var ws zapcore.WriteSyncer
	var closer io.Closer
	switch d := strings.TrimSpace(dir); d {
	case stderrLogDir:
		ws = zapcore.Lock(os.Stderr)
	default:
		if d == "" {
			d = DefaultLogDir
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(d, logFileName),
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
		}
		ws = zapcore.AddSync(lj)
		closer = lj
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), ws, ParseLevel(level))
	return newLogger(corrID, core, closer)
}

func newLogger(corrID string, core zapcore.Core, sink io.Closer) *Logger {
	return &Logger{corrID: corrID, z: zap.New(core), sink: sink}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.MessageKey = "msg"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}

// ParseLevel 解析日志级别；未知值回退为 info。
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Doc    string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv zapcore.Level, ev Event) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv, ev.Msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 10)
	fields = append(fields,
		zap.String(fieldCorrID, l.corrID),
		zap.String(fieldComponent, ev.Comp),
		zap.String("stage", ev.Stage),
	)
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		fields = append(fields, zap.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		fields = append(fields, zap.String("file_id", ev.FileID))
	}
	if ev.Doc != "" {
		fields = append(fields, zap.String("doc", ev.Doc))
	}
	if len(ev.KV) > 0 {
		fields = append(fields, zap.Any("kv", ev.KV))
	}
	ce.Write(fields...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/doc 的 start。
func (l *Logger) StartWith(comp, msg, fileID, doc string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Doc: doc, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, doc: doc, t0: time.Now()}
}

// StartWithKV 在 start 事件中附带键值对。
func (l *Logger) StartWithKV(comp, msg, fileID, doc string, kv map[string]string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Doc: doc, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, doc: doc, t0: time.Now()}
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, doc string, kv map[string]string) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Doc: doc, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 file_id/doc。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, doc string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, doc, nil)
}

// ErrorWithKV 支持附带键值对（例如 HTTP 状态码、上游错误片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, doc string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, Doc: doc, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// Close 冲刷并关闭日志文件。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	doc    string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(zapcore.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, FileID: t.fileID, Doc: t.doc, Msg: msg})
}
