package pipeline

import (
	"context"
	"strconv"
	"time"

	"txt2cwb/internal/cwb"
	"txt2cwb/internal/diag"
	"txt2cwb/internal/rate"
	"txt2cwb/pkg/contract"

	"github.com/cockroachdb/errors"
)

// Components 为一次运行所需的全部组件实例（由 config.Assemble 装配）。
type Components struct {
	Reader    contract.Reader
	Segmenter contract.Segmenter
	Annotator contract.Annotator
	Writer    contract.Writer
}

// Settings 为运行参数。
type Settings struct {
	Input         string // 输入路径；"-" 表示 STDIN
	SourceName    string // 覆盖元信息推导所用的名称（STDIN 时必需）
	AnnotatorName string

	Gate    rate.Gate     // 可选：标注调用限流
	GateKey rate.LimitKey // Gate 分组键

	Terminal *diag.Terminal // 可选：终端进度
}

// Run 执行一次完整转换：读取 → 元信息 → 分段 → 逐篇标注并写出 → 提交。
// 任一步失败即中止；已打开的工件被丢弃，不留下部分输出。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (err error) {
	if err := sanity(comp, set); err != nil {
		return err
	}
	term := set.Terminal
	runStart := time.Now()
	term.RunStart(set.AnnotatorName)
	defer func() { term.RunFinish(err == nil, time.Since(runStart)) }()

	// 1) 读取并解码
	rt := logger.StartWith("reader", "read", set.Input, "")
	t0 := time.Now()
	src, err := comp.Reader.Read(ctx, set.Input)
	if err != nil {
		logFail(logger, "reader", "read failed", err, &t0, set.Input, "")
		return errors.Wrap(err, "reader")
	}
	rt.Finish("read", int64(len(src.Text)))
	fileID := string(src.ID)
	logger.DebugStart("reader", "decoded", fileID, "", map[string]string{"encoding": src.Encoding})

	// 2) 元信息；失败时尚未打开任何输出
	name := set.SourceName
	if name == "" {
		name = src.Name
	}
	meta, err := cwb.ExtractMetadata(name)
	if err != nil {
		logFail(logger, "metadata", "extract failed", err, nil, fileID, "")
		return errors.Wrap(err, "metadata")
	}

	// 3) 分段
	st := logger.StartWith("segmenter", "segment", fileID, "")
	t0 = time.Now()
	docs, err := comp.Segmenter.Segment(ctx, contract.SplitLines(src.Text))
	if err != nil {
		logFail(logger, "segmenter", "segment failed", err, &t0, fileID, "")
		return errors.Wrap(err, "segmenter")
	}
	st.Finish("segment", int64(len(docs)))

	// 4) 打开工件
	art, err := comp.Writer.Open(ctx, contract.ArtifactID(meta.ID))
	if err != nil {
		logFail(logger, "writer", "open failed", err, nil, fileID, "")
		return errors.Wrap(err, "writer open")
	}

	fileStart := time.Now()
	term.FileStart(fileID, len(docs))
	sentences, err := emitAll(ctx, comp, set, logger, art, fileID, meta, docs)
	if err != nil {
		if derr := art.Discard(); derr != nil {
			logger.ErrorWith("writer", string(diag.Classify(derr)), "discard failed: "+derr.Error(), nil, fileID, "")
		}
		term.FileFinish(false, time.Since(fileStart))
		return err
	}

	// 5) 提交
	wt := logger.StartWith("writer", "commit", fileID, "")
	t0 = time.Now()
	if err := art.Commit(); err != nil {
		logFail(logger, "writer", "commit failed", err, &t0, fileID, "")
		term.FileFinish(false, time.Since(fileStart))
		return errors.Wrap(err, "writer commit")
	}
	wt.Finish("commit", int64(sentences))
	term.FileFinish(true, time.Since(fileStart))
	logger.InfoFinish("pipeline", "done", runStart, int64(len(docs)))
	return nil
}

// emitAll 逐篇标注并写出；返回句子总数。
func emitAll(ctx context.Context, comp Components, set Settings, logger *diag.Logger, art contract.Artifact, fileID string, meta contract.Metadata, docs []contract.Document) (int, error) {
	ann := &observed{inner: comp.Annotator, gate: set.Gate, key: set.GateKey, logger: logger, fileID: fileID}
	em := cwb.NewEmitter(art, ann, set.AnnotatorName)
	sentences := 0
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return sentences, errors.Wrap(err, "pipeline")
		}
		doc := strconv.Itoa(i + 1)
		ann.doc = doc
		dt := logger.StartWith("formatter", "document", fileID, doc)
		t0 := time.Now()
		n, err := em.Document(ctx, meta, d)
		if err != nil {
			logFail(logger, "formatter", "document failed", err, &t0, fileID, doc)
			return sentences, errors.Wrapf(err, "document %d", i+1)
		}
		dt.Finish("document", int64(n))
		sentences += n
		set.Terminal.FileProgress(i+1, sentences)
	}
	return sentences, nil
}

// observed 包装 Annotator：可选限流，逐次调用记录日志。
// 单文件内串行调用，doc 字段由 emitAll 在每篇之前更新。
type observed struct {
	inner  contract.Annotator
	gate   rate.Gate
	key    rate.LimitKey
	logger *diag.Logger
	fileID string
	doc    string
}

func (o *observed) Annotate(ctx context.Context, text string) ([]contract.Sentence, error) {
	if err := o.admit(ctx, len(text)); err != nil {
		return nil, err
	}
	o.logger.DebugStart("annotator", "annotate", o.fileID, o.doc, map[string]string{"bytes": strconv.Itoa(len(text))})
	t0 := time.Now()
	sents, err := o.inner.Annotate(ctx, text)
	if err != nil {
		logFail(o.logger, "annotator", "annotate failed", err, &t0, o.fileID, o.doc)
		return nil, err
	}
	o.logger.DebugStart("annotator", "annotated", o.fileID, o.doc, map[string]string{
		"sentences": strconv.Itoa(len(sents)),
		"dur_ms":    strconv.FormatInt(time.Since(t0).Milliseconds(), 10),
	})
	return sents, nil
}

// admit 先非阻塞放行；额度不足时记录限流事件（附当前可用额度）后阻塞等待。
func (o *observed) admit(ctx context.Context, bytes int) error {
	if o.gate == nil {
		return nil
	}
	ask := rate.Ask{Key: o.key, Requests: 1, Bytes: bytes}
	if o.gate.Try(ask) {
		return nil
	}
	kv := map[string]string{"key": string(o.key), "bytes": strconv.Itoa(bytes)}
	if s, ok := o.gate.(rate.Snapshoter); ok {
		kv["rpm_avail"] = strconv.Itoa(s.Snapshot(o.key))
	}
	wt := o.logger.StartWithKV("gate", "throttled", o.fileID, o.doc, kv)
	t0 := time.Now()
	if err := o.gate.Wait(ctx, ask); err != nil {
		logFail(o.logger, "gate", "wait failed", err, &t0, o.fileID, o.doc)
		return errors.Wrap(err, "rate gate")
	}
	wt.Finish("released", 1)
	return nil
}

// logFail 按错误分类记录 error 事件；上游 HTTP 错误附带状态码与消息片段。
func logFail(logger *diag.Logger, comp, msg string, err error, since *time.Time, fileID, doc string) {
	if logger == nil {
		return
	}
	code := string(diag.Classify(err))
	kv := map[string]string{"err": err.Error()}
	var ue contract.UpstreamError
	if errors.As(err, &ue) {
		kv["status"] = strconv.Itoa(ue.UpstreamStatus())
		if m := ue.UpstreamMessage(); m != "" {
			kv["upstream"] = m
		}
	}
	logger.ErrorWithKV(comp, code, msg, since, fileID, doc, kv)
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Segmenter == nil || c.Annotator == nil || c.Writer == nil {
		return errors.Wrap(contract.ErrInvalidInput, "pipeline: missing components")
	}
	if s.Input == "" {
		return errors.Wrap(contract.ErrInvalidInput, "pipeline: empty input")
	}
	if s.Input == "-" && s.SourceName == "" {
		return errors.Wrap(contract.ErrInvalidInput, "pipeline: stdin requires a source name")
	}
	return nil
}
