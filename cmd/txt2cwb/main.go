package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "txt2cwb/internal/config"
	"txt2cwb/internal/diag"
	"txt2cwb/internal/pipeline"
	"txt2cwb/pkg/registry"
)

var pipelineRun = pipeline.Run

// 退出码
const (
	exitOK     = 0
	exitRun    = 1
	exitUsage  = 2
	exitConfig = 3
)

// exitError 携带退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error { return &exitError{code: code, err: err} }

type cliFlags struct {
	input     string
	name      string
	config    string
	annotator string
	writer    string
	outputDir string
	logLevel  string
	logDir    string
	initCfg   bool
	initDir   string
	status    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run 执行 CLI 并返回退出码。
func run(args []string, stderr io.Writer) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 自身的解析错误（未知子命令等）
	fmt.Fprintf(stderr, "参数错误: %v\n", err)
	return exitUsage
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:   "txt2cwb [--input] FILE | --init-config [DIR]",
		Short: "将纯文本新闻语料转换为 CWB 垂直格式（逐词标注）",
		Long: "读取以空行分隔文章的纯文本文件，按 YYYY_MM_DD 前缀推导元信息，\n" +
			"调用标注器（" + strings.Join(registry.Names(registry.Annotator), ", ") + "）逐句标注并输出 CWB 垂直格式。",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				err := errors.Newf("至多一个位置参数，实得 %d", len(args))
				fmt.Fprintf(stderr, "参数错误: %v\n%s", err, cmd.UsageString())
				return withCode(exitUsage, err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.initCfg {
				// --init-config 的位置参数为目标目录
				f.initDir = "."
				if len(args) == 1 {
					f.initDir = args[0]
				}
			} else if len(args) == 1 && f.input == "" {
				f.input = args[0]
			}
			return execute(cmd.Context(), cmd, f, stderr)
		},
	}
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintf(stderr, "参数错误: %v\n%s", err, c.UsageString())
		return withCode(exitUsage, err)
	})

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "输入文件路径；\"-\" 表示 STDIN（需配合 --name）")
	fl.StringVarP(&f.name, "name", "n", "", "用于推导元信息的源文件名（覆盖输入基名）")
	fl.StringVarP(&f.config, "config", "c", "", "配置文件路径（.json/.yaml）；缺省读取 ./config.json（若存在）")
	fl.StringVarP(&f.annotator, "annotator", "a", "", "标注器名称（覆盖配置）")
	fl.StringVarP(&f.writer, "writer", "w", "", "输出目标：stdout 或 fs（覆盖配置）")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "输出目录（隐含 --writer fs）")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "", "日志目录；\"-\" 表示 stderr")
	fl.BoolVar(&f.initCfg, "init-config", false, "在位置参数 DIR（缺省当前目录）生成默认配置 config.json 和 .env 模板（不覆盖）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	return cmd
}

func execute(ctx context.Context, cmd *cobra.Command, f cliFlags, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()

	// --init-config: 生成模板并退出
	if dir := strings.TrimSpace(f.initDir); dir != "" {
		if err := initConfig(dir); err != nil {
			fmt.Fprintf(stderr, "生成默认配置失败: %v\n", err)
			return withCode(exitConfig, err)
		}
		fmt.Fprintf(stderr, "已生成 %s\n", filepath.Join(dir, "config.json"))
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(stderr, "配置解析失败: %v\n", err)
		return withCode(exitConfig, err)
	}

	// 基本校验 & 装配
	if err := cfgpkg.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(stderr, cfg)
		if strings.TrimSpace(cfg.Input) == "" {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return withCode(exitConfig, err)
	}

	logger := diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer logger.Close()

	// 预检：若使用文件系统 Writer，检查输出目录的可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fmt.Fprintf(stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return withCode(exitConfig, err)
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return withCode(exitConfig, err)
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	set.Terminal = diag.NewTerminal(stderr, f.status)

	logger.DebugStart("config", "effective", "", "", effectiveKV(cfg, set))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 运行流水线
	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "运行失败: %v\n", err)
		}
		return withCode(exitRun, err)
	}
	t.Finish("run", 0)
	return nil
}

// loadConfig 按优先级合并：默认 < 配置文件/TXT2CWB_CONFIG_JSON < ENV < CLI。
func loadConfig(f cliFlags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	path := f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	// 默认读取工作目录下 config.json（若存在）
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	var (
		base cfgpkg.Config
		err  error
		have bool
	)
	switch {
	case path != "":
		base, err = cfgpkg.LoadFile(path)
		have = true
	case os.Getenv(cfgpkg.EnvPrefix+"CONFIG_JSON") != "":
		base, err = cfgpkg.LoadJSON("", []byte(os.Getenv(cfgpkg.EnvPrefix+"CONFIG_JSON")))
		have = true
	}
	if err != nil {
		return cfg, err
	}
	if have {
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖（最小集合）
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	over := cfgpkg.Config{
		Input:      f.input,
		SourceName: f.name,
		Logging:    cfgpkg.Logging{Level: f.logLevel, Dir: f.logDir},
		Components: cfgpkg.Components{Annotator: f.annotator, Writer: f.writer},
	}
	if dir := strings.TrimSpace(f.outputDir); dir != "" {
		if over.Components.Writer == "" {
			over.Components.Writer = "fs"
		}
		over.Options.Writer = map[string]json.RawMessage{"fs": withOutputDir(cfg.Options.Writer["fs"], dir)}
	}
	return cfgpkg.Merge(cfg, over), nil
}

// withOutputDir 在已有 fs writer 选项上替换 output_dir，其余键保持不变。
func withOutputDir(raw json.RawMessage, dir string) json.RawMessage {
	m := map[string]any{}
	_ = json.Unmarshal(raw, &m)
	if m == nil {
		m = map[string]any{}
	}
	m["output_dir"] = dir
	b, _ := json.Marshal(m)
	return b
}

func effectiveKV(cfg cfgpkg.Config, set pipeline.Settings) map[string]string {
	kv := map[string]string{
		"input":     set.Input,
		"reader":    cfg.Components.Reader,
		"segmenter": cfg.Components.Segmenter,
		"annotator": set.AnnotatorName,
		"writer":    cfg.Components.Writer,
		"gate_key":  string(set.GateKey),
	}
	if set.SourceName != "" {
		kv["source_name"] = set.SourceName
	}
	// 解析常见无敏感项
	var s struct {
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
	}
	_ = json.Unmarshal(cfg.Options.Annotator[set.AnnotatorName], &s)
	if s.BaseURL != "" {
		kv["base_url"] = s.BaseURL
	}
	if s.Model != "" {
		kv["model"] = s.Model
	}
	return kv
}

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

// initConfig 在 dir 下生成 config.json 与 .env 模板；config.json 已存在时报错，.env 已存在时跳过。
func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		return err
	}
	return writeDotEnv(filepath.Join(dir, ".env"))
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(cfgpkg.EnvTemplate)
	return err
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	writerName := strings.TrimSpace(cfg.Components.Writer)
	if writerName == "" {
		writerName = cfgpkg.Defaults().Components.Writer
	}
	if writerName != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	_ = json.Unmarshal(cfg.Options.Writer["fs"], &wopts)
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	case err == nil:
		return errors.Newf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	// 目录不存在：向上找到第一个已存在的祖先并检查可写性
	parent := filepath.Dir(filepath.Clean(dir))
	for {
		pst, err := os.Stat(parent)
		if err == nil {
			if !pst.IsDir() {
				return errors.Newf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return errors.Newf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmpd)
}
