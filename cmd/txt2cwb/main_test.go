package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "txt2cwb/internal/config"
	"txt2cwb/internal/diag"
	"txt2cwb/internal/pipeline"
	wfs "txt2cwb/plugins/writer/filesystem"
)

const sampleText = "Cuba\nCuba es una isla.\n\nEspañol\nEl español es bonito.\n"

// stubRun 替换 pipelineRun 并记录调用参数。
func stubRun(t *testing.T, err error) *pipeline.Settings {
	t.Helper()
	var got pipeline.Settings
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		got = set
		got.Terminal = nil
		return err
	}
	t.Cleanup(func() { pipelineRun = orig })
	return &got
}

func setConfigJSON(t *testing.T, cfg cfgpkg.Config) {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	t.Setenv("TXT2CWB_CONFIG_JSON", string(b))
}

func TestWriteConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, writeConfig(file, cfgpkg.Defaults()))
	_, err := os.Stat(file)
	require.NoError(t, err)
	// 不覆盖
	assert.Error(t, writeConfig(file, cfgpkg.Defaults()))
}

func TestDumpConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dumpConfig(&buf, cfgpkg.Defaults()))
	assert.Contains(t, buf.String(), `"annotator": "rules"`)
}

func TestRunInitConfigDir(t *testing.T) {
	t.Chdir(t.TempDir())
	var stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"--init-config", "emit"}, &stderr))
	_, err := os.Stat(filepath.Join("emit", "config.json"))
	require.NoError(t, err)
	env, err := os.ReadFile(filepath.Join("emit", ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), "TXT2CWB_INPUT")

	// 生成的模板可被严格解析
	cfg, err := cfgpkg.LoadFile(filepath.Join("emit", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "rules", cfg.Components.Annotator)

	// 已存在时不覆盖
	assert.Equal(t, 3, run([]string{"--init-config", "emit"}, &stderr))

	// 位置参数在前同样作为目录
	require.Equal(t, 0, run([]string{"other", "--init-config"}, &bytes.Buffer{}))
	_, err = os.Stat(filepath.Join("other", "config.json"))
	require.NoError(t, err)
	_, err = os.Stat("config.json")
	assert.True(t, os.IsNotExist(err), "不应写入当前目录")
}

func TestRunInitConfigDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	require.Equal(t, 0, run([]string{"--init-config"}, &bytes.Buffer{}))
	_, err := os.Stat("config.json")
	assert.NoError(t, err)
}

func TestRunSuccess(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	got := stubRun(t, nil)

	require.Equal(t, 0, run([]string{"2017_11_03_a.txt"}, &bytes.Buffer{}))
	assert.Equal(t, "2017_11_03_a.txt", got.Input)
	assert.Equal(t, "rules", got.AnnotatorName)
}

func TestRunCLIOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Input = "from-config.txt"
	setConfigJSON(t, cfg)
	t.Setenv("TXT2CWB_COMPONENTS_ANNOTATOR", "udpipe")
	got := stubRun(t, nil)

	code := run([]string{"-i", "-", "--name", "2017_11_03_stdin.txt", "--annotator", "mock", "--log-level", "debug"}, &bytes.Buffer{})
	require.Equal(t, 0, code)
	assert.Equal(t, "-", got.Input)
	assert.Equal(t, "2017_11_03_stdin.txt", got.SourceName)
	assert.Equal(t, "mock", got.AnnotatorName, "CLI 优先于 ENV")
}

func TestRunEnvOverridesConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	t.Setenv("TXT2CWB_INPUT", "2017_11_03_env.txt")
	t.Setenv("TXT2CWB_COMPONENTS_ANNOTATOR", "mock")
	got := stubRun(t, nil)

	require.Equal(t, 0, run(nil, &bytes.Buffer{}))
	assert.Equal(t, "2017_11_03_env.txt", got.Input)
	assert.Equal(t, "mock", got.AnnotatorName)
}

func TestRunDefaultConfigFileYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	yml := "input: 2017_11_03_y.txt\ncomponents:\n  annotator: mock\nlimits:\n  rpm: 60\n"
	require.NoError(t, os.WriteFile("c.yaml", []byte(yml), 0o644))
	got := stubRun(t, nil)

	require.Equal(t, 0, run([]string{"--config", "c.yaml"}, &bytes.Buffer{}))
	assert.Equal(t, "2017_11_03_y.txt", got.Input)
	assert.NotNil(t, got.Gate)
	assert.EqualValues(t, "mock", got.GateKey)
}

func TestRunDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	const key = "TXT2CWB_SOURCE_NAME"
	_, had := os.LookupEnv(key)
	require.False(t, had)
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	require.NoError(t, os.WriteFile(".env", []byte(key+"=2017_11_03_dotenv.txt\n"), 0o644))
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	got := stubRun(t, nil)

	require.Equal(t, 0, run([]string{"-"}, &bytes.Buffer{}))
	assert.Equal(t, "2017_11_03_dotenv.txt", got.SourceName)
}

func TestRunOutputDirImpliesFS(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	var writer any
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		writer = comp.Writer
		return nil
	}
	t.Cleanup(func() { pipelineRun = orig })

	require.Equal(t, 0, run([]string{"-o", "corpus", "2017_11_03_a.txt"}, &bytes.Buffer{}))
	assert.IsType(t, &wfs.FS{}, writer)
}

func TestRunConfigFileNotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, 3, run([]string{"--config", "missing.json"}, &bytes.Buffer{}))
}

func TestRunValidateError(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	var stderr bytes.Buffer
	assert.Equal(t, 3, run(nil, &stderr), "缺少输入")
	assert.Contains(t, stderr.String(), "配置校验失败")

	assert.Equal(t, 3, run([]string{"-"}, &bytes.Buffer{}), "STDIN 缺少 --name")
	assert.Equal(t, 3, run([]string{"--annotator", "gpt", "x.txt"}, &bytes.Buffer{}))
}

func TestRunAssembleError(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Options.Reader = json.RawMessage(`{"unknown":1}`)
	setConfigJSON(t, cfg)
	assert.Equal(t, 3, run([]string{"2017_11_03_a.txt"}, &bytes.Buffer{}))
}

func TestRunPreflightNotDir(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	require.NoError(t, os.WriteFile("afile", []byte("x"), 0o644))
	assert.Equal(t, 3, run([]string{"-o", "afile", "2017_11_03_a.txt"}, &bytes.Buffer{}))
}

func TestRunPipelineError(t *testing.T) {
	t.Chdir(t.TempDir())
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())
	stubRun(t, errors.New("boom"))
	var stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"2017_11_03_a.txt"}, &stderr))
	assert.Contains(t, stderr.String(), "boom")
}

func TestRunUsageErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, 2, run([]string{"--no-such-flag"}, &bytes.Buffer{}))

	var stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"a.txt", "b.txt"}, &stderr))
	assert.Contains(t, stderr.String(), "至多一个位置参数")
	assert.Contains(t, stderr.String(), "Usage:")

	assert.Equal(t, 2, run([]string{"--init-config", "a", "b"}, &bytes.Buffer{}))
}

// 端到端：真实组件 + mock 标注器，输出到 fs
func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("2017_11_03_example-text.txt", []byte(sampleText), 0o644))
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())

	var stderr bytes.Buffer
	code := run([]string{"--annotator", "mock", "-o", "out", "--status=false", "2017_11_03_example-text.txt"}, &stderr)
	require.Equal(t, 0, code, stderr.String())

	got, err := os.ReadFile(filepath.Join("out", "2017_11_03_example_text.vrt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), `<text id="2017_11_03_example_text" date="2017_11_03" year="2017" month="11" day="03">`)
	assert.Contains(t, string(got), "<h1>\nCuba\tX\tcuba\n</h1>\n")
	assert.Equal(t, 2, bytes.Count(got, []byte("</text>")))
	assert.Empty(t, stderr.String())
}

func TestRunEndToEndMalformedName(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("notes.txt", []byte(sampleText), 0o644))
	setConfigJSON(t, cfgpkg.DefaultTemplateConfig())

	var stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"--annotator", "mock", "-o", "out", "notes.txt"}, &stderr))
	assert.Contains(t, stderr.String(), "malformed source name")
	entries, _ := os.ReadDir("out")
	assert.Empty(t, entries)
}
