package config

import (
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/internal/pipeline"
	"txt2cwb/internal/rate"
	"txt2cwb/pkg/contract"
	"txt2cwb/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	in := strings.TrimSpace(cfg.Input)
	if in == "" {
		return errors.Wrap(contract.ErrInvalidInput, "config: input empty")
	}
	if in == "-" && strings.TrimSpace(cfg.SourceName) == "" {
		return errors.Wrap(contract.ErrInvalidInput, "config: source_name required when reading stdin")
	}
	if cfg.Limits.RPM < 0 || cfg.Limits.Burst < 0 || cfg.Limits.MaxBytesPerReq < 0 {
		return errors.Wrap(contract.ErrInvalidInput, "config: limits must be >= 0")
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return errors.Wrapf(contract.ErrInvalidInput, "config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Segmenter, d.Segmenter); registry.Segmenter[name] == nil {
		return errors.Wrapf(contract.ErrInvalidInput, "config: segmenter %q not registered", name)
	}
	if name := effName(cfg.Components.Annotator, d.Annotator); registry.Annotator[name] == nil {
		return errors.Wrapf(contract.ErrInvalidInput, "config: annotator %q not registered (have %s)",
			name, strings.Join(registry.Names(registry.Annotator), ", "))
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return errors.Wrapf(contract.ErrInvalidInput, "config: writer %q not registered (have %s)",
			name, strings.Join(registry.Names(registry.Writer), ", "))
	}
	return nil
}

// Assemble 构造 Components 与 Settings（含限流 Gate+Key）。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults().Components
	rn := effName(cfg.Components.Reader, d.Reader)
	sn := effName(cfg.Components.Segmenter, d.Segmenter)
	an := effName(cfg.Components.Annotator, d.Annotator)
	wn := effName(cfg.Components.Writer, d.Writer)

	// 构造实例
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrapf(err, "reader %s", rn)
	}
	s, err := registry.Segmenter[sn](cfg.Options.Segmenter)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrapf(err, "segmenter %s", sn)
	}
	annRaw := cfg.Options.Annotator[an]
	a, err := registry.Annotator[an](annRaw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrapf(err, "annotator %s", an)
	}
	w, err := registry.Writer[wn](cfg.Options.Writer[wn])
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, errors.Wrapf(err, "writer %s", wn)
	}

	comp := pipeline.Components{Reader: r, Segmenter: s, Annotator: a, Writer: w}

	// 限流 Gate：分组键由标注器名与其服务端点派生
	key := rate.DeriveKeyFromAnnotatorOptions(an, annRaw)
	gate := rate.NewGate(map[rate.LimitKey]rate.Limits{
		key: {RPM: cfg.Limits.RPM, Burst: cfg.Limits.Burst, MaxBytesPerReq: cfg.Limits.MaxBytesPerReq},
	}, nil)

	set := pipeline.Settings{
		Input:         strings.TrimSpace(cfg.Input),
		SourceName:    strings.TrimSpace(cfg.SourceName),
		AnnotatorName: an,
		Gate:          gate,
		GateKey:       key,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got = strings.TrimSpace(got); got == "" {
		return def
	}
	return got
}
