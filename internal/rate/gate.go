package rate

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	xrate "golang.org/x/time/rate"

	"txt2cwb/pkg/contract"
)

// LimitKey: 限流分组键（标注器名 + 服务端点）。
type LimitKey string

// Limits: 每分组的限额配置。RPM<=0 表示该分组不限流。
type Limits struct {
	RPM            int // requests per minute
	Burst          int // 允许的突发请求数，<=0 时取 1
	MaxBytesPerReq int // 单次请求文本字节上限，0 表示不限制
}

// Ask: 一次放行申请。
type Ask struct {
	Key      LimitKey
	Requests int // 必须 >=1
	Bytes    int // 本次提交给模型的文本字节数（>=0）
}

// Gate: 限流闸门（并发安全）。
type Gate interface {
	// Wait: 阻塞直到额度可用或 ctx 取消；违反单请求上限时快速失败。
	Wait(ctx context.Context, a Ask) error
	// Try: 非阻塞尝试；不足时返回 false。
	Try(a Ask) bool
}

// Snapshoter: 可选诊断接口。
type Snapshoter interface {
	Snapshot(key LimitKey) (rpmAvail int)
}

// NewGate: 从静态配置构造闸门；clk 为空则使用 time.Now。
// 所有分组均未启用时返回 nil，调用方据此跳过等待。
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	for k, lim := range m {
		if lim.RPM <= 0 && lim.MaxBytesPerReq <= 0 {
			continue
		}
		g.m[k] = newEntry(lim)
	}
	if len(g.m) == 0 {
		return nil
	}
	return g
}

type gate struct {
	clk func() time.Time
	mu  sync.Mutex
	m   map[LimitKey]*entry
}

type entry struct {
	lim Limits
	req *xrate.Limiter // nil 表示 RPM 维度关闭
}

func newEntry(lim Limits) *entry {
	e := &entry{lim: lim}
	if lim.RPM > 0 {
		burst := lim.Burst
		if burst <= 0 {
			burst = 1
		}
		e.req = xrate.NewLimiter(xrate.Limit(float64(lim.RPM)/60.0), burst)
	}
	return e
}

func (g *gate) get(key LimitKey) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.m[key]
	if e == nil {
		// 未配置的 key 视为不限额
		e = &entry{}
		g.m[key] = e
	}
	return e
}

func (g *gate) check(a Ask) (*entry, error) {
	if a.Requests <= 0 || a.Bytes < 0 {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "rate: bad ask requests=%d bytes=%d", a.Requests, a.Bytes)
	}
	e := g.get(a.Key)
	if e.lim.MaxBytesPerReq > 0 && a.Bytes > e.lim.MaxBytesPerReq {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "rate: request of %d bytes exceeds limit %d", a.Bytes, e.lim.MaxBytesPerReq)
	}
	return e, nil
}

func (g *gate) Try(a Ask) bool {
	e, err := g.check(a)
	if err != nil {
		return false
	}
	if e.req == nil {
		return true
	}
	return e.req.AllowN(g.clk(), a.Requests)
}

func (g *gate) Wait(ctx context.Context, a Ask) error {
	e, err := g.check(a)
	if err != nil {
		return err
	}
	if e.req == nil {
		return ctx.Err()
	}
	if a.Requests > e.req.Burst() {
		return errors.Wrapf(contract.ErrInvalidInput, "rate: %d requests exceed burst %d", a.Requests, e.req.Burst())
	}
	// 预约后按真实时间休眠，便于注入时钟的 Try/Snapshot 与 Wait 共用同一限流器
	r := e.req.ReserveN(g.clk(), a.Requests)
	delay := r.DelayFrom(g.clk())
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(g.clk())
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *gate) Snapshot(key LimitKey) int {
	e := g.get(key)
	if e.req == nil {
		return 0
	}
	avail := int(e.req.TokensAt(g.clk()))
	if avail < 0 {
		return 0
	}
	return avail
}

// 接口断言（可选）。
var _ Gate = (*gate)(nil)
var _ Snapshoter = (*gate)(nil)
