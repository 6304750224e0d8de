// Package udpipe 通过 UDPipe REST 服务标注文本（分句、分词、词性、词元）。
package udpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Options: 最小必需配置。
type Options struct {
	BaseURL        string            `json:"base_url"`        // 例如 https://lindat.mff.cuni.cz/services/udpipe/api
	Model          string            `json:"model"`           // 为空则使用默认 "spanish"
	TimeoutSeconds int               `json:"timeout_seconds"` // client 级超时（秒），默认 60
	ExtraHeaders   map[string]string `json:"extra_headers"`   // 追加/覆盖请求头
}

const (
	DefaultBaseURL = "https://lindat.mff.cuni.cz/services/udpipe/api"
	DefaultModel   = "spanish"
	defaultTimeout = 60
	processPath    = "/process"
)

func (o *Options) defaults() {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(o.Model) == "" {
		o.Model = DefaultModel
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = defaultTimeout
	}
}

// Client 为 UDPipe 标注器。
type Client struct {
	url    string
	model  string
	extraH map[string]string
	do     func(*http.Request) (*http.Response, error)
}

// New 构造客户端；base_url 必须为 http(s) 绝对地址。
func New(opts *Options) (*Client, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()
	u, err := url.Parse(o.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "udpipe: invalid base_url %q", o.BaseURL)
	}
	hc := &http.Client{Timeout: time.Duration(o.TimeoutSeconds) * time.Second}
	return &Client{
		url:    strings.TrimRight(o.BaseURL, "/") + processPath,
		model:  o.Model,
		extraH: o.ExtraHeaders,
		do:     hc.Do,
	}, nil
}

type processResp struct {
	Model  string `json:"model"`
	Result string `json:"result"`
}

// upstreamError 承载非 2xx 响应的状态码与截断后的响应体。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("udpipe upstream %d: %s", e.status, e.msg) }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// Annotate: 单次调用，同步返回。
func (c *Client) Annotate(ctx context.Context, text string) ([]contract.Sentence, error) {
	form := url.Values{}
	form.Set("data", text)
	form.Set("model", c.model)
	// 参数存在即启用对应阶段
	form.Set("tokenizer", "")
	form.Set("tagger", "")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "udpipe: new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.extraH {
		if k == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		return nil, errors.Wrap(err, "udpipe: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// 读取少量响应体辅助定位
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, upstreamError{status: resp.StatusCode, msg: strings.TrimSpace(string(slurp))}
	}
	var pr processResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, errors.Wrap(err, "udpipe: decode response")
	}
	if strings.TrimSpace(pr.Result) == "" && strings.TrimSpace(text) != "" {
		return nil, errors.New("udpipe: empty result")
	}
	return parseCoNLLU(pr.Result)
}

var (
	_ contract.Annotator     = (*Client)(nil)
	_ contract.UpstreamError = upstreamError{}
)
