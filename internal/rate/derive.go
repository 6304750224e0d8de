package rate

import (
	"encoding/json"
	"net/url"
	"strings"
)

// DeriveKeyFromAnnotatorOptions 按标注器名与其原样 Options JSON 推导限流分组键。
// 远端标注器以 base_url 的 host 区分分组；无 base_url 时仅用标注器名。
func DeriveKeyFromAnnotatorOptions(annotator string, raw json.RawMessage) LimitKey {
	var obj struct {
		BaseURL string `json:"base_url"`
	}
	_ = json.Unmarshal(raw, &obj)
	host := ""
	if s := strings.TrimSpace(obj.BaseURL); s != "" {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			host = strings.ToLower(u.Host)
		}
	}
	if host == "" {
		return LimitKey(annotator)
	}
	return LimitKey(annotator + ":" + host)
}
