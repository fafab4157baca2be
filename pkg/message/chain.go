package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Chain 是有序的消息段列表，JSON 形式为 OneBot v11 的消息段数组。
type Chain []Segment

// wireSegment 是入站消息段的中间结构。
// data 中的值可能是字符串也可能是数字（不同 OneBot 实现不一致），统一按原始 JSON 接收。
type wireSegment struct {
	Type string                     `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

// outboundSegment 是出站消息段结构，data 统一使用字符串。
type outboundSegment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// MarshalJSON 输出数组格式的消息段。
func (c Chain) MarshalJSON() ([]byte, error) {
	out := make([]outboundSegment, 0, len(c))
	for _, seg := range c {
		if seg == nil {
			continue
		}
		out = append(out, outboundSegment{Type: string(seg.Type()), Data: seg.fields()})
	}
	return json.Marshal(out)
}

// UnmarshalJSON 同时接受数组格式与 CQ 码字符串格式（message_format=string）。
func (c *Chain) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("decode cq string: %w", err)
		}
		*c = ParseCQ(text)
		return nil
	}

	var raw []wireSegment
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("decode segment array: %w", err)
	}
	chain := make(Chain, 0, len(raw))
	for _, w := range raw {
		fields := make(map[string]string, len(w.Data))
		for k, v := range w.Data {
			fields[k] = rawString(v)
		}
		if seg, ok := fromFields(w.Type, fields); ok {
			chain = append(chain, seg)
		}
	}
	*c = chain
	return nil
}

// rawString 将字符串、数字、布尔值统一转为字符串，null 视为空。
func rawString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

// PlainText 拼接链中全部文本段。
func (c Chain) PlainText() string {
	var b strings.Builder
	for _, seg := range c {
		if t, ok := seg.(Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// String 以 CQ 码形式渲染消息链，用于日志。
func (c Chain) String() string {
	var b strings.Builder
	for _, seg := range c {
		if seg == nil {
			continue
		}
		if t, ok := seg.(Text); ok {
			b.WriteString(escapeText(t.Text))
			continue
		}
		fields := seg.fields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("[CQ:")
		b.WriteString(string(seg.Type()))
		for _, k := range keys {
			b.WriteByte(',')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(escapeParam(fields[k]))
		}
		b.WriteByte(']')
	}
	return b.String()
}
