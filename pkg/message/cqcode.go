package message

import "strings"

var (
	textEscaper   = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;")
	paramEscaper  = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")
	cqUnescaper   = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
	cqCodeOpening = "[CQ:"
)

func escapeText(s string) string  { return textEscaper.Replace(s) }
func escapeParam(s string) string { return paramEscaper.Replace(s) }
func unescapeCQ(s string) string  { return cqUnescaper.Replace(s) }

// ParseCQ 解析 CQ 码字符串，例如 "hi[CQ:at,qq=123]"。
// 未闭合的 CQ 码按普通文本处理，不支持的类型被丢弃。
func ParseCQ(s string) Chain {
	var chain Chain
	appendText := func(raw string) {
		if raw == "" {
			return
		}
		chain = append(chain, Text{Text: unescapeCQ(raw)})
	}

	for len(s) > 0 {
		start := strings.Index(s, cqCodeOpening)
		if start < 0 {
			appendText(s)
			break
		}
		appendText(s[:start])

		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			appendText(s[start:])
			break
		}
		code := s[start+len(cqCodeOpening) : start+end]
		s = s[start+end+1:]

		parts := strings.Split(code, ",")
		fields := make(map[string]string, len(parts)-1)
		for _, p := range parts[1:] {
			if k, v, ok := strings.Cut(p, "="); ok {
				fields[k] = unescapeCQ(v)
			}
		}
		if seg, ok := fromFields(parts[0], fields); ok {
			chain = append(chain, seg)
		}
	}
	return chain
}
