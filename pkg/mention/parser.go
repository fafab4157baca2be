package mention

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultMarker 是默认的命令标记。
const DefaultMarker = "/@"

// Target 描述提及对象：全体成员或一组数字 ID。
type Target struct {
	All bool
	IDs []string
}

// ParsedCommand 是 "/@ [群ID] <all|id1,id2,...> [内容]" 的结构化结果。
type ParsedCommand struct {
	GroupID string // 显式指定的群号，空串表示未指定
	Target  Target
	Content string // 去除首尾空白后的正文
}

// HasGroup 判断命令是否显式指定了群号。
func (c ParsedCommand) HasGroup() bool {
	return c.GroupID != ""
}

// Parser 按命令标记解析原始命令串。
type Parser struct {
	marker  string
	pattern *regexp.Regexp
}

// NewParser 创建解析器，marker 为空时使用 DefaultMarker。
func NewParser(marker string) *Parser {
	if marker == "" {
		marker = DefaultMarker
	}
	// 群号可选且必须后跟空白；目标为 all（不区分大小写）或逗号分隔的数字列表；其余均为正文（可跨行）。
	pattern := regexp.MustCompile(`(?s)^` + regexp.QuoteMeta(marker) + `\s*(?:(\d+)\s+)?((?i:all)|\d[\d,]*\d|\d)\s*(.*)$`)
	return &Parser{marker: marker, pattern: pattern}
}

// Marker 返回解析器使用的命令标记。
func (p *Parser) Marker() string {
	return p.marker
}

// Parse 解析命令串，不匹配、ID 非纯数字或群号超出 int64 范围时返回 false。
// 不检查 ID 是否重复或是否存在。
func (p *Parser) Parse(raw string) (ParsedCommand, bool) {
	m := p.pattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ParsedCommand{}, false
	}

	cmd := ParsedCommand{
		GroupID: m[1],
		Content: strings.TrimSpace(m[3]),
	}
	// 群号需能表示为 OneBot 的 int64 group_id。
	if cmd.HasGroup() {
		if _, err := strconv.ParseInt(cmd.GroupID, 10, 64); err != nil {
			return ParsedCommand{}, false
		}
	}

	target := strings.ToLower(m[2])
	if target == "all" {
		cmd.Target = Target{All: true}
		return cmd, true
	}

	ids := make([]string, 0, strings.Count(target, ",")+1)
	for _, tok := range strings.Split(target, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !isNumeric(tok) {
			return ParsedCommand{}, false
		}
		ids = append(ids, tok)
	}
	if len(ids) == 0 {
		return ParsedCommand{}, false
	}
	cmd.Target = Target{IDs: ids}
	return cmd, true
}

var defaultParser = NewParser(DefaultMarker)

// ParseCommand 使用默认标记解析命令串。
func ParseCommand(raw string) (ParsedCommand, bool) {
	return defaultParser.Parse(raw)
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
