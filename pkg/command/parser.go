package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseResult 承载文本命令解析后的结构化结果。
type ParseResult struct {
	IsCommand   bool     // 是否检测到命令前缀
	Tokens      []string // 解析后的命令及参数 token（包含命令本身）
	Raw         string   // 原始输入文本
	ArgumentRaw string   // 去除命令后的原始参数串（保留内部空白与换行）
}

// Parser 解析聊天文本，判定是否命令并拆分 token。
type Parser struct {
	Prefix string // 命令前缀，默认 "/"
}

// NewParser 创建带默认前缀的解析器。
func NewParser() Parser {
	return Parser{Prefix: "/"}
}

// Parse 将文本拆解为命令 token。规则参考 Telegram Message.IsCommand，另有两点扩展：
//   - 符号命令（如 "@"）只占一个字符，可与首个参数粘连："/@123 all" 拆为 "@", "123", "all"；
//   - 单词命令可带 "@botname" 后缀，解析时去除。
func (p Parser) Parse(text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ParseResult{Raw: text}
	}

	prefix := p.Prefix
	if prefix == "" {
		prefix = "/"
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ParseResult{Raw: text}
	}
	first := fields[0]
	if !strings.HasPrefix(first, prefix) || len(first) <= len(prefix) {
		return ParseResult{Raw: text}
	}

	commandToken := strings.TrimPrefix(first, prefix)
	glued := ""
	if r, size := utf8.DecodeRuneInString(commandToken); isSymbolCommand(r) {
		glued = commandToken[size:]
		commandToken = commandToken[:size]
	} else if idx := strings.IndexRune(commandToken, '@'); idx > 0 {
		commandToken = commandToken[:idx]
	}
	if commandToken == "" {
		return ParseResult{Raw: text}
	}

	tokens := make([]string, 0, len(fields)+1)
	tokens = append(tokens, commandToken)
	if glued != "" {
		tokens = append(tokens, glued)
	}
	tokens = append(tokens, fields[1:]...)

	argumentRaw := strings.TrimSpace(glued + trimmed[len(first):])

	return ParseResult{
		IsCommand:   true,
		Tokens:      tokens,
		Raw:         text,
		ArgumentRaw: argumentRaw,
	}
}

// isSymbolCommand 判断命令首字符是否为符号（非字母、数字、下划线）。
func isSymbolCommand(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}
