package botcore

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher 定义路由匹配逻辑。
// 返回 true 表示该路由应该处理此 Update。
type Matcher func(update Update) bool

// Handler 定义路由处理逻辑。
// 实际上就是 PipelineInvoker，为了语义清晰起见定义别名。
type Handler PipelineInvoker

// Route 定义单条路由规则。
type Route struct {
	Name    string
	Matcher Matcher
	Handler Handler
}

// Chain 实现了一个基于责任链/路由表的 PipelineInvoker。
// 它按顺序检查路由，一旦匹配成功，就移交给对应的 Handler，并停止后续匹配。
// 如果所有路由都不匹配，且设置了 DefaultHandler，则调用 DefaultHandler。
type Chain struct {
	routes         []Route
	defaultHandler Handler
}

// NewChain 创建一个新的责任链路由器，defaultHandler 可为 nil（未匹配时静默）。
func NewChain(defaultHandler Handler) *Chain {
	return &Chain{
		routes:         make([]Route, 0),
		defaultHandler: defaultHandler,
	}
}

// AddRoute 添加一条路由规则。
func (c *Chain) AddRoute(name string, matcher Matcher, handler Handler) {
	c.routes = append(c.routes, Route{
		Name:    name,
		Matcher: matcher,
		Handler: handler,
	})
}

// Trigger 实现 PipelineInvoker 接口。
func (c *Chain) Trigger(ctx context.Context, update Update, streamID string) <-chan StreamChunk {
	for _, route := range c.routes {
		if route.Matcher(update) {
			return route.Handler.Trigger(ctx, update, streamID)
		}
	}

	if c.defaultHandler != nil {
		return c.defaultHandler.Trigger(ctx, update, streamID)
	}

	// 既无匹配也无默认处理器，返回空流 (静默)
	return nil
}

// MatchCommand 返回一个匹配命令标记的 Matcher，忽略行首空白。
// 标记以字母、数字或下划线结尾时（如 "/at"），其后必须是空白或文本结束，
// 因此 "/atlas" 不会命中；符号结尾的标记（如 "/@"）允许与参数粘连。
func MatchCommand(marker string) Matcher {
	last, _ := utf8.DecodeLastRuneInString(marker)
	word := isWordRune(last)
	return func(u Update) bool {
		text := strings.TrimLeft(u.Text, " \t\r\n")
		if marker == "" || !strings.HasPrefix(text, marker) {
			return false
		}
		rest := text[len(marker):]
		if rest == "" || !word {
			return true
		}
		next, _ := utf8.DecodeRuneInString(rest)
		return unicode.IsSpace(next)
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MatchPlatform 返回一个只接受指定平台事件的 Matcher。
func MatchPlatform(platform string) Matcher {
	return func(u Update) bool {
		return u.Platform() == platform
	}
}

// MatchSender 返回一个只接受白名单用户的 Matcher。
// 白名单为空时不做限制。
func MatchSender(allowed ...string) Matcher {
	if len(allowed) == 0 {
		return MatchAny()
	}
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return func(u Update) bool {
		_, ok := set[u.SenderID]
		return ok
	}
}

// MatchAll 组合多个 Matcher，全部命中才算命中。
func MatchAll(matchers ...Matcher) Matcher {
	return func(u Update) bool {
		for _, m := range matchers {
			if m != nil && !m(u) {
				return false
			}
		}
		return true
	}
}

// MatchAny 返回一个总是匹配的 Matcher。
func MatchAny() Matcher {
	return func(u Update) bool {
		return true
	}
}
