package mention

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

type sentMessage struct {
	groupID string
	msg     message.Chain
}

type fakePlatform struct {
	remain    int
	remainErr error
	sendErr   error
	queried   []string
	sent      []sentMessage
}

func (f *fakePlatform) RemainingAtAll(ctx context.Context, groupID string) (int, error) {
	f.queried = append(f.queried, groupID)
	return f.remain, f.remainErr
}

func (f *fakePlatform) SendGroupMessage(ctx context.Context, groupID string, msg message.Chain) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{groupID: groupID, msg: msg})
	return nil
}

func groupUpdate(chatID string, chain message.Chain) botcore.Update {
	return botcore.Update{
		SenderID: "10001",
		ChatID:   chatID,
		ChatType: botcore.ChatTypeGroup,
		Text:     chain.PlainText(),
		Message:  chain,
	}
}

func TestDispatcherQuotaZeroBlocksAll(t *testing.T) {
	platform := &fakePlatform{remain: 0}
	d := NewDispatcher(platform)

	err := d.Handle(context.Background(), groupUpdate("555", message.Chain{message.Text{Text: "/@ 123 all hello"}}))
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected quota error, got %v", err)
	}
	msg, ok := UserMessage(err)
	if !ok || msg != "当前bot在群聊: 123 中，可用@全体成员的次数为0，请稍后再试。" {
		t.Fatalf("unexpected user message: %q", msg)
	}
	if len(platform.sent) != 0 {
		t.Fatalf("nothing should be sent when quota is exhausted")
	}
	if !reflect.DeepEqual(platform.queried, []string{"123"}) {
		t.Fatalf("quota should be queried for the resolved group, got %v", platform.queried)
	}
}

func TestDispatcherIDTargetIgnoresQuota(t *testing.T) {
	platform := &fakePlatform{remain: 0}
	d := NewDispatcher(platform)

	if err := d.Handle(context.Background(), groupUpdate("555", message.Chain{message.Text{Text: "/@ 1,2 hi"}})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(platform.queried) != 0 {
		t.Fatalf("quota must not be queried for id targets")
	}
	if len(platform.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(platform.sent))
	}
	got := platform.sent[0]
	want := message.Chain{
		message.At{QQ: "1"},
		message.At{QQ: "2"},
		message.Text{Text: "\n\n"},
		message.Text{Text: "hi"},
	}
	if got.groupID != "555" {
		t.Fatalf("expected current group 555, got %s", got.groupID)
	}
	if !reflect.DeepEqual(got.msg, want) {
		t.Fatalf("unexpected payload: %#v", got.msg)
	}
}

func TestDispatcherAllWithQuotaCarriesAttachments(t *testing.T) {
	platform := &fakePlatform{remain: 3}
	d := NewDispatcher(platform)

	chain := message.Chain{
		message.Text{Text: "/@ 777 ALL 今晚开会"},
		message.Image{URL: "https://example.com/a.png"},
		message.Text{Text: " 记得带电脑"},
	}
	if err := d.Handle(context.Background(), groupUpdate("555", chain)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := message.Chain{
		message.MentionAll(),
		message.Text{Text: "\n\n"},
		message.Text{Text: "今晚开会"},
		message.Image{URL: "https://example.com/a.png"},
		message.Text{Text: " 记得带电脑"},
	}
	if len(platform.sent) != 1 || platform.sent[0].groupID != "777" {
		t.Fatalf("unexpected sends: %#v", platform.sent)
	}
	if !reflect.DeepEqual(platform.sent[0].msg, want) {
		t.Fatalf("unexpected payload: %#v", platform.sent[0].msg)
	}
}

func TestDispatcherCommandAfterMention(t *testing.T) {
	platform := &fakePlatform{}
	d := NewDispatcher(platform)

	chain := message.Chain{
		message.At{QQ: "bot"},
		message.Text{Text: " /@ 42 ping"},
		message.Face{ID: "1"},
	}
	if err := d.Handle(context.Background(), groupUpdate("555", chain)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := message.Chain{message.At{QQ: "42"}, message.Text{Text: "\n\n"}, message.Text{Text: "ping"}, message.Face{ID: "1"}}
	if !reflect.DeepEqual(platform.sent[0].msg, want) {
		t.Fatalf("unexpected payload: %#v", platform.sent[0].msg)
	}
}

func TestDispatcherPrivateChatNeedsGroup(t *testing.T) {
	platform := &fakePlatform{remain: 1}
	d := NewDispatcher(platform)

	update := botcore.Update{ChatID: "10001", ChatType: botcore.ChatTypePrivate, Text: "/@ all hi"}
	err := d.Handle(context.Background(), update)
	if !errors.Is(err, ErrNoGroupContext) {
		t.Fatalf("expected group context error, got %v", err)
	}
	if len(platform.queried) != 0 || len(platform.sent) != 0 {
		t.Fatalf("platform must not be touched")
	}

	update.Text = "/@ 888 all hi"
	if err := d.Handle(context.Background(), update); err != nil {
		t.Fatalf("explicit group from private chat: %v", err)
	}
	if platform.sent[0].groupID != "888" {
		t.Fatalf("unexpected group: %s", platform.sent[0].groupID)
	}
}

func TestDispatcherMalformed(t *testing.T) {
	d := NewDispatcher(&fakePlatform{})
	err := d.Handle(context.Background(), groupUpdate("1", message.Chain{message.Text{Text: "/@ abc hi"}}))
	if !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if msg, _ := UserMessage(err); msg != "指令格式错误，请使用 `/@ [群ID] 目标用户 [内容]` 的格式。" {
		t.Fatalf("unexpected user message: %q", msg)
	}
}

func TestDispatcherPlatformErrorPropagates(t *testing.T) {
	sendErr := errors.New("retcode 100")
	d := NewDispatcher(&fakePlatform{sendErr: sendErr})
	err := d.Handle(context.Background(), groupUpdate("1", message.Chain{message.Text{Text: "/@ 2 hi"}}))
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped platform error, got %v", err)
	}
	if _, ok := UserMessage(err); ok {
		t.Fatalf("platform errors are not user errors")
	}
}

func TestDispatcherOversizedGroupIsMalformed(t *testing.T) {
	platform := &fakePlatform{remain: 1}
	d := NewDispatcher(platform)

	err := d.Handle(context.Background(), groupUpdate("1", message.Chain{message.Text{Text: "/@ 99999999999999999999999 all hi"}}))
	if !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if len(platform.queried) != 0 || len(platform.sent) != 0 {
		t.Fatalf("platform must not be reached, queried=%v sent=%d", platform.queried, len(platform.sent))
	}
}

func TestMentionsAll(t *testing.T) {
	all := BuildPayload(ParsedCommand{Target: Target{All: true}, Content: "hi"}, nil)
	if !mentionsAll(all) {
		t.Fatalf("expected at-all payload: %#v", all)
	}
	ids := BuildPayload(ParsedCommand{Target: Target{IDs: []string{"1"}}}, message.Chain{message.At{QQ: "2"}})
	if mentionsAll(ids) {
		t.Fatalf("id payload must not mention all: %#v", ids)
	}
}
