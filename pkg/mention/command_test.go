package mention

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/command"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

func runCommand(t *testing.T, d *Dispatcher, update botcore.Update) []botcore.StreamChunk {
	t.Helper()
	mgr := command.NewManager(NewCommandFactory("@", d))
	ch := mgr.Trigger(context.Background(), update, "stream")

	var chunks []botcore.StreamChunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatalf("command did not finish")
		}
	}
}

func TestCommandSuccessIsSilent(t *testing.T) {
	platform := &fakePlatform{remain: 1}
	chunks := runCommand(t, NewDispatcher(platform), groupUpdate("9", message.Chain{message.Text{Text: "/@ all hi"}}))

	if len(platform.sent) != 1 {
		t.Fatalf("expected message to be sent")
	}
	if len(chunks) != 1 || chunks[0].Payload != botcore.NoResponse {
		t.Fatalf("expected single NoResponse chunk, got %#v", chunks)
	}
}

func TestCommandRepliesUserErrors(t *testing.T) {
	platform := &fakePlatform{remain: 0}
	chunks := runCommand(t, NewDispatcher(platform), groupUpdate("9", message.Chain{message.Text{Text: "/@ all hi"}}))

	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Content)
	}
	if got := b.String(); got != "当前bot在群聊: 9 中，可用@全体成员的次数为0，请稍后再试。\n" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if !chunks[len(chunks)-1].IsFinal {
		t.Fatalf("stream must end with a final chunk")
	}
}

func TestCommandGluedMarker(t *testing.T) {
	platform := &fakePlatform{}
	runCommand(t, NewDispatcher(platform), groupUpdate("9", message.Chain{message.Text{Text: "/@10001 上号"}}))
	if len(platform.sent) != 1 {
		t.Fatalf("expected message to be sent")
	}
	if at, ok := platform.sent[0].msg[0].(message.At); !ok || at.QQ != "10001" {
		t.Fatalf("unexpected first segment: %#v", platform.sent[0].msg[0])
	}
}
