package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/botcore"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/mention"
	"github.com/IMBotPlatform/IMBotAtSomebody/pkg/message"
)

func TestHTTPClientSendGroupMsg(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"message_id":11}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL+"/", "tok", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	api := NewAPI(client)

	chain := message.Chain{message.At{QQ: "123"}, message.Text{Text: " hi"}}
	if err := api.SendGroupMessage(context.Background(), "555", chain); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/send_group_msg" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected authorization: %q", gotAuth)
	}
	var params struct {
		GroupID int64 `json:"group_id"`
		Message []struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		} `json:"message"`
	}
	if err := json.Unmarshal(gotBody, &params); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if params.GroupID != 555 || len(params.Message) != 2 {
		t.Fatalf("unexpected params: %s", gotBody)
	}
	if params.Message[0].Type != "at" || params.Message[0].Data["qq"] != "123" {
		t.Fatalf("unexpected first segment: %+v", params.Message[0])
	}
}

func TestHTTPClientRemainingAtAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_group_at_all_remain" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","retcode":0,"data":{"can_at_all":true,"remain_at_all_count_for_group":10,"remain_at_all_count_for_uin":2}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	remain, err := NewAPI(client).GetGroupAtAllRemain(context.Background(), "555")
	if err != nil {
		t.Fatalf("get remain: %v", err)
	}
	if !remain.CanAtAll || remain.RemainForGroup != 10 || remain.RemainForUin != 2 {
		t.Fatalf("unexpected remain: %+v", remain)
	}
}

func TestHTTPClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/send_group_msg":
			_, _ = w.Write([]byte(`{"status":"failed","retcode":1400,"message":"bad request"}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Call(context.Background(), ActionSendGroupMsg, GroupParams{GroupID: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetCode != 1400 {
		t.Fatalf("expected APIError 1400, got %v", err)
	}

	if _, err := client.Call(context.Background(), ActionGetGroupAtAllRemain, GroupParams{GroupID: 1}); err == nil {
		t.Fatalf("expected http status error")
	}
}

func TestNewHTTPClientRequiresURL(t *testing.T) {
	if _, err := NewHTTPClient("", "", 0); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestAPIRejectsInvalidGroupID(t *testing.T) {
	api := NewAPI(CallerFunc(func(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
		t.Fatalf("caller must not be reached")
		return nil, nil
	}))
	if err := api.SendGroupMessage(context.Background(), "abc", nil); err == nil {
		t.Fatalf("expected invalid group id error")
	}
}

func TestAPIResponseErr(t *testing.T) {
	cases := []struct {
		name string
		resp APIResponse
		ok   bool
	}{
		{name: "ok", resp: APIResponse{Status: "ok", RetCode: 0}, ok: true},
		{name: "async", resp: APIResponse{Status: "async", RetCode: 1}, ok: true},
		{name: "failed", resp: APIResponse{Status: "failed", RetCode: 100}, ok: false},
		{name: "failed zero", resp: APIResponse{Status: "failed", RetCode: 0}, ok: false},
	}
	for _, tc := range cases {
		err := tc.resp.Err("x")
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
	}
}

func TestRemainingAtAllMissingCountBlocksAll(t *testing.T) {
	bodies := map[string]string{
		"field missing": `{"status":"ok","retcode":0,"data":{"can_at_all":false}}`,
		"data null":     `{"status":"ok","retcode":0,"data":null}`,
	}
	for name, body := range bodies {
		sent := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/send_group_msg" {
				sent++
			}
			_, _ = w.Write([]byte(body))
		}))

		client, err := NewHTTPClient(srv.URL, "", 0)
		if err != nil {
			srv.Close()
			t.Fatalf("%s: new client: %v", name, err)
		}
		api := NewAPI(client)

		remain, err := api.RemainingAtAll(context.Background(), "555")
		if err != nil || remain != 0 {
			srv.Close()
			t.Fatalf("%s: expected 0 remain, got %d, %v", name, remain, err)
		}

		update := botcore.Update{
			SenderID: "10001",
			ChatID:   "555",
			ChatType: botcore.ChatTypeGroup,
			Message:  message.Chain{message.Text{Text: "/@ all hi"}},
		}
		err = mention.NewDispatcher(api).Handle(context.Background(), update)
		srv.Close()

		var quotaErr *mention.QuotaExhaustedError
		if !errors.As(err, &quotaErr) || quotaErr.GroupID != "555" {
			t.Fatalf("%s: expected QuotaExhaustedError, got %v", name, err)
		}
		if sent != 0 {
			t.Fatalf("%s: message must not be sent", name)
		}
	}
}
