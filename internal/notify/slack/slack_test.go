package slack

import (
	"context"
	"fmt"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/slipway/internal/notify"
)

type mockClient struct {
	channels []string
	calls    int
	err      error
}

func (m *mockClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.calls++
	m.channels = append(m.channels, channelID)
	return channelID, "1", m.err
}

func TestNewValidation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "C1"}); err == nil {
		t.Error("expected error for missing token")
	}
	if _, err := New(AdapterOpts{Token: "xoxb-x"}); err == nil {
		t.Error("expected error for missing channel")
	}
	if _, err := New(AdapterOpts{Token: "xoxb-x", ChannelID: "C1"}); err != nil {
		t.Errorf("New: %v", err)
	}
}

func TestPost(t *testing.T) {
	mc := &mockClient{}
	a, err := New(AdapterOpts{Client: mc, ChannelID: "C1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = a.Post(context.Background(), notify.Event{Title: "Task 1 succeeded", Severity: "success"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if mc.calls != 1 || mc.channels[0] != "C1" {
		t.Errorf("calls = %d, channels = %v", mc.calls, mc.channels)
	}
}

func TestPostError(t *testing.T) {
	mc := &mockClient{err: fmt.Errorf("channel_not_found")}
	a, _ := New(AdapterOpts{Client: mc, ChannelID: "C1"})

	if err := a.Post(context.Background(), notify.Event{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(notify.Event{
		Title:    "Task 3 failed",
		Body:     "log tail",
		Severity: "error",
		Fields:   []notify.Field{{Name: "Kind", Value: "build"}},
	})
	if att.Color != "#cc0000" {
		t.Errorf("color = %q", att.Color)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Kind" {
		t.Errorf("fields = %v", att.Fields)
	}
}

func TestColorFor(t *testing.T) {
	if colorFor("success") == colorFor("error") {
		t.Error("success and error must differ")
	}
	if colorFor("anything-else") != colorFor("info") {
		t.Error("unknown severity should fall back to info")
	}
}
