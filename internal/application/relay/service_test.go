package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/infrastructure/action"
	"github.com/doeshing/chatwork/internal/infrastructure/conversation"
	"github.com/doeshing/chatwork/internal/pkg/logger"
	"github.com/doeshing/chatwork/internal/ports"
)

type fakeStream struct {
	fragments chan string
	err       error
}

func newFakeStream(err error, fragments ...string) *fakeStream {
	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return &fakeStream{fragments: ch, err: err}
}

func (f *fakeStream) Fragments() <-chan string { return f.fragments }
func (f *fakeStream) Err() error               { return f.err }

type fakeAssistant struct {
	stream    *fakeStream
	streamErr error
	reply     string
	chatErr   error
}

func (f *fakeAssistant) Chat(ctx context.Context, prompt, sessionKey string) (string, error) {
	return f.reply, f.chatErr
}

func (f *fakeAssistant) ChatStream(ctx context.Context, prompt, sessionKey string) (ports.FragmentStream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream, nil
}

type surfaceCall struct {
	kind string
	text string
	seq  int
}

type fakeSurface struct {
	openErr   error
	updateNak map[int]bool
	calls     []surfaceCall
}

func (f *fakeSurface) Open(ctx context.Context, replyTo string) (domain.RenderTarget, error) {
	if f.openErr != nil {
		return domain.RenderTarget{}, f.openErr
	}
	f.calls = append(f.calls, surfaceCall{kind: "open"})
	return domain.RenderTarget{CardID: "card", ElementID: "elem_md", MessageID: replyTo}, nil
}

func (f *fakeSurface) Update(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool {
	f.calls = append(f.calls, surfaceCall{kind: "update", text: fullText, seq: seq})
	return !f.updateNak[seq]
}

func (f *fakeSurface) Finalize(ctx context.Context, target domain.RenderTarget, fullText string, seq int) bool {
	f.calls = append(f.calls, surfaceCall{kind: "finalize", text: fullText, seq: seq})
	return true
}

func (f *fakeSurface) ReplyText(ctx context.Context, replyTo string, text string) error {
	f.calls = append(f.calls, surfaceCall{kind: "reply", text: text})
	return nil
}

type fakeRunner struct {
	calls   int
	lastReq domain.ActionRequest
}

func (f *fakeRunner) Execute(ctx context.Context, req domain.ActionRequest) domain.ExecutionReport {
	f.calls++
	f.lastReq = req
	return domain.ExecutionReport{Success: true, Action: req.Type, Detail: "done"}
}

func newService(assistant *fakeAssistant, surface *fakeSurface, autoExecute bool) (*Service, *fakeRunner) {
	runner := &fakeRunner{}
	svc := &Service{
		Store:       conversation.NewStore(20),
		Assistant:   assistant,
		Surface:     surface,
		Parser:      action.NewParser(),
		Runner:      runner,
		Logger:      logger.NewStd(false),
		AutoExecute: autoExecute,
	}
	return svc, runner
}

func inbound() domain.InboundMessage {
	return domain.InboundMessage{
		SessionKey: "feishu_oc1",
		MessageID:  "om_1",
		ChatID:     "oc1",
		Text:       "hello",
	}
}

func TestHandleMessageStreamsWithIncreasingSequence(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(nil, "Hel", "lo, ", "world")}
	surface := &fakeSurface{}
	svc, _ := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	var lastSeq int
	var lastText string
	for _, call := range surface.calls {
		if call.kind != "update" && call.kind != "finalize" {
			continue
		}
		if call.seq != lastSeq+1 {
			t.Fatalf("sequence jumped from %d to %d", lastSeq, call.seq)
		}
		if !strings.HasPrefix(call.text, lastText) {
			t.Fatalf("text %q is not a prefix extension of %q", call.text, lastText)
		}
		lastSeq = call.seq
		lastText = call.text
	}
	if lastText != "Hello, world" {
		t.Fatalf("final text = %q", lastText)
	}

	final := surface.calls[len(surface.calls)-1]
	if final.kind != "finalize" {
		t.Fatalf("last call = %q, want finalize", final.kind)
	}
}

func TestHandleMessageAppendsTurns(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(nil, "answer")}
	surface := &fakeSurface{}
	svc, _ := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatal(err)
	}

	turns := svc.Store.Get("feishu_oc1").Turns
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", turns)
	}
	if turns[1].Content != "answer" {
		t.Fatalf("assistant turn = %q", turns[1].Content)
	}
}

func TestHandleMessageFallsBackWhenOpenFails(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(nil, "plain ", "reply")}
	surface := &fakeSurface{openErr: errors.New("card service down")}
	svc, _ := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatal(err)
	}

	for _, call := range surface.calls {
		if call.kind == "update" || call.kind == "finalize" {
			t.Fatalf("streaming call %q after open failure", call.kind)
		}
	}
	last := surface.calls[len(surface.calls)-1]
	if last.kind != "reply" || last.text != "plain reply" {
		t.Fatalf("fallback reply = %+v", last)
	}
}

func TestHandleMessageFinalizesPartialOnStreamError(t *testing.T) {
	streamErr := errors.New("process died")
	assistant := &fakeAssistant{stream: newFakeStream(streamErr, "partial out")}
	surface := &fakeSurface{}
	svc, _ := newService(assistant, surface, false)

	err := svc.HandleMessage(context.Background(), inbound())
	if !errors.Is(err, streamErr) {
		t.Fatalf("expected stream error, got %v", err)
	}

	final := surface.calls[len(surface.calls)-1]
	if final.kind != "finalize" || final.text != "partial out" {
		t.Fatalf("expected finalize with partial text, got %+v", final)
	}
}

func TestHandleMessageSkipsRejectedUpdateAndContinues(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(nil, "a", "b")}
	surface := &fakeSurface{updateNak: map[int]bool{1: true}}
	svc, _ := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatalf("a rejected update must not fail the relay: %v", err)
	}
	final := surface.calls[len(surface.calls)-1]
	if final.kind != "finalize" || final.text != "ab" {
		t.Fatalf("final call = %+v", final)
	}
}

func TestHandleMessageExecutesParsedAction(t *testing.T) {
	response := "On it.\n```json\n{\"action\":\"execute\",\"command\":\"echo hi\"}\n```\n"
	assistant := &fakeAssistant{stream: newFakeStream(nil, response)}
	surface := &fakeSurface{}
	svc, runner := newService(assistant, surface, true)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatal(err)
	}
	if runner.calls != 1 {
		t.Fatalf("runner called %d times, want 1", runner.calls)
	}
	if runner.lastReq.Command != "echo hi" {
		t.Fatalf("command = %q", runner.lastReq.Command)
	}

	last := surface.calls[len(surface.calls)-1]
	if last.kind != "reply" || !strings.Contains(last.text, "done") {
		t.Fatalf("expected action report reply, got %+v", last)
	}
}

func TestHandleMessageDoesNotExecuteWhenAutoExecuteDisabled(t *testing.T) {
	response := "```json\n{\"action\":\"execute\",\"command\":\"echo hi\"}\n```"
	assistant := &fakeAssistant{stream: newFakeStream(nil, response)}
	surface := &fakeSurface{}
	svc, runner := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err != nil {
		t.Fatal(err)
	}
	if runner.calls != 0 {
		t.Fatalf("runner called %d times, want 0", runner.calls)
	}
}

func TestHandleMessageRepliesErrorWhenAssistantUnavailable(t *testing.T) {
	assistant := &fakeAssistant{streamErr: errors.New("claude CLI not found")}
	surface := &fakeSurface{}
	svc, _ := newService(assistant, surface, false)

	if err := svc.HandleMessage(context.Background(), inbound()); err == nil {
		t.Fatal("expected error")
	}
	if len(surface.calls) != 1 || surface.calls[0].kind != "reply" {
		t.Fatalf("expected a single error reply, got %+v", surface.calls)
	}
	if !strings.Contains(surface.calls[0].text, "claude CLI not found") {
		t.Fatalf("reply = %q", surface.calls[0].text)
	}
}

func TestChatReturnsActionResult(t *testing.T) {
	reply := "Writing it.\n```json\n{\"action\":\"write_file\",\"path\":\"/tmp/x\",\"content\":\"hi\"}\n```"
	assistant := &fakeAssistant{reply: reply}
	svc, runner := newService(assistant, &fakeSurface{}, false)

	result, err := svc.Chat(context.Background(), "api_s1", "write a file", true)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Action == nil || result.Action.Type != domain.ActionWriteFile {
		t.Fatalf("action = %+v", result.Action)
	}
	if runner.calls != 1 || result.ActionResult == "" {
		t.Fatalf("expected executed action, got calls=%d result=%q", runner.calls, result.ActionResult)
	}
}

func TestChatWithoutAutoExecuteReportsActionOnly(t *testing.T) {
	reply := "```json\n{\"action\":\"read_file\",\"path\":\"/tmp/a\"}\n```"
	assistant := &fakeAssistant{reply: reply}
	svc, runner := newService(assistant, &fakeSurface{}, false)

	result, err := svc.Chat(context.Background(), "api_s1", "read it", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action == nil || runner.calls != 0 {
		t.Fatalf("action=%+v calls=%d", result.Action, runner.calls)
	}
}

func TestChatIncludesContextFromEarlierTurns(t *testing.T) {
	assistant := &fakeAssistant{reply: "second answer"}
	svc, _ := newService(assistant, &fakeSurface{}, false)

	if _, err := svc.Chat(context.Background(), "s", "first question", false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Chat(context.Background(), "s", "second question", false); err != nil {
		t.Fatal(err)
	}

	turns := svc.Store.Get("s").Turns
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
}

func TestStreamChatDeliversFragmentsInOrder(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(nil, "Hel", "lo ", "there")}
	svc, _ := newService(assistant, &fakeSurface{}, false)

	var got []string
	result, err := svc.StreamChat(context.Background(), "s", "hi", func(frag string) {
		got = append(got, frag)
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, "") != "Hello there" {
		t.Fatalf("fragments = %q", got)
	}
	if result.Response != "Hello there" {
		t.Fatalf("response = %q", result.Response)
	}
	turns := svc.Store.Get("s").Turns
	if len(turns) != 2 || turns[1].Content != "Hello there" {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestStreamChatReturnsStreamErrorWithPartial(t *testing.T) {
	assistant := &fakeAssistant{stream: newFakeStream(errors.New("process died"), "partial ")}
	svc, _ := newService(assistant, &fakeSurface{}, false)

	result, err := svc.StreamChat(context.Background(), "s", "hi", func(string) {})
	if err == nil {
		t.Fatal("expected stream error")
	}
	if result.Response != "partial " {
		t.Fatalf("response = %q", result.Response)
	}
}

func TestStreamChatSurfacesParsedAction(t *testing.T) {
	reply := "Run this:\n```json\n{\"action\": \"execute\", \"command\": \"ls /tmp\"}\n```"
	assistant := &fakeAssistant{stream: newFakeStream(nil, reply)}
	svc, runner := newService(assistant, &fakeSurface{}, false)

	result, err := svc.StreamChat(context.Background(), "s", "hi", func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	if result.Action == nil || result.Action.Command != "ls /tmp" {
		t.Fatalf("action = %+v", result.Action)
	}
	if runner.calls != 0 {
		t.Fatalf("nothing should have been executed, got %d calls", runner.calls)
	}
}
