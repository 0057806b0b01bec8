package chat

import "testing"

func TestContext_Append(t *testing.T) {
	ctx := NewContext()
	ctx.AppendText(RoleSystem, "instructions")
	ctx.AppendText(RoleUser, "hello")

	if ctx.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", ctx.Len())
	}
	if ctx.Messages()[0].Role != RoleSystem {
		t.Error("first message should be system")
	}
	if ctx.Messages()[1].Role != RoleUser {
		t.Error("second message should be user")
	}
}

func TestContext_CopyIsIndependent(t *testing.T) {
	ctx := NewContext()
	ctx.AppendText(RoleUser, "original")

	copied := ctx.Copy()
	copied.AppendText(RoleSystem, "added to copy")
	copied.Append(RoleUser, Text("image follows"), ImagePart{Data: []byte{1, 2}, MIMEType: "image/jpeg"})

	if ctx.Len() != 1 {
		t.Errorf("original must be unchanged after copy mutation, got %d messages", ctx.Len())
	}
	if copied.Len() != 3 {
		t.Errorf("copy should carry appended messages, got %d", copied.Len())
	}
}

func TestContext_CopyPreservesOrder(t *testing.T) {
	ctx := NewContext()
	ctx.AppendText(RoleUser, "one")
	ctx.AppendText(RoleAssistant, "two")

	copied := ctx.Copy()
	msgs := copied.Messages()
	if msgs[0].Parts[0].(TextPart).Text != "one" || msgs[1].Parts[0].(TextPart).Text != "two" {
		t.Error("copy should preserve message order")
	}
}

func TestContext_LastText(t *testing.T) {
	ctx := NewContext()
	if ctx.LastText() != "" {
		t.Error("empty context should have no last text")
	}

	ctx.AppendText(RoleUser, "first")
	ctx.Append(RoleUser, ImagePart{Data: []byte{1}})
	if ctx.LastText() != "first" {
		t.Errorf("image-only message should be skipped, got %q", ctx.LastText())
	}

	ctx.AppendText(RoleAssistant, "reply")
	if ctx.LastText() != "reply" {
		t.Errorf("expected most recent text, got %q", ctx.LastText())
	}
}
