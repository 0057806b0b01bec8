package chat

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

type ImagePart struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

type AudioPart struct {
	Data   []byte
	Format string
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}
func (AudioPart) isPart() {}

func Text(s string) TextPart { return TextPart{Text: s} }

type Message struct {
	Role  Role
	Parts []Part
}

// Context is the rolling conversation owned by the session orchestrator.
// Pipeline stages never mutate a Context they were handed; they call Copy
// and extend the copy.
type Context struct {
	messages []Message
}

func NewContext() *Context {
	return &Context{}
}

func (c *Context) Append(role Role, parts ...Part) {
	c.messages = append(c.messages, Message{Role: role, Parts: parts})
}

func (c *Context) AppendText(role Role, text string) {
	c.Append(role, TextPart{Text: text})
}

// Messages returns the backing slice; callers treat it as read-only.
func (c *Context) Messages() []Message {
	return c.messages
}

func (c *Context) Len() int {
	return len(c.messages)
}

// Copy duplicates the message sequence. Parts are shared: messages are
// append-only and parts immutable once added, so a shallow part copy is safe.
func (c *Context) Copy() *Context {
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	return &Context{messages: messages}
}

// LastText returns the text of the most recent message carrying a text part,
// or "".
func (c *Context) LastText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		for _, p := range c.messages[i].Parts {
			if t, ok := p.(TextPart); ok {
				return t.Text
			}
		}
	}
	return ""
}
