package term

// Sink consumes the remote output stream and local diagnostic lines.
type Sink interface {
	Feed(p []byte)
	Writeln(line string)
}

// Modes exposes the stream-negotiated modes that affect input encoding.
type Modes interface {
	BracketedPasteEnabled() bool
	AppCursorKeys() bool
}

var (
	_ Sink  = (*Interpreter)(nil)
	_ Modes = (*Screen)(nil)
)
