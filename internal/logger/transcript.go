package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	chatMu  sync.Mutex
	chatLog *log.Logger
)

// SetChatWriter directs the chat transcript dump to w. Passing nil disables it.
func SetChatWriter(w io.Writer) {
	chatMu.Lock()
	defer chatMu.Unlock()
	if w == nil {
		chatLog = nil
		return
	}
	chatLog = log.New(w, "", log.LstdFlags)
}

// LogChatLine appends one chat message to the transcript dump, if enabled.
func LogChatLine(sender, content string) {
	chatMu.Lock()
	logger := chatLog
	chatMu.Unlock()
	if logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[CHAT][")
	b.WriteString(sender)
	b.WriteString("] ")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	logger.Print(b.String())
}
