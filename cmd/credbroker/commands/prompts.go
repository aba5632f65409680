package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/pkg/secret"
)

// TerminalPrompts asks on the controlling terminal. Git owns stdin and stdout while a helper
// runs, so prompts go through the tty and feedback goes to stderr.
type TerminalPrompts struct {
	tty *os.File
	out io.Writer
}

// NewTerminalPrompts opens the controlling terminal. Without one every prompt is declined.
func NewTerminalPrompts(out io.Writer) *TerminalPrompts {
	p := &TerminalPrompts{out: out}
	if tty, err := os.OpenFile(ttyPath, os.O_RDWR, 0); err == nil {
		if term.IsTerminal(int(tty.Fd())) {
			p.tty = tty
		} else {
			_ = tty.Close()
		}
	}
	return p
}

// Close releases the terminal.
func (p *TerminalPrompts) Close() error {
	if p.tty == nil {
		return nil
	}
	return p.tty.Close()
}

func (p *TerminalPrompts) AcquireCredentials(targetURI secret.TargetURI) (string, string, bool) {
	if p.tty == nil {
		return "", "", false
	}

	username := targetURI.Username()
	if username == "" {
		fmt.Fprintf(p.tty, "Username for '%s': ", targetURI.Format(secret.FormatOptions{}))
		line, ok := p.readLine()
		if !ok || line == "" {
			return "", "", false
		}
		username = line
	}

	fmt.Fprintf(p.tty, "Password for '%s@%s': ", username, targetURI.Host())
	password, err := term.ReadPassword(int(p.tty.Fd()))
	fmt.Fprintln(p.tty)
	if err != nil {
		return "", "", false
	}
	return username, string(password), true
}

func (p *TerminalPrompts) AcquireAuthenticationCode(targetURI secret.TargetURI, kind contracts.ChallengeKind, username string) (string, bool) {
	if p.tty == nil {
		return "", false
	}

	source := "your authenticator app"
	if kind == contracts.ChallengeSms {
		source = "the text message sent to your phone"
	}
	fmt.Fprintf(p.tty, "Two-factor code for %s@%s from %s: ", username, targetURI.Host(), source)
	code, ok := p.readLine()
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

func (p *TerminalPrompts) ReportResult(targetURI secret.TargetURI, succeeded bool, message string) {
	if p.out == nil {
		return
	}
	status := "Signed in to"
	if !succeeded {
		status = "Sign-in failed for"
	}
	if message == "" {
		fmt.Fprintf(p.out, "%s %s\n", status, targetURI.Host())
		return
	}
	fmt.Fprintf(p.out, "%s %s: %s\n", status, targetURI.Host(), message)
}

// readLine reads one byte at a time so nothing past the newline is consumed from the tty.
func (p *TerminalPrompts) readLine() (string, bool) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := p.tty.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if sb.Len() == 0 {
				return "", false
			}
			break
		}
	}
	return strings.TrimSpace(sb.String()), true
}

var _ contracts.Prompts = (*TerminalPrompts)(nil)
