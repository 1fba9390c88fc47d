package game

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"

	"github.com/gliderlabs/ssh"
	"github.com/zond/textmud"
	"golang.org/x/term"
)

// lineIO is one client transport: a framed line in, a framed line
// out. Framing strips line endings on the way in and adds them on the
// way out; the dispatcher only ever sees clean lines.
type lineIO interface {
	ReadLine() (string, error)
	WriteLine(string) error
}

type connIO struct {
	reader *bufio.Reader
	conn   net.Conn
}

func (c *connIO) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", textmud.WithStack(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *connIO) WriteLine(s string) error {
	_, err := fmt.Fprintf(c.conn, "%s\r\n", s)
	return textmud.WithStack(err)
}

type termIO struct {
	term *term.Terminal
}

func (t *termIO) ReadLine() (string, error) {
	line, err := t.term.ReadLine()
	return line, textmud.WithStack(err)
}

func (t *termIO) WriteLine(s string) error {
	_, err := fmt.Fprintln(t.term, s)
	return textmud.WithStack(err)
}

// HandleConn serves one TCP client until it disconnects or sends
// "quit".
func (g *Game) HandleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sess, err := NewSession(conn.RemoteAddr())
	if err != nil {
		log.Printf("creating session for %v: %v", conn.RemoteAddr(), err)
		return
	}
	g.serve(ctx, sess, &connIO{
		reader: bufio.NewReader(conn),
		conn:   conn,
	})
}

// HandleSession serves one SSH client, speaking the same line protocol
// through a terminal.
func (g *Game) HandleSession(sshSess ssh.Session) {
	sess, err := NewSession(sshSess.RemoteAddr())
	if err != nil {
		log.Printf("creating session for %v: %v", sshSess.RemoteAddr(), err)
		return
	}
	g.serve(sshSess.Context(), sess, &termIO{
		term: term.NewTerminal(sshSess, ""),
	})
}

// serve runs the strictly sequential read-dispatch-write loop for one
// session. No client ever has two commands in flight at once.
func (g *Game) serve(ctx context.Context, sess *Session, t lineIO) {
	g.sessions.Register(sess)
	defer g.sessions.Unregister(sess.Id())
	g.sessions.Enter(g.world, sess)
	defer g.sessions.Leave(g.world, sess)

	if err := t.WriteLine(welcomeLine); err != nil {
		return
	}
	for {
		line, err := t.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("reading from %v: %v", sess.Remote(), err)
			}
			return
		}
		if line == "quit" {
			return
		}
		if err := t.WriteLine(g.Dispatch(ctx, sess, line)); err != nil {
			return
		}
	}
}
