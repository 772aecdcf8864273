// START OF FILE dotsboxes/internal/network/protocol.go
package network

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultMaxMessageSize limita o tamanho de um frame (sem o delimitador).
const DefaultMaxMessageSize = 4 * 1024

var ErrFrameTooLarge = errors.New("frame too large")

// frameConn abstrai o framing de cada transporte. ReadFrame é usado só pelo
// readLoop e WriteFrame só pelo writeLoop.
type frameConn interface {
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
	RemoteAddr() string
}

// lineConn faz o framing por linha sobre TCP: um frame UTF-8 por linha, "\r\n" tolerado.
type lineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	maxSize      int
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func newLineConn(conn net.Conn, opts Options) *lineConn {
	sc := bufio.NewScanner(conn)
	// +2 para o "\r\n" que o Scanner precisa enxergar dentro do buffer.
	sc.Buffer(make([]byte, 0, 512), opts.MaxMessageSize+2)
	sc.Split(bufio.ScanLines)
	return &lineConn{
		conn:         conn,
		scanner:      sc,
		maxSize:      opts.MaxMessageSize,
		idleTimeout:  opts.IdleTimeout,
		writeTimeout: opts.WriteTimeout,
	}
}

func (l *lineConn) ReadFrame() (string, error) {
	if l.idleTimeout > 0 {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.idleTimeout))
	}
	if !l.scanner.Scan() {
		err := l.scanner.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			return "", fmt.Errorf("%w: limit is %d bytes", ErrFrameTooLarge, l.maxSize)
		}
		if err == nil {
			return "", net.ErrClosed
		}
		return "", err
	}
	line := l.scanner.Text()
	if len(line) > l.maxSize {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFrameTooLarge, l.maxSize)
	}
	return line, nil
}

func (l *lineConn) WriteFrame(frame string) error {
	if l.writeTimeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	frame = strings.TrimRight(frame, "\r\n")
	_, err := l.conn.Write([]byte(frame + "\n"))
	return err
}

func (l *lineConn) Close() error       { return l.conn.Close() }
func (l *lineConn) RemoteAddr() string { return l.conn.RemoteAddr().String() }

//END OF FILE dotsboxes/internal/network/protocol.go
