package assistant

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"codeme/pkg/protocol"
)

// utteranceMsg is one line from a speech recognizer connection.
type utteranceMsg struct {
	Utterance string `json:"utterance"`
}

// utteranceAck is the per-line reply.
type utteranceAck struct {
	OK     bool   `json:"ok"`
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}

// VoiceListener accepts speech recognizer connections on a unix socket.
// Each line is a JSON utterance; lines containing the wake phrase are
// stripped and queued as voice commands, everything else is ignored.
type VoiceListener struct {
	socketPath string
	wakePhrase string
	queue      *Queue

	listener net.Listener
	nowFunc  func() time.Time
}

// NewVoiceListener creates a listener. It does not bind until Start.
func NewVoiceListener(socketPath, wakePhrase string, queue *Queue) *VoiceListener {
	return &VoiceListener{
		socketPath: socketPath,
		wakePhrase: wakePhrase,
		queue:      queue,
		nowFunc:    time.Now,
	}
}

// Start binds the socket and begins accepting connections. A stale
// socket file from a dead process is removed first.
func (v *VoiceListener) Start() error {
	if _, err := os.Stat(v.socketPath); err == nil {
		if conn, err := net.Dial("unix", v.socketPath); err == nil {
			conn.Close()
			return fmt.Errorf("socket %s is already in use", v.socketPath)
		}
		if err := os.Remove(v.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", v.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", v.socketPath, err)
	}
	v.listener = ln
	go v.acceptLoop()
	return nil
}

// Close stops accepting and removes the socket file.
func (v *VoiceListener) Close() error {
	if v.listener == nil {
		return nil
	}
	err := v.listener.Close()
	_ = os.Remove(v.socketPath)
	return err
}

func (v *VoiceListener) acceptLoop() {
	for {
		conn, err := v.listener.Accept()
		if err != nil {
			return
		}
		go v.handleConn(conn)
	}
}

// handleConn reads line-delimited JSON utterances from one recognizer
// connection and acks each line.
func (v *VoiceListener) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg utteranceMsg
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			v.ack(conn, utteranceAck{Error: "invalid message"})
			continue
		}

		text, ok := protocol.ExtractWakeCommand(msg.Utterance, v.wakePhrase)
		if !ok {
			v.ack(conn, utteranceAck{OK: true})
			continue
		}
		v.queue.Push(protocol.Command{
			Source:     protocol.SourceVoice,
			RawText:    text,
			ReceivedAt: v.nowFunc(),
		})
		v.ack(conn, utteranceAck{OK: true, Queued: true})
	}
}

func (v *VoiceListener) ack(conn net.Conn, a utteranceAck) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
}
