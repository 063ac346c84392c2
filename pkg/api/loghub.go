package api

import (
	"encoding/json"
	"time"

	"github.com/cuemby/pkgrun/pkg/api/proto"
)

// logHub fans out the JSON log lines a per-call zerolog.Logger writes (each
// line already tagged "call_id" by Server.RunProcedure) to StreamLogs
// subscribers, keeping a bounded backlog so a late subscriber still sees
// what already ran.
type logHub struct {
	writes chan loggedLine
	subs   chan subRequest
	unsubs chan unsubRequest
}

type loggedLine struct {
	callID string
	line   proto.LogLine
}

type subRequest struct {
	callID  string
	ch      chan proto.LogLine
	backlog chan []proto.LogLine
}

type unsubRequest struct {
	callID string
	ch     chan proto.LogLine
}

const backlogSize = 200

// callRetention bounds how long a finished call's backlog stays available
// to a StreamLogs caller that subscribes after the call already returned;
// past that a call's entry is swept so the hub doesn't grow without bound
// across a long-running daemon's lifetime.
const callRetention = 10 * time.Minute

func newLogHub() *logHub {
	h := &logHub{
		writes: make(chan loggedLine, 256),
		subs:   make(chan subRequest),
		unsubs: make(chan unsubRequest),
	}
	go h.run()
	return h
}

func (h *logHub) run() {
	backlog := make(map[string][]proto.LogLine)
	subs := make(map[string][]chan proto.LogLine)
	lastWrite := make(map[string]time.Time)
	sweep := time.NewTicker(callRetention)
	defer sweep.Stop()

	for {
		select {
		case w := <-h.writes:
			buf := append(backlog[w.callID], w.line)
			if len(buf) > backlogSize {
				buf = buf[len(buf)-backlogSize:]
			}
			backlog[w.callID] = buf
			lastWrite[w.callID] = time.Now()
			for _, ch := range subs[w.callID] {
				select {
				case ch <- w.line:
				default:
				}
			}
		case s := <-h.subs:
			subs[s.callID] = append(subs[s.callID], s.ch)
			cp := append([]proto.LogLine(nil), backlog[s.callID]...)
			s.backlog <- cp
		case u := <-h.unsubs:
			list := subs[u.callID]
			for i, ch := range list {
				if ch == u.ch {
					subs[u.callID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			close(u.ch)
		case <-sweep.C:
			cutoff := time.Now().Add(-callRetention)
			for callID, at := range lastWrite {
				if at.Before(cutoff) && len(subs[callID]) == 0 {
					delete(backlog, callID)
					delete(lastWrite, callID)
					delete(subs, callID)
				}
			}
		}
	}
}

func (h *logHub) subscribe(callID string) (ch chan proto.LogLine, backlog []proto.LogLine, cancel func()) {
	ch = make(chan proto.LogLine, 64)
	reply := make(chan []proto.LogLine, 1)
	h.subs <- subRequest{callID: callID, ch: ch, backlog: reply}
	return ch, <-reply, func() { h.unsubs <- unsubRequest{callID: callID, ch: ch} }
}

// writerFor returns an io.Writer for callID so a zerolog.Logger can log
// straight into the hub; Server.RunProcedure builds each call's logger with
// a "call_id" field so every line already carries it.
func (h *logHub) writerFor(callID string) *callWriter {
	return &callWriter{hub: h, callID: callID}
}

type callWriter struct {
	hub    *logHub
	callID string
}

func (w *callWriter) Write(p []byte) (int, error) {
	var fields struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p, &fields); err == nil {
		w.hub.writes <- loggedLine{
			callID: w.callID,
			line: proto.LogLine{
				Level:   fields.Level,
				Message: fields.Message,
				AtUnix:  time.Now().Unix(),
			},
		}
	}
	return len(p), nil
}
