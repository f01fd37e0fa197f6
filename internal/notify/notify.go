// Package notify carries user-facing success and failure messages.
package notify

import (
	"log/slog"
	"sync"
)

// Sink receives fire-and-forget user notifications.
type Sink interface {
	Success(message string)
	Error(message string)
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l Log) Success(message string) {
	l.logger().Info(message, "kind", "success")
}

func (l Log) Error(message string) {
	l.logger().Error(message, "kind", "error")
}

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Message struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Success(message string) { r.add(KindSuccess, message) }

func (r *Recorder) Error(message string) { r.add(KindError, message) }

func (r *Recorder) add(kind Kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Kind: kind, Text: text})
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Drain returns and clears the recorded messages.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

// Tee fans a notification out to several sinks.
type Tee []Sink

func (t Tee) Success(message string) {
	for _, s := range t {
		s.Success(message)
	}
}

func (t Tee) Error(message string) {
	for _, s := range t {
		s.Error(message)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
