package main

import (
	"strings"
	"sync"
)

// Logger keeps the last lines written to it for the log pane.
type Logger struct {
	lines []string
	mx    sync.RWMutex
	n     int
	cb    func()
}

func NewLogger(n int) *Logger {
	return &Logger{
		lines: make([]string, 0, n),
		n:     n,
	}
}

func (l *Logger) Write(p []byte) (n int, err error) {
	for _, s := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.AddLine(s)
	}
	return len(p), nil
}

func (l *Logger) AddLine(s string) {
	l.mx.Lock()

	l.lines = append(l.lines, s)
	if len(l.lines) > l.n {
		l.lines = l.lines[len(l.lines)-l.n:]
	}

	cb := l.cb
	l.mx.Unlock()

	if cb != nil {
		cb()
	}
}

func (l *Logger) SetCallback(cb func()) {
	l.mx.Lock()
	defer l.mx.Unlock()

	l.cb = cb
}

func (l *Logger) GetLines(n int) []string {
	l.mx.RLock()
	defer l.mx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := 0
	if len(l.lines) > n {
		start = len(l.lines) - n
	}

	res := make([]string, len(l.lines)-start)
	copy(res, l.lines[start:])

	return res
}
