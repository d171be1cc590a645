package main

import (
	"testing"
	"time"

	"github.com/mastercactapus/cncdrill/spjs"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBridge(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)

	msgs := make(chan interface{}, 3)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		logBridge(msgs, done, l)
		close(exited)
	}()

	msgs <- &spjs.ServerError{Error: "port busy"}
	msgs <- &spjs.Status{Cmd: "Queued", ID: "cmd_1"}

	assert.Eventually(t, func() bool { return len(hook.AllEntries()) == 2 }, time.Second, time.Millisecond)
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "port busy", entries[0].Data["error"])
	assert.Equal(t, logrus.DebugLevel, entries[1].Level)

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("logBridge did not return")
	}
}
