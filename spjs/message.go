package spjs

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Frame is data read from a port.
type Frame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

// Status tracks a command queued with sendjson.
type Status struct {
	Cmd    string
	Queued int `json:"QCnt"`
	Type   []string
	Data   []string `json:"D"`
	ID     string   `json:"Id"`
}

// ServerError is an error reported by the server.
type ServerError struct {
	Error string
}

// Port is one serial port known to the server.
type Port struct {
	Name         string
	Friendly     string
	SerialNumber string
	IsOpen       bool
	Baud         int
	USBVID       string
	USBPID       string
}

type portList struct {
	SerialPorts []Port
}

type queued struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

type sendJSON struct {
	Port string `json:"P"`
	Data []queued
}

var cmdSeq int64

func cmdID() string {
	return "cmd_" + strconv.FormatInt(atomic.AddInt64(&cmdSeq, 1), 36)
}

// decode picks the message type from the fields present.
func decode(data []byte) (interface{}, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	var v interface{}
	switch {
	case fields["Error"] != nil:
		v = &ServerError{}
	case fields["SerialPorts"] != nil:
		v = &portList{}
	case fields["Type"] != nil:
		v = &Status{}
	case fields["D"] != nil:
		v = &Frame{}
	default:
		return nil, errors.Errorf("unknown message: %s", data)
	}

	return v, errors.Wrap(json.Unmarshal(data, v), "decode")
}
