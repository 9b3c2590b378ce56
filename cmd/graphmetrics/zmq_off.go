//go:build !zmq
// +build !zmq

package main

import (
	"errors"

	"github.com/dd0wney/cluso-graphmetrics/pkg/transport"
)

var errNoZMQ = errors.New("zmq transport not compiled in; rebuild with -tags zmq")

func dialZMQ(string, transport.Options) (transport.Client, error) {
	return nil, errNoZMQ
}

func newZMQServer(string, transport.Handler, transport.Options) (workerServer, error) {
	return nil, errNoZMQ
}
