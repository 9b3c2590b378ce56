//go:build zmq
// +build zmq

package main

import "github.com/dd0wney/cluso-graphmetrics/pkg/transport"

func dialZMQ(addr string, opts transport.Options) (transport.Client, error) {
	return transport.DialZMQ(addr, opts)
}

func newZMQServer(addr string, handler transport.Handler, opts transport.Options) (workerServer, error) {
	return transport.NewZMQServer(addr, handler, opts), nil
}
