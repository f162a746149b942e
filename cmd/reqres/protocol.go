package main

import (
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"mini-reqres/codec"
	"mini-reqres/config"
	"mini-reqres/handler"
	"mini-reqres/manager"
	"mini-reqres/message"
)

// Request types shared by serve and call.
const (
	TypeEcho uint16 = 1 // client → server
	TypeTime uint16 = 2 // client → server
	TypeName uint16 = 3 // server → client
)

type EchoRequest struct {
	Text string `json:"text"`
}

// EchoResponse carries the number of echoes served so far as extra bytes.
type EchoResponse struct {
	Text string `json:"text"`
}

type TimeResponse struct {
	Now time.Time `json:"now"`
}

type NameResponse struct {
	Name string `json:"name"`
}

// registerProtocol installs every request type on m; name is what this peer answers
// when the server asks.
func registerProtocol(m *manager.Manager, name string) {
	var served atomic.Uint64
	manager.RegisterRequestToServer(m, TypeEcho, func(_ handler.RequestData, req EchoRequest, result handler.ResultFunc[EchoResponse]) {
		n := served.Add(1)
		result(message.AckSuccess, EchoResponse{Text: req.Text}, func(w *codec.Writer) {
			w.WriteUint64(n)
		})
	}, nil)

	manager.RegisterRequestToServer(m, TypeTime, func(_ handler.RequestData, _ message.EmptyMessage, result handler.ResultFunc[TimeResponse]) {
		result(message.AckSuccess, TimeResponse{Now: time.Now().UTC()}, nil)
	}, nil)

	manager.RegisterRequestToClient(m, TypeName, func(_ handler.RequestData, _ message.EmptyMessage, result handler.ResultFunc[NameResponse]) {
		result(message.AckSuccess, NameResponse{Name: name}, nil)
	}, nil)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env")
	if envFile == "" {
		return config.Load()
	}
	return config.Load(envFile)
}
