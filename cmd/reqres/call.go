package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mini-reqres/config"
	"mini-reqres/handler"
	"mini-reqres/loadbalance"
	"mini-reqres/manager"
	"mini-reqres/message"
	"mini-reqres/registry"
	"mini-reqres/transport"
)

var callCmd = &cobra.Command{
	Use:   "call [text]",
	Short: "Connect to a server and send requests to it.",
	Long: "Dials --addr, or discovers a server in etcd and picks one with --balancer " +
		"(or --hash-key for sticky placement). Answers the server's name requests while connected.",
	Args: cobra.ArbitraryArgs,
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().String("addr", "", "server address; discover through etcd when empty")
	callCmd.Flags().String("balancer", "RoundRobin", "RoundRobin or WeightedRandom")
	callCmd.Flags().String("hash-key", "", "pick the server by consistent hash of this key")
	callCmd.Flags().String("type", "echo", "echo or time")
	callCmd.Flags().String("name", "", "name reported to the server (default: hostname)")
	callCmd.Flags().Int("count", 1, "number of requests to send")
	callCmd.Flags().Duration("linger", 0, "stay connected this long after the last response")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := dial(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name, _ = os.Hostname()
	}
	m := manager.New(conn, cfg, manager.WithLogger(logger))
	registerProtocol(m, name)
	m.Start()
	defer m.Close()

	kind, _ := cmd.Flags().GetString("type")
	count, _ := cmd.Flags().GetInt("count")
	out := cmd.OutOrStdout()
	for i := 0; i < count; i++ {
		done := make(chan error, 1)
		onResponse := func(data handler.ResponseData, code message.AckCode, resp any) {
			if code != message.AckSuccess {
				done <- fmt.Errorf("request %d: %s", data.RequestID, code)
				return
			}
			switch r := resp.(type) {
			case EchoResponse:
				served, _ := data.Extra.ReadUint64()
				fmt.Fprintf(out, "echo: %s (served %d)\n", r.Text, served)
			case TimeResponse:
				fmt.Fprintf(out, "time: %s\n", r.Now.Format(time.RFC3339Nano))
			}
			done <- nil
		}

		var sent bool
		switch kind {
		case "echo":
			sent = m.SendRequestAsClient(TypeEcho, EchoRequest{Text: strings.Join(args, " ")}, nil, onResponse)
		case "time":
			sent = m.SendRequestAsClient(TypeTime, message.EmptyMessage{}, nil, onResponse)
		default:
			return fmt.Errorf("unknown request type %q", kind)
		}
		// a rejected request has already reported on done
		if err := <-done; err != nil {
			return err
		}
		if !sent {
			return errors.New("request rejected")
		}
	}

	if linger, _ := cmd.Flags().GetDuration("linger"); linger > 0 {
		select {
		case <-time.After(linger):
		case <-conn.Done():
		}
	}
	return nil
}

func dial(cmd *cobra.Command, cfg config.Config, logger *zap.Logger) (*transport.TCPClient, error) {
	opts := []transport.TCPOption{
		transport.WithLogger(logger),
		transport.WithHeartbeatInterval(cfg.HeartbeatInterval),
		transport.WithServiceName(cfg.ServiceName),
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		return transport.DialTCP(addr, opts...)
	}
	if len(cfg.EtcdEndpoints) == 0 {
		return nil, errors.New("either --addr or REQRES_ETCD_ENDPOINTS is required")
	}

	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, logger)
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	if key, _ := cmd.Flags().GetString("hash-key"); key != "" {
		endpoints, err := reg.Discover(cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		ring := loadbalance.NewConsistentHashBalancer()
		for i := range endpoints {
			ring.Add(&endpoints[i])
		}
		endpoint, err := ring.PickKey(key)
		if err != nil {
			return nil, err
		}
		return transport.DialTCP(endpoint.Addr, opts...)
	}

	balancer, _ := cmd.Flags().GetString("balancer")
	return transport.DialService(reg, loadbalance.New(balancer), opts...)
}
