// Package config holds the runtime settings of a request/response peer.
//
// Values come from Default, then .env files, then REQRES_* environment variables.
// Variables already set in the environment win over .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mini-reqres/codec"
)

const envPrefix = "REQRES_"

type Config struct {
	RequestMessageName   string
	ResponseMessageName  string
	ClientRequestTimeout time.Duration
	ServerRequestTimeout time.Duration
	Codec                string
	MaxPending           int

	ListenAddr        string
	AdvertiseAddr     string
	ServiceName       string
	EtcdEndpoints     []string
	HeartbeatInterval time.Duration

	LogLevel string
}

func Default() Config {
	return Config{
		RequestMessageName:   "REQ",
		ResponseMessageName:  "RES",
		ClientRequestTimeout: 30 * time.Second,
		ServerRequestTimeout: 30 * time.Second,
		Codec:                "json",
		ListenAddr:           ":7777",
		ServiceName:          "reqres",
		HeartbeatInterval:    30 * time.Second,
		LogLevel:             "info",
	}
}

// Load returns Default overridden by files (".env" when none are given) and the
// environment. A missing default .env is not an error; a missing named file is.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", strings.Join(files, ","), err)
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("REQUEST_MESSAGE_NAME", &c.RequestMessageName)
	str("RESPONSE_MESSAGE_NAME", &c.ResponseMessageName)
	str("CODEC", &c.Codec)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("ADVERTISE_ADDR", &c.AdvertiseAddr)
	str("SERVICE_NAME", &c.ServiceName)
	str("LOG_LEVEL", &c.LogLevel)

	if err := dur("CLIENT_REQUEST_TIMEOUT", &c.ClientRequestTimeout); err != nil {
		return err
	}
	if err := dur("SERVER_REQUEST_TIMEOUT", &c.ServerRequestTimeout); err != nil {
		return err
	}
	if err := dur("HEARTBEAT_INTERVAL", &c.HeartbeatInterval); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_PENDING"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sMAX_PENDING: %w", envPrefix, err)
		}
		c.MaxPending = n
	}
	if v, ok := os.LookupEnv(envPrefix + "ETCD_ENDPOINTS"); ok {
		c.EtcdEndpoints = nil
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				c.EtcdEndpoints = append(c.EtcdEndpoints, ep)
			}
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.RequestMessageName == "" || c.ResponseMessageName == "" {
		return errors.New("config: message names must not be empty")
	}
	if c.RequestMessageName == c.ResponseMessageName {
		return fmt.Errorf("config: request and response message names are both %q", c.RequestMessageName)
	}
	if c.ClientRequestTimeout < 0 || c.ServerRequestTimeout < 0 {
		return errors.New("config: request timeouts must not be negative")
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("config: max pending %d is negative", c.MaxPending)
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	return nil
}

// CodecType is the parsed Codec setting. Call after Validate.
func (c Config) CodecType() codec.CodecType {
	t, _ := codec.ParseCodecType(c.Codec)
	return t
}

// NewLogger builds a production zap logger at LogLevel.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
