package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/finswitch/finswitch/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finswitch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
schemas:
  path: /etc/finswitch/schemas

links:
  - name: fisc-atm
    channel: ATM_FISC_V1
    primary:
      host: 10.1.0.10
      port: 7001
`

func TestLoad_Testdata(t *testing.T) {
	cfg, err := config.Load(filepath.Join("testdata", "finswitch.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9191 {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.Dispatch.DefaultTimeout != 10*time.Second {
		t.Errorf("dispatch timeout = %v", cfg.Dispatch.DefaultTimeout)
	}
	if len(cfg.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(cfg.Links))
	}

	atm := cfg.Links[0]
	if atm.Name != "fisc-atm" || atm.Channel != "ATM_FISC_V1" {
		t.Errorf("link 0 = %+v", atm)
	}
	if atm.HeartbeatInterval != 20*time.Second {
		t.Errorf("heartbeat interval = %v", atm.HeartbeatInterval)
	}
	if atm.PoolMinSize != 3 || atm.PoolMaxSize != 12 {
		t.Errorf("pool sizing = %d/%d", atm.PoolMinSize, atm.PoolMaxSize)
	}

	interbank := cfg.Links[1]
	lnk := interbank.ToLink()
	if lnk.UseBackupOnFailure {
		t.Error("use_backup_on_failure: false not honored")
	}
	if !lnk.AutoReconnect {
		t.Error("auto_reconnect should default to true")
	}
	tcpOpts := interbank.ToTCP()
	if tcpOpts.KeepAlive {
		t.Error("keep_alive: false not honored")
	}
	if !tcpOpts.NoDelay {
		t.Error("no_delay should default to true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lc := cfg.Links[0]
	if lc.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout default = %v", lc.ConnectTimeout)
	}
	if lc.ReadTimeout != 30*time.Second {
		t.Errorf("read timeout default = %v", lc.ReadTimeout)
	}
	if lc.WriteTimeout != 10*time.Second {
		t.Errorf("write timeout default = %v", lc.WriteTimeout)
	}
	if lc.IdleTimeout != 30*time.Second {
		t.Errorf("idle timeout default = %v", lc.IdleTimeout)
	}
	if lc.HeartbeatInterval != 30*time.Second {
		t.Errorf("heartbeat default = %v", lc.HeartbeatInterval)
	}
	if lc.MaxRetryAttempts != 3 || lc.RetryDelay != 5*time.Second {
		t.Errorf("retry defaults = %d/%v", lc.MaxRetryAttempts, lc.RetryDelay)
	}
	if lc.ReceiveBufferSize != 65536 || lc.SendBufferSize != 65536 {
		t.Errorf("buffer defaults = %d/%d", lc.ReceiveBufferSize, lc.SendBufferSize)
	}
	if lc.PoolMinSize != 2 || lc.PoolMaxSize != 10 || lc.PoolMaxWait != 5*time.Second {
		t.Errorf("pool defaults = %d/%d/%v", lc.PoolMinSize, lc.PoolMaxSize, lc.PoolMaxWait)
	}
	if lc.RequestTimeout != 30*time.Second {
		t.Errorf("request timeout default = %v", lc.RequestTimeout)
	}

	lnk := lc.ToLink()
	if !lnk.AutoReconnect || !lnk.UseBackupOnFailure {
		t.Error("reconnect flags should default to true")
	}
	tcpOpts := lc.ToTCP()
	if !tcpOpts.KeepAlive || !tcpOpts.NoDelay {
		t.Error("socket flags should default to true")
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Metrics.Port != 9090 || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults = %+v", cfg.Metrics)
	}
	if cfg.Dispatch.DefaultTimeout != 30*time.Second {
		t.Errorf("dispatch default = %v", cfg.Dispatch.DefaultTimeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing schemas path", `
links:
  - name: a
    channel: C
    primary: {host: h, port: 1}
`},
		{"no links", `
schemas: {path: /schemas}
`},
		{"link without name", `
schemas: {path: /schemas}
links:
  - channel: C
    primary: {host: h, port: 1}
`},
		{"link without channel", `
schemas: {path: /schemas}
links:
  - name: a
    primary: {host: h, port: 1}
`},
		{"link without primary", `
schemas: {path: /schemas}
links:
  - name: a
    channel: C
`},
		{"duplicate link names", `
schemas: {path: /schemas}
links:
  - name: a
    channel: C
    primary: {host: h, port: 1}
  - name: a
    channel: C
    primary: {host: h, port: 2}
`},
		{"bad log level", `
schemas: {path: /schemas}
logging: {level: loud}
links:
  - name: a
    channel: C
    primary: {host: h, port: 1}
`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, c.content)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoad_EnvExpansionAndOverride(t *testing.T) {
	t.Setenv("FINSWITCH_TEST_HOST", "10.9.9.9")
	t.Setenv("FINSWITCH_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, `
schemas:
  path: /schemas
links:
  - name: a
    channel: C
    primary:
      host: ${FINSWITCH_TEST_HOST}
      port: 7001
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Links[0].Primary.Host != "10.9.9.9" {
		t.Errorf("env expansion: host = %q", cfg.Links[0].Primary.Host)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env override: level = %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}
