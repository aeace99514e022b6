package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/aquabridge/pkg/entity"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"-serial", "/dev/ttyUSB0", "-mqtt-dest", "broker:1883"}, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Source())
	assert.Equal(t, "aqualogic", cfg.Identifier)
	assert.Equal(t, "homeassistant", cfg.DiscoverPrefix)
	assert.Equal(t, 10*time.Second, cfg.SourceTimeoutDuration())
	assert.Equal(t, 180*time.Second, cfg.MessageExpiryDuration())
	assert.Equal(t, 4, cfg.MQTT.Version)
	assert.Empty(t, cfg.Enable)
	assert.Equal(t, 0, cfg.Verbose)
	assert.Equal(t, 30*24*time.Hour, cfg.HistoryRetention())
}

func TestLoadFlags(t *testing.T) {
	args := []string{
		"-tcp", "192.168.1.20:8899",
		"-mqtt-dest", "broker:9001",
		"-enable", "t_p,t_a",
		"-enable", "l",
		"-enable", "t_p",
		"-sms", "Low Salt,low_salt",
		"-sms", "Check Cell,,safety",
		"-identifier", "backyard",
		"-source-timeout", "30",
		"-system-message-expiration", "60",
		"-mqtt-version", "3",
		"-mqtt-insecure",
		"-history-days", "0",
		"-v", "-v", "-v",
	}
	cfg, err := Load(args, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20:8899", cfg.Source())
	assert.Equal(t, []string{"t_p", "t_a", "l"}, cfg.Enable)
	assert.Equal(t, []entity.SensorDef{
		{Text: "Low Salt", Key: "low_salt"},
		{Text: "Check Cell", DeviceClass: "safety"},
	}, cfg.SystemMessageSensors)
	assert.Equal(t, "backyard", cfg.Identifier)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeoutDuration())
	assert.Equal(t, 60*time.Second, cfg.MessageExpiryDuration())
	assert.Equal(t, 3, cfg.MQTT.Version)
	assert.True(t, cfg.MQTT.Insecure)
	assert.Equal(t, 3, cfg.Verbose)
	assert.Zero(t, cfg.HistoryRetention())

	opts := cfg.MQTTOptions()
	assert.Equal(t, uint(3), opts.Version)
	assert.True(t, opts.Insecure)
}

func TestLoadYAMLFileThenFlags(t *testing.T) {
	path := writeFile(t, "aquabridge.yaml", `
serial: /dev/ttyUSB1
identifier: pool
enable: [t_p]
system_message_sensors:
  - text: Low Salt
    key: low_salt
mqtt:
  dest: broker.local:1883
  username: bridge
http:
  addr: ":8080"
`)

	cfg, err := Load([]string{"-config", path, "-identifier", "override"}, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial)
	assert.Equal(t, "override", cfg.Identifier)
	assert.Equal(t, []string{"t_p"}, cfg.Enable)
	assert.Equal(t, "low_salt", cfg.SystemMessageSensors[0].Key)
	assert.Equal(t, "bridge", cfg.MQTT.Username)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	// Unset file keys keep their defaults.
	assert.Equal(t, 10, cfg.SourceTimeout)
	assert.Equal(t, "homeassistant", cfg.DiscoverPrefix)
}

func TestLoadTOMLFile(t *testing.T) {
	path := writeFile(t, "aquabridge.toml", `
tcp = "10.0.0.5:8899"
source_timeout = 20
enable = ["salt", "menu"]

[mqtt]
dest = "broker.local"
transport = "websockets"

[[system_message_sensors]]
text = "Check Flow"
device_class = "moisture"
`)

	cfg, err := Load([]string{"-config", path}, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:8899", cfg.TCP)
	assert.Equal(t, 20, cfg.SourceTimeout)
	assert.Equal(t, []string{"salt", "menu"}, cfg.Enable)
	assert.Equal(t, "websockets", cfg.MQTT.Transport)
	assert.Equal(t, "moisture", cfg.SystemMessageSensors[0].DeviceClass)
}

func TestLoadEnvironment(t *testing.T) {
	env := envMap(map[string]string{
		EnvMQTTPassword: "from-env",
		EnvHTTPUser:     "admin",
		EnvHTTPPass:     "secret",
	})

	cfg, err := Load([]string{"-serial", "/dev/ttyS0", "-mqtt-dest", "b:1883"}, env, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.MQTT.Password)
	assert.Equal(t, "admin", cfg.HTTP.User)
	assert.Equal(t, "secret", cfg.HTTP.Pass)

	cfg, err = Load([]string{"-serial", "/dev/ttyS0", "-mqtt-dest", "b:1883", "-mqtt-password", "flag"}, env, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "flag", cfg.MQTT.Password)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"-mqtt-dest", "b:1883"}, "exactly one of -serial or -tcp"},
		{"two sources", []string{"-serial", "/dev/x", "-tcp", "h:1", "-mqtt-dest", "b:1883"}, "exactly one of -serial or -tcp"},
		{"no broker", []string{"-serial", "/dev/x"}, "-mqtt-dest is required"},
		{"mqtt 5", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-mqtt-version", "5"}, "MQTT 5 is not supported"},
		{"mqtt 2", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-mqtt-version", "2"}, "invalid configuration"},
		{"bad transport", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-mqtt-transport", "quic"}, "unsupported -mqtt-transport"},
		{"bad tcp", []string{"-tcp", "no-port", "-mqtt-dest", "b"}, "invalid configuration"},
		{"zero timeout", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-source-timeout", "0"}, "invalid configuration"},
		{"negative history", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-history-days", "-1"}, "invalid configuration"},
		{"unknown entity", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-enable", "nope"}, "unknown entity"},
		{"reserved sms key", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-sms", "Low Salt,salt"}, "reserved"},
		{"bad sms", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-sms", "a,b,c,d"}, "TEXT[,KEY[,DEV_CLASS]]"},
		{"half auth", []string{"-serial", "/dev/x", "-mqtt-dest", "b", "-http-user", "admin"}, "must be set together"},
		{"missing file", []string{"-config", "/nonexistent/aquabridge.yaml"}, "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, noEnv, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "aquabridge.ini", "serial=/dev/x\n")
	_, err := Load([]string{"-config", path}, noEnv, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file type")
}

func TestLoadHelp(t *testing.T) {
	_, err := Load([]string{"-h"}, noEnv, io.Discard)
	assert.True(t, errors.Is(err, ErrHelp))
}

func TestEntityHelpListsEntities(t *testing.T) {
	help := entityHelp()
	assert.Contains(t, help, "t_p (Pool Temperature)")
	assert.Contains(t, help, "pool_spa_toggle (Pool/Spa Toggle)")
}
