// Package config provides the go-simpler.org/env configuration surface for
// the relay: server listen address, auth policy, NIP-11 relay metadata and
// limits, relay policy, and relay identity, loaded from the environment or
// an optional .env override file.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"corvid.dev/chk"
	"corvid.dev/log"
	"corvid.dev/version"
)

// C is the relay's configuration, read from the environment if present,
// or from a .env file found at Config if one exists, which overrides
// process environment values of the same key.
type C struct {
	AppName  string `env:"CORVID_APP_NAME" default:"corvid" usage:"the relay's self-reported name"`
	Config   string `env:"CORVID_CONFIG_DIR" usage:"location of the .env configuration override file"`
	DataDir  string `env:"CORVID_DATA_DIR" usage:"storage location for the event store"`
	Listen   string `env:"CORVID_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	Port     int    `env:"CORVID_PORT" default:"3334" usage:"port to listen on"`
	ServiceURL string `env:"CORVID_SERVICE_URL" usage:"canonical wss:// URL clients must cite in NIP-42 AUTH relay tags; derived from Listen/Port if unset"`
	LogLevel string `env:"CORVID_LOG_LEVEL" default:"info" usage:"fatal error warn info debug trace"`
	Pprof    bool   `env:"CORVID_PPROF" default:"false" usage:"enable pprof on 127.0.0.1:6060"`

	// Auth mirrors the auth configuration surface: {required, mode,
	// timeout_seconds, whitelist, denylist}.
	AuthRequired      bool     `env:"CORVID_AUTH_REQUIRED" default:"false" usage:"require NIP-42 authentication before EVENT/REQ/COUNT"`
	AuthMode          string   `env:"CORVID_AUTH_MODE" default:"none" usage:"none|whitelist|denylist"`
	AuthTimeoutSecs   int      `env:"CORVID_AUTH_TIMEOUT_SECONDS" default:"60" usage:"seconds an auth_required connection has to authenticate before it is closed"`
	AuthWhitelist     []string `env:"CORVID_AUTH_WHITELIST" usage:"comma-separated hex pubkeys allowed when auth_mode=whitelist"`
	AuthDenylist      []string `env:"CORVID_AUTH_DENYLIST" usage:"comma-separated hex pubkeys blocked when auth_mode=denylist"`

	// Relay identity: a relay-held keypair for self-signed moderation
	// events (opt-in, spec §9 Open Questions).
	RelaySelfPub string `env:"CORVID_RELAY_SELF_PUB" usage:"hex pubkey of the relay's own identity, for relay-signed events"`
	RelaySelfSec string `env:"CORVID_RELAY_SELF_SEC" usage:"hex secret key of the relay's own identity"`

	// Owners bypass the same-author restriction on NIP-09 deletions.
	Owners []string `env:"CORVID_OWNERS" usage:"comma-separated hex pubkeys permitted to delete any event"`

	// NIP-11 relay_info metadata.
	RelayDescription string `env:"CORVID_RELAY_DESCRIPTION" default:"a nostr relay" usage:"NIP-11 description field"`
	RelayContact     string `env:"CORVID_RELAY_CONTACT" usage:"NIP-11 contact field"`
	RelayIcon        string `env:"CORVID_RELAY_ICON" usage:"NIP-11 icon URL"`

	// relay_info.limitation: the NIP-11 limitation sub-map. The pipeline
	// stages enforce each of these except MaxSubscriptions, which is only
	// advertised in the NIP-11 document.
	MaxMessageLength    int `env:"CORVID_MAX_MESSAGE_LENGTH" default:"524288" usage:"maximum accepted inbound frame size in bytes"`
	MaxSubscriptions    int `env:"CORVID_MAX_SUBSCRIPTIONS" default:"64" usage:"maximum live subscriptions per connection"`
	MaxSubIdLength      int `env:"CORVID_MAX_SUBID_LENGTH" default:"256" usage:"maximum subscription id length"`
	MaxContentLength    int `env:"CORVID_MAX_CONTENT_LENGTH" default:"65536" usage:"maximum event content length"`
	MaxEventTags        int `env:"CORVID_MAX_EVENT_TAGS" default:"2000" usage:"maximum tags per event"`
	MinPowDifficulty    int `env:"CORVID_MIN_POW_DIFFICULTY" default:"0" usage:"minimum NIP-13 leading zero bits required, 0 disables"`
	CreatedAtLowerLimit int64 `env:"CORVID_CREATED_AT_LOWER_LIMIT" default:"94608000" usage:"seconds of past drift allowed in created_at, 0 disables"`
	CreatedAtUpperLimit int64 `env:"CORVID_CREATED_AT_UPPER_LIMIT" default:"900" usage:"seconds of future drift allowed in created_at, 0 disables"`
	DefaultLimit        uint  `env:"CORVID_DEFAULT_LIMIT" default:"500" usage:"REQ result limit applied when no filter specifies one"`
	MaxLimit             uint `env:"CORVID_MAX_LIMIT" default:"5000" usage:"hard cap on REQ result limit"`

	// relay_policy.
	MinPrefixLength int `env:"CORVID_MIN_PREFIX_LENGTH" default:"0" usage:"minimum hex digits an ids/authors filter prefix must carry, 0 disables"`
}

// New loads a C from the environment, then from a .env override file at
// Config/.env if one exists.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.T(err) {
		return
	}
	if cfg.Config == "" {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Config, ".env")
	if fileExists(envPath) {
		var src *fileSource
		if src, err = loadEnvFile(envPath); chk.T(err) {
			return
		}
		if err = env.Load(cfg, &env.Options{SliceSep: ",", Source: src}); chk.E(err) {
			return
		}
		log.SetLevel(cfg.LogLevel)
		log.I.F("loaded configuration from %s", envPath)
	}
	if cfg.ServiceURL == "" {
		host := cfg.Listen
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		cfg.ServiceURL = fmt.Sprintf("ws://%s:%d", host, cfg.Port)
	}
	return
}

// AuthTimeoutDuration returns AuthTimeoutSecs as a time.Duration, 0 if
// auth timeout enforcement is disabled.
func (c *C) AuthTimeoutDuration() time.Duration {
	if c.AuthTimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.AuthTimeoutSecs) * time.Second
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// fileSource is a go-simpler.org/env Source backed by a parsed .env file,
// falling back to the process environment for any key it doesn't carry -
// the file overrides, it doesn't replace, the ambient environment.
type fileSource struct{ kv map[string]string }

func loadEnvFile(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src := &fileSource{kv: make(map[string]string)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		src.kv[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return src, sc.Err()
}

// LookupEnv implements go-simpler.org/env's Source interface.
func (s *fileSource) LookupEnv(key string) (string, bool) {
	if v, ok := s.kv[key]; ok {
		return v, true
	}
	return os.LookupEnv(key)
}

// HelpRequested returns true if os.Args requests help text.
func HelpRequested() bool {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--help", "-help", "?":
			return true
		}
	}
	return false
}

// GetEnv returns true if os.Args requests the current config be printed
// as KEY=value lines.
func GetEnv() bool {
	return len(os.Args) > 1 && strings.ToLower(os.Args[1]) == "env"
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a sortable collection of KV pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// EnvKV renders a config struct's `env`-tagged fields as KEY/value pairs.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	v := reflect.ValueOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		if k == "" {
			continue
		}
		var val string
		switch fv := v.Field(i).Interface().(type) {
		case string:
			val = fv
		case int, int64, bool, time.Duration, uint:
			val = fmt.Sprint(fv)
		case []string:
			val = strings.Join(fv, ",")
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv renders cfg's key/values to printer.
func PrintEnv(cfg *C, printer io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(printer, "%s=%s\n", v.Key, v.Value)
	}
}

// PrintHelp renders usage text and the current configuration to printer.
func PrintHelp(cfg *C, printer io.Writer) {
	if cfg == nil {
		cfg = &C{AppName: "corvid"}
	}
	_, _ = fmt.Fprintf(printer, "%s %s\n\n", cfg.AppName, version.V)
	_, _ = fmt.Fprintf(printer, "Environment variables that configure %s:\n\n", cfg.AppName)
	env.Usage(cfg, printer, &env.Options{SliceSep: ","})
	_, _ = fmt.Fprintf(
		printer,
		"\na .env file at $CORVID_CONFIG_DIR/.env overrides the environment;"+
			" run '%s env > $CORVID_CONFIG_DIR/.env' to capture the current settings\n\n"+
			"current configuration:\n\n",
		os.Args[0],
	)
	PrintEnv(cfg, printer)
	_, _ = fmt.Fprintln(printer)
}
