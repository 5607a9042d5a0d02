// Command corvid is a nostr relay: event store, subscription fan-out,
// and NIP-42 authentication behind a single WebSocket/HTTP endpoint.
// Configuration is via environment variables or an optional .env file.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"corvid.dev/app/config"
	"corvid.dev/app/relay"
	"corvid.dev/chk"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/relayinfo"
	"corvid.dev/log"
	"corvid.dev/protocol/auth"
	"corvid.dev/protocol/pipeline"
	"corvid.dev/protocol/socketapi"
	"corvid.dev/store/badger"
	"corvid.dev/subscription"
	"corvid.dev/version"
)

func main() {
	var err error
	var cfg *config.C
	if cfg, err = config.New(); chk.T(err) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		}
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if config.GetEnv() {
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	log.SetLevel(cfg.LogLevel)
	log.I.F("starting %s %s", cfg.AppName, version.V)

	if cfg.Pprof {
		go func() { chk.E(http.ListenAndServe("127.0.0.1:6060", nil)) }()
	}

	store := badger.New()
	if err = store.Init(cfg.DataDir); chk.E(err) {
		os.Exit(1)
	}

	registry := subscription.New()
	throttle := auth.NewThrottle()

	owners := decodeHexKeys(cfg.Owners)
	whitelist := decodeHexKeys(cfg.AuthWhitelist)
	denylist := decodeHexKeys(cfg.AuthDenylist)

	opts := &pipeline.Options{
		ServiceURL:       cfg.ServiceURL,
		AuthRequired:     cfg.AuthRequired,
		OwnerPubkeys:     owners,
		AuthMode:         cfg.AuthMode,
		WhitelistPubkeys: whitelist,
		DenylistPubkeys:  denylist,
		Limits: pipeline.Limits{
			MaxMessageLength:    cfg.MaxMessageLength,
			MaxSubscriptions:    cfg.MaxSubscriptions,
			MaxSubIdLength:      cfg.MaxSubIdLength,
			MaxContentLength:    cfg.MaxContentLength,
			MaxEventTags:        cfg.MaxEventTags,
			MinPowDifficulty:    cfg.MinPowDifficulty,
			CreatedAtLowerLimit: cfg.CreatedAtLowerLimit,
			CreatedAtUpperLimit: cfg.CreatedAtUpperLimit,
			DefaultLimit:        cfg.DefaultLimit,
			MaxLimit:            cfg.MaxLimit,
		},
		Policy: pipeline.Policy{
			MinPrefixLength: cfg.MinPrefixLength,
		},
		Store:    store,
		Registry: registry,
		Throttle: throttle,
	}

	engine := pipeline.New(
		pipeline.ProtocolValidator{},
		pipeline.AuthEnforcer{},
		pipeline.MessageValidator{},
		pipeline.EventValidator{},
		pipeline.RelayPolicyValidator{},
		pipeline.StorePolicy{},
		pipeline.MessageHandler{},
	)

	info := buildRelayInfo(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sock := &socketapi.A{
		Engine:      engine,
		Opts:        opts,
		AuthTimeout: cfg.AuthTimeoutDuration(),
	}
	srv := relay.New(ctx, cancel, "", info, sock)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Shutdown()
		chk.E(store.Close())
	}()

	if err = srv.Start(cfg.Listen, cfg.Port); chk.E(err) {
		log.F.F("server terminated: %v", err)
	}
}

func decodeHexKeys(keys []string) [][]byte {
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		pk, err := hex.Dec(k)
		if chk.E(err) {
			continue
		}
		out = append(out, pk)
	}
	return out
}

func buildRelayInfo(cfg *config.C) *relayinfo.T {
	nips := relayinfo.GetList(
		relayinfo.BasicProtocol,
		relayinfo.EventDeletion,
		relayinfo.EventTreatment,
		relayinfo.GenericTagQueries,
		relayinfo.RelayInformationDocument,
		relayinfo.ParameterizedReplaceableEvents,
		relayinfo.ProofOfWork,
		relayinfo.Counting,
	)
	if cfg.AuthRequired {
		nips = append(nips, relayinfo.Authentication)
	}
	info := &relayinfo.T{
		Name:        cfg.AppName,
		Description: cfg.RelayDescription,
		Pubkey:      cfg.RelaySelfPub,
		Contact:     cfg.RelayContact,
		Nips:        nips,
		Software:    version.URL,
		Version:     version.V,
		Icon:        cfg.RelayIcon,
		Limitation: relayinfo.Limits{
			MaxMessageLength:    cfg.MaxMessageLength,
			MaxSubscriptions:    cfg.MaxSubscriptions,
			MaxSubIdLength:      cfg.MaxSubIdLength,
			MaxLimit:            int(cfg.MaxLimit),
			MaxContentLength:    cfg.MaxContentLength,
			MinPowDifficulty:    cfg.MinPowDifficulty,
			AuthRequired:        cfg.AuthRequired,
			RestrictedWrites:    cfg.AuthRequired || cfg.AuthMode != "none",
			CreatedAtLowerLimit: cfg.CreatedAtLowerLimit,
			CreatedAtUpperLimit: cfg.CreatedAtUpperLimit,
		},
	}
	info.Sort()
	return info
}
