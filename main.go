package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/app"
	"github.com/wojtekolesinski/onchain-battleships/cloud"
	"github.com/wojtekolesinski/onchain-battleships/codec"
	"github.com/wojtekolesinski/onchain-battleships/config"
	"github.com/wojtekolesinski/onchain-battleships/contract"
	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/game"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("main", "err", err)
	}
}

func run() error {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Debug("main no .env file, using environment")
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key, address, err := contract.LoadKey(cfg.Chain.PrivateKey)
	if err != nil {
		return err
	}
	enc, err := codec.ParseMoveEncoding(cfg.Chain.MoveEncoding)
	if err != nil {
		return err
	}

	eth, err := contract.DialEth(ctx, cfg.Chain.RPCURL, cfg.Chain.Contract, key, enc)
	if err != nil {
		return err
	}
	defer eth.Close()

	chainKey := cfg.Chain.Key()
	if cfg.Chain.GenesisHash == "" {
		if hash, err := eth.GenesisHash(ctx); err == nil {
			chainKey = strings.ToLower(hash)
		} else {
			log.Warn("main couldn't read genesis block, keying relay documents by chain id", "err", err)
		}
	}

	authSig, err := contract.SignAuthMessage(key, cfg.Cloud.AuthMessage)
	if err != nil {
		return err
	}

	remote, err := docstore.Dial(ctx, cfg.Cloud.RelayURL)
	if err != nil {
		return err
	}
	defer remote.Close()

	cc := cloud.New(remote, chainKey, cloud.Identity{Address: address.Hex(), AuthSig: authSig},
		cloud.WithHitsDebounce(cfg.Cloud.HitsDebounce.Std()),
		cloud.WithEncryption(cfg.Cloud.EncryptPrivate),
	)
	defer cc.Close()

	adapter := contract.NewAdapter(eth, log.Default())
	tracker := game.NewTracker(cc, adapter, cfg.Game.PollInterval.Std(), log.Default())
	defer tracker.Stop()

	log.Info("main", "account", address.Hex(), "chain", chainKey, "encoding", enc)
	fmt.Printf("Playing as %s\n\n", address.Hex())

	a := app.New(app.NewPlayer(cc, adapter, log.Default()), cc, tracker, cfg.Game, log.Default())
	return a.Run(ctx)
}
