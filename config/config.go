// Package config reads the process environment (optionally seeded from a
// .env file) into a Config and builds the shared logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"notes-dapp/program"
	"notes-dapp/solana"
)

// ClusterSimulated runs against the in-process ledger instead of a real node.
const ClusterSimulated = "simulated"

type Config struct {
	Cluster          string
	RPCURL           string
	ProgramID        solana.PublicKey
	Commitment       solana.Commitment
	ConfirmTimeout   time.Duration
	ListenAddr       string
	DSN              string
	JWTSecret        string
	Keypair          string
	WalletPassphrase string
	LogLevel         string
	LogFormat        string
}

// LoadEnv loads the given dotenv files, ignoring ones that do not exist.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads Config from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Cluster:          getenv("NOTES_CLUSTER", string(solana.Devnet)),
		RPCURL:           os.Getenv("NOTES_RPC_URL"),
		ProgramID:        program.DefaultProgramID,
		Commitment:       solana.CommitmentConfirmed,
		ConfirmTimeout:   60 * time.Second,
		ListenAddr:       getenv("LISTEN_ADDR", ":3002"),
		DSN:              os.Getenv("DSN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		Keypair:          os.Getenv("NOTES_KEYPAIR"),
		WalletPassphrase: os.Getenv("NOTES_WALLET_PASSPHRASE"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
	}

	if v := os.Getenv("NOTES_PROGRAM_ID"); v != "" {
		id, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return Config{}, fmt.Errorf("NOTES_PROGRAM_ID: %w", err)
		}
		cfg.ProgramID = id
	}
	if v := os.Getenv("NOTES_COMMITMENT"); v != "" {
		c, err := solana.ParseCommitment(v)
		if err != nil {
			return Config{}, fmt.Errorf("NOTES_COMMITMENT: %w", err)
		}
		cfg.Commitment = c
	}
	if v := os.Getenv("NOTES_CONFIRM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("NOTES_CONFIRM_TIMEOUT: invalid duration %q", v)
		}
		cfg.ConfirmTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects an unknown cluster name.
func (c Config) Validate() error {
	if c.Simulated() {
		return nil
	}
	if c.RPCURL != "" {
		return nil
	}
	_, err := solana.Cluster(c.Cluster).URL()
	return err
}

func (c Config) Simulated() bool { return c.Cluster == ClusterSimulated }

// Endpoint is the RPC URL to dial: NOTES_RPC_URL, else the cluster default.
func (c Config) Endpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	u, _ := solana.Cluster(c.Cluster).URL()
	return u
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// NewLogger builds the process logger: JSON by default, text when format is
// "text", at the given level (info when unknown).
func NewLogger(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
