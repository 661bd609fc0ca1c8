package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables. They override config.toml so secrets and per-host
// settings can live outside the shared file.
const (
	EnvPassphrase   = "LNCHAT_PASSPHRASE"
	EnvLNDHost      = "LNCHAT_LND_HOST"
	EnvLNDCert      = "LNCHAT_LND_TLS_CERT"
	EnvLNDMacaroon  = "LNCHAT_LND_MACAROON"
	EnvFeeLimitSat  = "LNCHAT_FEE_LIMIT_SAT"
	EnvTimePref     = "LNCHAT_TIME_PREF"
	EnvMute         = "LNCHAT_MUTE"
	EnvLookbackDays = "LNCHAT_LOOKBACK_DAYS"
)

// LoadEnv loads KEY=value pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides cfg fields from the environment. Malformed numeric
// values are ignored.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvLNDHost); v != "" {
		cfg.LND.Host = v
	}
	if v := os.Getenv(EnvLNDCert); v != "" {
		cfg.LND.TLSCertPath = v
	}
	if v := os.Getenv(EnvLNDMacaroon); v != "" {
		cfg.LND.MacaroonPath = v
	}
	if v, err := strconv.ParseInt(os.Getenv(EnvFeeLimitSat), 10, 64); err == nil && v > 0 {
		cfg.Prefs.FeeLimitSat = v
	}
	if v, err := strconv.ParseFloat(os.Getenv(EnvTimePref), 64); err == nil && v >= -1 && v <= 1 {
		cfg.Prefs.TimePref = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvMute)); err == nil {
		cfg.Prefs.Mute = v
	}
	if v, err := strconv.Atoi(os.Getenv(EnvLookbackDays)); err == nil && v > 0 {
		cfg.Sync.LookbackDays = v
	}
}

// Passphrase returns the storage passphrase from the environment.
func Passphrase() (string, bool) {
	return os.LookupEnv(EnvPassphrase)
}
