package config

import (
	"crypto/rand"
	"math/big"
)

const (
	forwardTokenPrefix = "ccr_"
	forwardTokenLength = 42
	tokenAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenForwardToken produces a fresh local access token.
func GenForwardToken() string {
	buf := make([]byte, forwardTokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			buf[i] = tokenAlphabet[0]
			continue
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return forwardTokenPrefix + string(buf)
}

// ApplyDefaults fills unset fields in place.
func (s *Settings) ApplyDefaults() {
	if s.Server.Listen == "" {
		s.Server.Listen = "127.0.0.1:8787"
	}
	if s.Server.DataDir == "" {
		s.Server.DataDir = "./data"
	}
	if s.Backup.MaxBackups == 0 {
		s.Backup.MaxBackups = 20
	}
	if s.Backup.Dir == "" {
		s.Backup.Dir = s.Server.DataDir + "/backups"
	}
}
