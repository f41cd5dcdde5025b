package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"

	"benchsheet/internal/logging"
)

var marshalChecksum = json.Marshal

type checksumGroup struct {
	Label string `json:"label"`
	CPUs  []int  `json:"cpus"`
}

type checksumPayload struct {
	Metrics     map[string][]string `json:"metrics"`
	Percentiles map[string][]string `json:"percentiles"`
	Groups      []checksumGroup     `json:"groups"`
}

// Checksum returns a short, stable checksum of the settings that change what
// ends up in a table: metric lists, percentiles and CPU groups.
//
// It computes MD5 over a canonical JSON representation and returns the first 6 hex
// characters (equivalent to `md5sum | cut -c1-6`).
func Checksum(cfg *Config) (string, error) {
	if cfg == nil {
		return "", nil
	}

	groups := make([]checksumGroup, 0, len(cfg.Groups))
	for label, cpus := range cfg.Groups {
		groups = append(groups, checksumGroup{Label: label, CPUs: cpus})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Label < groups[j].Label
	})

	// encoding/json sorts map keys, so the maps need no extra handling.
	payload := checksumPayload{Metrics: cfg.Metrics, Percentiles: cfg.Percentiles, Groups: groups}
	b, err := marshalChecksum(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	hexStr := hex.EncodeToString(sum[:])
	if len(hexStr) > 6 {
		hexStr = hexStr[:6]
	}
	return hexStr, nil
}

// ChecksumOrEmpty is Checksum for callers that only record the value. A
// failure is logged as a warning and yields "".
func ChecksumOrEmpty(cfg *Config) string {
	checksum, err := Checksum(cfg)
	if err != nil {
		logging.GetLogger().WithError(err).Warn("Failed to compute config checksum")
		return ""
	}
	return checksum
}
