package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"benchsheet/internal/logging"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Default is the configuration used when no --config file is given.
func Default() *Config {
	cfg := &Config{
		Metrics:     map[string][]string{},
		Percentiles: map[string][]string{},
		CPUGroups: map[string]string{
			"0,2,4,8":    "0,2,4,8",
			"8,10,12,14": "8,10,12,14",
		},
	}
	cfg.Groups, _ = parseGroups(cfg.CPUGroups)
	return cfg
}

func LoadConfig(filepath string) (*Config, error) {
	config, _, err := LoadConfigWithContent(filepath)
	return config, err
}

func LoadConfigWithContent(filepath string) (*Config, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)

	expanded := expandEnvVars(originalContent)

	config := Default()
	config.CPUGroups = nil
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, "", err
	}
	if config.CPUGroups == nil {
		config.CPUGroups = Default().CPUGroups
	}

	groups, err := parseGroups(config.CPUGroups)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse CPU groups")
		return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	config.Groups = groups

	if err := validateConfig(config); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return config, originalContent, nil
}

func parseGroups(specs map[string]string) (map[string][]int, error) {
	groups := make(map[string][]int, len(specs))
	for label, spec := range specs {
		cpus, err := ParseCPUSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("cpu group %s: invalid CPU specification '%s': %w", label, spec, err)
		}
		groups[label] = cpus
	}
	return groups, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// ParseCPUSpec parses CPU specification strings like "0", "0,2,4", or "0-3".
// Order of first appearance is kept and duplicates are dropped.
func ParseCPUSpec(spec string) ([]int, error) {
	var cpus []int
	seen := make(map[int]bool)

	parts := strings.Split(spec, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid CPU range: %s", part)
			}

			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid CPU range start: %s", rangeParts[0])
			}

			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid CPU range end: %s", rangeParts[1])
			}

			if start > end {
				return nil, fmt.Errorf("invalid CPU range: start > end (%d > %d)", start, end)
			}

			for i := start; i <= end; i++ {
				if !seen[i] {
					cpus = append(cpus, i)
					seen[i] = true
				}
			}
		} else {
			cpu, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid CPU number: %s", part)
			}

			if !seen[cpu] {
				cpus = append(cpus, cpu)
				seen[cpu] = true
			}
		}
	}

	if len(cpus) == 0 {
		return nil, fmt.Errorf("no CPUs specified")
	}

	return cpus, nil
}

func validateConfig(config *Config) error {
	for tool, list := range config.Metrics {
		seen := make(map[string]bool)
		for _, m := range list {
			if strings.TrimSpace(m) == "" {
				return fmt.Errorf("metrics.%s: empty metric name", tool)
			}
			if seen[m] {
				return fmt.Errorf("metrics.%s: metric %s listed twice", tool, m)
			}
			seen[m] = true
		}
	}

	for tool, list := range config.Percentiles {
		for _, p := range list {
			if _, err := strconv.ParseFloat(p, 64); err != nil {
				return fmt.Errorf("percentiles.%s: invalid percentile %q", tool, p)
			}
		}
	}

	influx := config.Influx
	if influx.Host != "" && (influx.Token == "" || influx.Org == "" || influx.Bucket == "") {
		return fmt.Errorf("incomplete influx configuration")
	}

	return nil
}
