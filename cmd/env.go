package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/leadintake/internal/config"
	"github.com/leadintake/internal/logging"
)

// ConfigCheckResult holds the result of environment validation
type ConfigCheckResult struct {
	Missing  []string          // Required variables that are missing
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// envAlternatives lists, per requirement, the variables that satisfy it
var envAlternatives = [][]string{
	{"DATABASE_URL", config.EnvPrefix + "DATABASE__URL"},
}

var optionalEnv = []string{
	"OPENAI_API_KEY",
	config.EnvPrefix + "AI__API_KEY",
	config.EnvPrefix + "AUTH__JWT_SECRET",
	config.EnvPrefix + "NOTIFY__SMTP__PASSWORD",
	config.EnvPrefix + "NOTIFY__TWILIO__AUTH_TOKEN",
	config.EnvPrefix + "SECRETS__SSM_PREFIX",
	"AWS_REGION",
}

// CheckRequiredConfig validates that required environment variables are set
func CheckRequiredConfig() *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	for _, alts := range envAlternatives {
		found := false
		for _, v := range alts {
			if val := os.Getenv(v); val != "" {
				result.Present[v] = logging.MaskSecret(val)
				found = true
			}
		}
		if !found {
			result.Missing = append(result.Missing, strings.Join(alts, " or "))
		}
	}

	for _, v := range optionalEnv {
		if val := os.Getenv(v); val != "" {
			result.Present[v] = logging.MaskSecret(val)
		}
	}

	if os.Getenv(config.EnvPrefix+"AUTH__JWT_SECRET") == "" && os.Getenv(config.EnvPrefix+"SECRETS__SSM_PREFIX") == "" {
		result.Warnings = append(result.Warnings, "no JWT secret configured; a random one is generated at startup")
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Environment Check ===")
	fmt.Println("")

	if len(result.Missing) > 0 {
		fmt.Println("Missing required variables:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Configured variables:")
		for _, k := range keys {
			fmt.Printf("   - %s = %s\n", k, result.Present[k])
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("All required configuration is present")
	}

	fmt.Println("=========================")
}

// EnvCommand reports which environment variables are set, masked
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Check required environment variables",
		Action: func(c *cli.Context) error {
			result := CheckRequiredConfig()
			PrintConfigCheck(result)
			if len(result.Missing) > 0 {
				return cli.Exit("missing required environment variables", 1)
			}
			return nil
		},
	}
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
