package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ado-mcp/internal/devops"
	"ado-mcp/internal/discovery"
	"ado-mcp/internal/eventlog"
	"ado-mcp/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// FileName is the optional YAML overlay looked up in the data path.
const FileName = "ado-mcp"

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DevOps devops.Config

	DataPath         string
	LogDir           string
	CacheDir         string
	OrganizationFile string
	FieldMappingFile string
	JournalFile      string

	// ConfigFile is the overlay that was read, empty when none was found.
	ConfigFile string

	Discovery           DiscoveryConfig
	EnableMermaidCharts bool
}

// DiscoveryConfig bounds the sampling done by investigations.
type DiscoveryConfig struct {
	HierarchySampleSize  int
	FieldValueSampleSize int
	SampleFieldValues    bool
}

// keys maps overlay keys to the environment variables that override them.
var keys = map[string][]string{
	"organization":            {"AZURE_DEVOPS_ORG"},
	"organization_url":        {"AZURE_DEVOPS_ORG_URL"},
	"token":                   {"AZURE_DEVOPS_PAT", "AZDO_PAT"},
	"project":                 {"AZURE_DEVOPS_PROJECT"},
	"timeout_seconds":         {"AZURE_DEVOPS_TIMEOUT_SECONDS"},
	"cache_ttl_seconds":       {"AZURE_DEVOPS_CACHE_TTL_SECONDS"},
	"organization_file":       {"ORGANIZATION_FILE"},
	"field_mapping_file":      {"FIELD_MAPPING_FILE"},
	"hierarchy_sample_size":   {"HIERARCHY_SAMPLE_SIZE"},
	"field_value_sample_size": {"FIELD_VALUE_SAMPLE_SIZE"},
	"sample_field_values":     {"SAMPLE_FIELD_VALUES"},
	"enable_mermaid_charts":   {"ENABLE_MERMAID_CHARTS"},
}

// Load loads the configuration from .env files, an optional ado-mcp.yaml in
// the data path and environment variables. Environment variables win.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := getEnv("DATA_PATH", "")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	// Ensure directories exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	// 4. Overlay file and environment
	v, err := newViper(dataPath)
	if err != nil {
		return nil, err
	}

	org := strings.TrimSpace(v.GetString("organization"))
	orgURL := strings.TrimRight(strings.TrimSpace(v.GetString("organization_url")), "/")
	if orgURL == "" && org != "" {
		orgURL = "https://dev.azure.com/" + org
	}

	cfg := &AppConfig{
		DevOps: devops.Config{
			Organization:    org,
			OrganizationURL: orgURL,
			Token:           v.GetString("token"),
			DefaultProject:  v.GetString("project"),
			Timeout:         seconds(v.GetInt("timeout_seconds"), 30),
			CacheTTL:        seconds(v.GetInt("cache_ttl_seconds"), 300),
		},
		DataPath:         dataPath,
		LogDir:           logDir,
		CacheDir:         cacheDir,
		OrganizationFile: pathOr(v.GetString("organization_file"), filepath.Join(dataPath, store.DefaultOrganizationFile)),
		FieldMappingFile: pathOr(v.GetString("field_mapping_file"), filepath.Join(dataPath, store.DefaultFieldMappingFile)),
		JournalFile:      filepath.Join(dataPath, eventlog.DefaultJournalFile),
		ConfigFile:       v.ConfigFileUsed(),
		Discovery: DiscoveryConfig{
			HierarchySampleSize:  capped(v.GetInt("hierarchy_sample_size"), discovery.MaxHierarchySample),
			FieldValueSampleSize: capped(v.GetInt("field_value_sample_size"), discovery.MaxFieldValueSample),
			SampleFieldValues:    v.GetBool("sample_field_values"),
		},
		EnableMermaidCharts: v.GetBool("enable_mermaid_charts"),
	}

	return cfg, nil
}

func newViper(dataPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dataPath)

	v.SetDefault("timeout_seconds", 30)
	v.SetDefault("cache_ttl_seconds", 300)
	v.SetDefault("hierarchy_sample_size", discovery.MaxHierarchySample)
	v.SetDefault("field_value_sample_size", discovery.MaxFieldValueSample)
	v.SetDefault("sample_field_values", false)
	v.SetDefault("enable_mermaid_charts", false)

	for key, envs := range keys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s.yaml: %w", FileName, err)
		}
		log.Debug().Str("path", dataPath).Msg("No configuration file found, using environment only")
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Loaded configuration file")
	}
	return v, nil
}

// Validate reports the settings required to reach Azure DevOps.
func (c *AppConfig) Validate() error {
	var missing []string
	if c.DevOps.Organization == "" && c.DevOps.OrganizationURL == "" {
		missing = append(missing, "AZURE_DEVOPS_ORG")
	}
	if c.DevOps.Token == "" {
		missing = append(missing, "AZURE_DEVOPS_PAT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func capped(n, limit int) int {
	if n <= 0 || n > limit {
		return limit
	}
	return n
}

func pathOr(p, fallback string) string {
	if strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}
