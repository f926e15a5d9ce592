// Package config loads run configuration from an optional YAML file, the
// environment and a Databricks profile file.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/etl/metrics"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/de-tools/commerce-atlas/pkg/services/shopify"
	"github.com/de-tools/commerce-atlas/pkg/services/telemetry"
	"github.com/de-tools/commerce-atlas/pkg/store/warehouse"
	"github.com/spf13/viper"
)

const EnvPrefix = "ATLAS"

type Config struct {
	Shop      shopify.Config   `mapstructure:"shop"`
	Warehouse Warehouse        `mapstructure:"warehouse"`
	Output    Output           `mapstructure:"output"`
	Pipeline  Pipeline         `mapstructure:"pipeline"`
	Metrics   telemetry.Config `mapstructure:"metrics"`
	Log       Log              `mapstructure:"log"`
}

type Warehouse struct {
	warehouse.Config `mapstructure:",squash"`
	// ProfileFile and Profile fill in Databricks host and token when they
	// are not set directly.
	ProfileFile string `mapstructure:"profile_file"`
	Profile     string `mapstructure:"profile"`
}

type Output struct {
	Mode string `mapstructure:"mode"`
	Dir  string `mapstructure:"dir"`
}

type Pipeline struct {
	Channels          []string      `mapstructure:"channels"`
	TopSellersLimit   int           `mapstructure:"top_sellers_limit"`
	ChannelSalesLimit int           `mapstructure:"channel_sales_limit"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitDelay    time.Duration `mapstructure:"rate_limit_delay"`
	SKUBatchSize      int           `mapstructure:"sku_batch_size"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	OutOfStockPolicy  string        `mapstructure:"out_of_stock_policy"`
	WriteMode         string        `mapstructure:"write_mode"`
}

type Log struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

// legacyEnv are the variable names the scheduled jobs already export.
var legacyEnv = map[string]string{
	"shop.url":                      "SHOP_URL",
	"shop.api_key":                  "API_KEY",
	"shop.api_secret":               "API_SECRET",
	"shop.api_version":              "API_VERSION",
	"warehouse.bigquery.project_id": "GCP_PROJECT_ID",
	"warehouse.bigquery.dataset_id": "BIGQUERY_DATASET_ID",
}

func setDefaults(v *viper.Viper) {
	d := pipeline.DefaultSettings()

	v.SetDefault("shop.url", "")
	v.SetDefault("shop.api_key", "")
	v.SetDefault("shop.api_secret", "")
	v.SetDefault("shop.api_version", shopify.DefaultAPIVersion)
	v.SetDefault("shop.timeout", 60*time.Second)
	v.SetDefault("shop.max_retries", 3)

	v.SetDefault("warehouse.platform", "bigquery")
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.schema", "")
	v.SetDefault("warehouse.batch_size", warehouse.DefaultBatchSize)
	v.SetDefault("warehouse.profile_file", "")
	v.SetDefault("warehouse.profile", "DEFAULT")
	for _, key := range []string{"account", "user", "password", "database", "warehouse", "role"} {
		v.SetDefault("warehouse.snowflake."+key, "")
	}
	for _, key := range []string{"host", "token", "http_path", "warehouse_id", "catalog"} {
		v.SetDefault("warehouse.databricks."+key, "")
	}
	v.SetDefault("warehouse.bigquery.project_id", "")
	v.SetDefault("warehouse.bigquery.dataset_id", "")
	v.SetDefault("warehouse.bigquery.location", "US")
	v.SetDefault("warehouse.bigquery.credentials_file", "")

	v.SetDefault("output.mode", string(domain.OutputWarehouse))
	v.SetDefault("output.dir", "output")

	v.SetDefault("pipeline.channels", d.Channels)
	v.SetDefault("pipeline.top_sellers_limit", d.TopSellersLimit)
	v.SetDefault("pipeline.channel_sales_limit", d.ChannelSalesLimit)
	v.SetDefault("pipeline.rate_limit_enabled", d.RateLimit.Enabled)
	v.SetDefault("pipeline.rate_limit_delay", d.RateLimit.Duration)
	v.SetDefault("pipeline.sku_batch_size", d.SKUBatchSize)
	v.SetDefault("pipeline.batch_delay", d.BatchDelay.Duration)
	v.SetDefault("pipeline.out_of_stock_policy", string(d.OutOfStockPolicy))
	v.SetDefault("pipeline.write_mode", string(d.WriteMode))

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", telemetry.DefaultJob)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
}

// Load reads path when given, otherwise an atlas.yaml in the working
// directory if there is one. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("atlas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Settings converts the pipeline section into runner settings.
func (p Pipeline) Settings() (pipeline.Settings, error) {
	policy, err := metrics.ParseOutOfStockPolicy(p.OutOfStockPolicy)
	if err != nil {
		return pipeline.Settings{}, err
	}
	mode, err := domain.ParseWriteMode(p.WriteMode)
	if err != nil {
		return pipeline.Settings{}, err
	}
	if p.SKUBatchSize <= 0 {
		return pipeline.Settings{}, fmt.Errorf("sku_batch_size must be positive: got %d", p.SKUBatchSize)
	}

	return pipeline.Settings{
		Channels:          p.Channels,
		TopSellersLimit:   p.TopSellersLimit,
		ChannelSalesLimit: p.ChannelSalesLimit,
		RateLimit:         pipeline.Delay{Enabled: p.RateLimitEnabled, Duration: p.RateLimitDelay},
		SKUBatchSize:      p.SKUBatchSize,
		BatchDelay:        pipeline.Delay{Enabled: p.BatchDelay > 0, Duration: p.BatchDelay},
		OutOfStockPolicy:  policy,
		WriteMode:         mode,
	}, nil
}

// Validate checks what every run needs regardless of the output target.
func (c *Config) Validate() error {
	var missing []string
	if c.Shop.ShopURL == "" {
		missing = append(missing, "shop.url")
	}
	if c.Shop.APIKey == "" {
		missing = append(missing, "shop.api_key")
	}
	if c.Shop.APISecret == "" {
		missing = append(missing, "shop.api_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	mode, err := domain.ParseOutputMode(c.Output.Mode)
	if err != nil {
		return err
	}
	if mode == domain.OutputWarehouse && c.Warehouse.Platform == "" {
		return fmt.Errorf("warehouse.platform is required for warehouse output")
	}
	return nil
}

// WarehouseConfig returns the writer config with profile credentials merged in.
func (c *Config) WarehouseConfig(ctx context.Context) (warehouse.Config, error) {
	wc := c.Warehouse.Config
	if wc.Platform != "databricks" || c.Warehouse.ProfileFile == "" {
		return wc, nil
	}
	if wc.Databricks.Host != "" && wc.Databricks.Token != "" {
		return wc, nil
	}

	profiles, err := NewRegistry(c.Warehouse.ProfileFile)
	if err != nil {
		return wc, fmt.Errorf("load profiles %s: %w", c.Warehouse.ProfileFile, err)
	}
	profile, err := profiles.GetConfig(ctx, c.Warehouse.Profile)
	if err != nil {
		return wc, err
	}

	if wc.Databricks.Host == "" {
		wc.Databricks.Host = profile.Host
	}
	if wc.Databricks.Token == "" {
		wc.Databricks.Token = profile.Token
	}
	if wc.Databricks.WarehouseID == "" {
		wc.Databricks.WarehouseID = profile.WarehouseID
	}
	return wc, nil
}
