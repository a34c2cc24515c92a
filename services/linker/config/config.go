// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the EntityLink configuration.
//
// Configuration is YAML. An embedded default (linker.yaml) supplies every
// key; a user file only needs the keys it changes. A small set of
// LINKER_* environment variables override the result. The loaded Config is
// immutable and passed by pointer into constructors.
package config

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed linker.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds configuration input.
const MaxYAMLFileSize = 1 << 20

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var configTracer = otel.Tracer("linker.config")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete EntityLink configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Language selects the language-specific label field and index core.
	Language string `yaml:"language" validate:"required,alpha,min=2,max=8"`

	Index     IndexConfig     `yaml:"index"`
	Query     QueryConfig     `yaml:"query"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Batch     BatchConfig     `yaml:"batch"`
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// IndexConfig selects and configures the search index backend.
type IndexConfig struct {
	// Backend is "solr", "memory" or "weaviate".
	Backend string `yaml:"backend" validate:"oneof=solr memory weaviate"`

	// Endpoint is the base URL of the index. Unused by the memory backend.
	Endpoint string `yaml:"endpoint" validate:"required_unless=Backend memory,omitempty,url"`

	// CorePrefix is prepended to the language to form the Solr core name.
	CorePrefix string `yaml:"core_prefix"`

	// Timeout bounds a single index query. Zero means no client timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// RateLimit is the maximum queries per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// Burst is the limiter bucket size.
	Burst int `yaml:"burst" validate:"gte=0"`

	// UsernameEnv and PasswordEnv name the environment variables holding
	// basic-auth credentials. Credentials are optional.
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`

	// RecordsPath is the JSON lines file loaded by the memory backend.
	RecordsPath string `yaml:"records_path"`

	Weaviate WeaviateConfig `yaml:"weaviate"`
}

// WeaviateConfig configures the weaviate backend.
type WeaviateConfig struct {
	Class     string `yaml:"class" validate:"required"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// QueryConfig names the index fields and boosts used by the query builder.
type QueryConfig struct {
	LabelFieldPrefix string             `yaml:"label_field_prefix" validate:"required"`
	AltLabelField    string             `yaml:"alt_label_field" validate:"required"`
	TypeField        string             `yaml:"type_field" validate:"required"`
	Types            []string           `yaml:"types" validate:"min=1,dive,required"`
	TypeBoosts       map[string]float64 `yaml:"type_boosts" validate:"dive,gt=0"`
	PhraseBoost      float64            `yaml:"phrase_boost" validate:"gt=0"`
	PopularityField  string             `yaml:"popularity_field"`
	PopularityBoost  float64            `yaml:"popularity_boost" validate:"gte=0"`
	Rows             int                `yaml:"rows" validate:"min=1,max=100"`
}

// ScoringConfig holds the three disambiguation cutoffs.
type ScoringConfig struct {
	// RelevancyCutoff: a hit is kept only if score/maxScore exceeds it.
	RelevancyCutoff float64 `yaml:"relevancy_cutoff" validate:"gte=0,lt=1"`

	// SimilarityCutoff: a label variant is scored only if its adapted
	// similarity exceeds it.
	SimilarityCutoff float64 `yaml:"similarity_cutoff" validate:"gte=0,lt=1"`

	// TotalScoreCutoff: the best composite score must exceed it.
	TotalScoreCutoff float64 `yaml:"total_score_cutoff" validate:"gte=0,lt=1"`
}

// BatchConfig bounds batch resolution parallelism.
type BatchConfig struct {
	Workers int `yaml:"workers" validate:"min=1,max=256"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	MaxBatchSize int           `yaml:"max_batch_size" validate:"min=1"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

// CacheConfig configures the optional result cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	InMemory bool          `yaml:"in_memory"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// AuditConfig configures the InfluxDB resolution audit sink.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Org      string `yaml:"org" validate:"required_if=Enabled true"`
	Bucket   string `yaml:"bucket" validate:"required_if=Enabled true"`
	TokenEnv string `yaml:"token_env"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" validate:"required"`
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	MetricsStdout bool   `yaml:"metrics_stdout"`
}

// =============================================================================
// Singleton Config
// =============================================================================

var (
	configMu      sync.RWMutex
	configOnce    sync.Once
	cachedConfig  *Config
	configLoadErr error
)

// GetConfig returns the embedded default configuration with environment
// overrides applied, loading it once.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetConfig(ctx context.Context) (*Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetConfig: ctx must not be nil")
	}

	configMu.RLock()
	if cachedConfig != nil || configLoadErr != nil {
		cfg, err := cachedConfig, configLoadErr
		configMu.RUnlock()
		return cfg, err
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	configOnce.Do(func() {
		cachedConfig, configLoadErr = load(ctx, nil, os.Getenv)
	})
	return cachedConfig, configLoadErr
}

// ResetConfig clears the cached config for testing.
func ResetConfig() {
	configMu.Lock()
	defer configMu.Unlock()
	cachedConfig = nil
	configLoadErr = nil
	configOnce = sync.Once{}
}

// =============================================================================
// Loading
// =============================================================================

// LoadConfig parses YAML over the embedded defaults and validates it.
//
// Description:
//
//	Keys missing from data keep their default values; lists in data replace
//	the default list. Environment variables are not consulted, which keeps
//	LoadConfig deterministic for tests. Empty data yields the defaults.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes. May be empty.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Wraps ErrInvalidConfig if parsing or validation fails.
func LoadConfig(ctx context.Context, data []byte) (*Config, error) {
	return load(ctx, data, func(string) string { return "" })
}

// LoadConfigFile reads path, layers it over the defaults, applies LINKER_*
// environment overrides and validates the result. An empty path loads the
// defaults plus environment.
func LoadConfigFile(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		return load(ctx, nil, os.Getenv)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfigFile: %w", err)
	}
	return load(ctx, data, os.Getenv)
}

func load(ctx context.Context, data []byte, getenv func(string) string) (*Config, error) {
	_, span := configTracer.Start(ctx, "config.LoadConfig")
	defer span.End()

	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: YAML data exceeds maximum size (%d > %d)", ErrInvalidConfig, len(data), MaxYAMLFileSize)
	}

	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing embedded defaults: %v", ErrInvalidConfig, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
		}
	}

	applyEnv(&cfg, getenv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("language", cfg.Language),
		attribute.String("index.backend", cfg.Index.Backend),
		attribute.Int("query.rows", cfg.Query.Rows),
		attribute.Int("batch.workers", cfg.Batch.Workers),
	)

	slog.Debug("linker config loaded",
		slog.String("language", cfg.Language),
		slog.String("backend", cfg.Index.Backend),
		slog.String("endpoint", cfg.Index.Endpoint),
		slog.Bool("cache", cfg.Cache.Enabled),
	)
	return &cfg, nil
}

// applyEnv overrides selected keys from the environment.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("LINKER_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := getenv("LINKER_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := getenv("LINKER_INDEX_ENDPOINT"); v != "" {
		cfg.Index.Endpoint = v
	}
	if v := getenv("LINKER_INDEX_RECORDS"); v != "" {
		cfg.Index.RecordsPath = v
	}
	if v := getenv("LINKER_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
		cfg.Cache.Enabled = true
	}
}

// =============================================================================
// Validation
// =============================================================================

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

// Validate checks field constraints and cross-field consistency.
func Validate(cfg *Config) error {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())
	})

	if err := structCheck.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.Index.Backend == "memory" && cfg.Index.RecordsPath == "" {
		return fmt.Errorf("%w: index.records_path is required for the memory backend", ErrInvalidConfig)
	}
	if cfg.Cache.Enabled && cfg.Cache.Path == "" && !cfg.Cache.InMemory {
		return fmt.Errorf("%w: cache.path or cache.in_memory is required when the cache is enabled", ErrInvalidConfig)
	}
	for typ := range cfg.Query.TypeBoosts {
		if !containsString(cfg.Query.Types, typ) {
			return fmt.Errorf("%w: query.type_boosts names %q which is not in query.types", ErrInvalidConfig, typ)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// =============================================================================
// Derived Values
// =============================================================================

// LabelField returns the language-specific primary label field, e.g. "label_en".
func (c *Config) LabelField() string {
	return c.Query.LabelFieldPrefix + c.Language
}

// CoreName returns the Solr core for the configured language, e.g. "dbpedia_en".
func (c *Config) CoreName() string {
	return c.Index.CorePrefix + c.Language
}

// Fingerprint returns a stable hex digest of every setting that changes
// resolution results. Cached results are keyed by it, so editing any of
// these settings makes earlier cache entries unreachable.
func (c *Config) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "lang=%s\n", c.Language)
	fmt.Fprintf(h, "index=%s\t%s\t%s\n", c.Index.Backend, c.Index.Endpoint, c.Index.CorePrefix)
	fmt.Fprintf(h, "fields=%s\t%s\t%s\t%s\n", c.Query.LabelFieldPrefix, c.Query.AltLabelField, c.Query.TypeField, c.Query.PopularityField)
	fmt.Fprintf(h, "types=%s\n", strings.Join(c.Query.Types, ","))

	boostKeys := make([]string, 0, len(c.Query.TypeBoosts))
	for k := range c.Query.TypeBoosts {
		boostKeys = append(boostKeys, k)
	}
	sort.Strings(boostKeys)
	for _, k := range boostKeys {
		fmt.Fprintf(h, "boost=%s:%g\n", k, c.Query.TypeBoosts[k])
	}

	fmt.Fprintf(h, "phrase=%g popularity=%g rows=%d\n", c.Query.PhraseBoost, c.Query.PopularityBoost, c.Query.Rows)
	fmt.Fprintf(h, "cutoffs=%g,%g,%g\n", c.Scoring.RelevancyCutoff, c.Scoring.SimilarityCutoff, c.Scoring.TotalScoreCutoff)
	return hex.EncodeToString(h.Sum(nil))
}
