// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"io"
	"time"

	"github.com/z5labs/loam/config"
	loamhttp "github.com/z5labs/loam/http"

	"github.com/go-playground/validator/v10"
)

// Config is the YAML representation of the [Factory] options which do not
// require code, e.g.
//
//	address: http://localhost:8080/
//	static_subresource_resolution: true
//	extensions:
//	  json: application/json
//	languages:
//	  en: en-gb
//	http:
//	  read_timeout: 5s
type Config struct {
	Address                     string            `yaml:"address" validate:"omitempty,url"`
	StaticSubresourceResolution bool              `yaml:"static_subresource_resolution"`
	Languages                   map[string]string `yaml:"languages" validate:"dive,keys,required,endkeys,required"`
	Extensions                  map[string]string `yaml:"extensions" validate:"dive,keys,required,endkeys,required"`
	SchemaLocations             []string          `yaml:"schema_locations" validate:"dive,required"`

	OpenApi struct {
		Title   string `yaml:"title"`
		Version string `yaml:"version"`
	} `yaml:"openapi"`

	HTTP struct {
		ReadTimeout       time.Duration `yaml:"read_timeout" validate:"gte=0"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
		WriteTimeout      time.Duration `yaml:"write_timeout" validate:"gte=0"`
		IdleTimeout       time.Duration `yaml:"idle_timeout" validate:"gte=0"`
		MaxHeaderBytes    int           `yaml:"max_header_bytes" validate:"gte=0"`
	} `yaml:"http"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid field of cfg.
func (cfg Config) Validate() error {
	return validate.Struct(cfg)
}

// ReadConfig decodes a YAML [Config] from r and validates it.
func ReadConfig[R io.Reader](ctx context.Context, r config.Reader[R]) (Config, error) {
	cfg, err := config.Read(ctx, config.UnmarshalYAML[Config](r))
	if err != nil {
		return Config{}, err
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromConfig applies cfg. Zero values leave the corresponding defaults untouched.
func FromConfig(cfg Config) Option {
	return func(f *Factory) {
		if cfg.Address != "" {
			f.address = cfg.Address
		}
		f.static = f.static || cfg.StaticSubresourceResolution
		if len(cfg.Languages) > 0 {
			LanguageMappings(cfg.Languages)(f)
		}
		if len(cfg.Extensions) > 0 {
			ExtensionMappings(cfg.Extensions)(f)
		}
		f.schemaLocations = append(f.schemaLocations, cfg.SchemaLocations...)

		if cfg.OpenApi.Title != "" {
			f.title = cfg.OpenApi.Title
		}
		if cfg.OpenApi.Version != "" {
			f.version = cfg.OpenApi.Version
		}

		h := cfg.HTTP
		if h.ReadTimeout > 0 {
			f.httpOpts = append(f.httpOpts, loamhttp.ReadTimeout(config.ReaderOf(h.ReadTimeout)))
		}
		if h.ReadHeaderTimeout > 0 {
			f.httpOpts = append(f.httpOpts, loamhttp.ReadHeaderTimeout(config.ReaderOf(h.ReadHeaderTimeout)))
		}
		if h.WriteTimeout > 0 {
			f.httpOpts = append(f.httpOpts, loamhttp.WriteTimeout(config.ReaderOf(h.WriteTimeout)))
		}
		if h.IdleTimeout > 0 {
			f.httpOpts = append(f.httpOpts, loamhttp.IdleTimeout(config.ReaderOf(h.IdleTimeout)))
		}
		if h.MaxHeaderBytes > 0 {
			f.httpOpts = append(f.httpOpts, loamhttp.MaxHeaderBytes(config.ReaderOf(h.MaxHeaderBytes)))
		}
	}
}
