package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/nameserver/pkg/kv/badger"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	ns := cfg.Namespace
	if ns.DefaultSegmentSize%ns.DefaultChunkSize != 0 {
		return fmt.Errorf("namespace: default_segment_size %d is not a multiple of default_chunk_size %d",
			ns.DefaultSegmentSize, ns.DefaultChunkSize)
	}

	if cfg.Storage.Type == "badger" {
		opts, err := decodeBadgerOptions(cfg.Storage.Badger)
		if err != nil {
			return fmt.Errorf("storage.badger: %w", err)
		}
		if opts.DBPath == "" && !opts.InMemory {
			return fmt.Errorf("storage.badger: db_path is required unless in_memory is set")
		}
		if opts.Compression != "" {
			if _, err := badger.ParseCompression(opts.Compression); err != nil {
				return fmt.Errorf("storage.badger: %w", err)
			}
		}
		if opts.GCDiscardRatio < 0 || opts.GCDiscardRatio >= 1 {
			return fmt.Errorf("storage.badger: gc_discard_ratio must be in [0, 1), got %v", opts.GCDiscardRatio)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
