/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterCustomValidators registers the gateway's validation rules
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("positive", validatePositiveDuration); err != nil {
		return fmt.Errorf("failed to register positive validator: %w", err)
	}
	return nil
}

// validateDuration accepts strings understood by time.ParseDuration
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

func validatePositiveDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the configuration using struct tags and cross-field rules
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(yamlTagName)

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// TLS requires HTTP to be enabled
	if c.HTTP.TLS.Enabled && !c.HTTP.Enabled {
		return errors.New("TLS requires HTTP mode to be enabled")
	}

	// If HTTP is enabled and auth is enabled, token file is required
	if c.HTTP.Enabled && c.HTTP.Auth.Enabled && c.HTTP.Auth.TokenFile == "" {
		return errors.New("authentication token file is required when HTTP auth is enabled (use --no-auth to disable)")
	}

	if _, err := pgxpool.ParseConfig(c.Database.DSN); err != nil {
		return fmt.Errorf("database.dsn is not a valid connection string: %w", err)
	}

	return nil
}

// yamlTagName reports fields by their YAML key
func yamlTagName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, e.Param())
	case "duration":
		return fmt.Sprintf("%s must be a duration such as 5s or 1m", field)
	case "positive":
		return fmt.Sprintf("%s must be greater than zero", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
