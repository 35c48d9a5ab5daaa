package app_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zmang24/si-opportunity-manager/internal/app"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, app.ExitOK},
		{"plain failure", errors.New("boom"), app.ExitFailure},
		{"config", app.ConfigError(errors.New("missing JWT secret")), app.ExitConfig},
		{"usage", app.UsageError("unknown flag %q", "--x"), app.ExitUsage},
		{"store outage", fmt.Errorf("open: %w", domain.ErrExternalUnavailable), app.ExitStore},
		{"blob store outage", fmt.Errorf("put: %w", domain.ErrBlobUnavailable), app.ExitBlobStore},
		{"wrapped exit error", fmt.Errorf("startup: %w", app.ConfigError(domain.ErrExternalUnavailable)), app.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, app.ExitCode(tt.err))
		})
	}
}
