package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_WithSections(t *testing.T) {
	base := ErrValidation("invalid request: %s", "metrics")
	err := base.WithSections(map[string][]string{
		"metrics": {"at least one metric is required"},
		"filters": nil,
	})

	assert.Equal(t, "invalid request: metrics", err.Error())
	assert.Equal(t, map[string][]string{"metrics": {"at least one metric is required"}}, err.Sections)
	assert.Nil(t, base.Sections)
}

func TestValidationSections(t *testing.T) {
	err := ErrValidation("bad").WithSections(map[string][]string{"limit": {"negative"}})

	assert.Equal(t, map[string][]string{"limit": {"negative"}}, ValidationSections(fmt.Errorf("load: %w", err)))
	assert.Nil(t, ValidationSections(ErrValidation("plain")))
	assert.Nil(t, ValidationSections(ErrNotFound("schema %q not found", "x")))
}
