package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUUID(t *testing.T) {
	t.Run("canonical random UUIDs are accepted", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			id := uuid.New().String()
			assert.True(t, IsUUID(id), id)
			assert.True(t, IsUUID(strings.ToUpper(id)), id)
		}
	})

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical", "11111111-2222-3333-4444-555555555555", true},
		{"nil uuid", "00000000-0000-0000-0000-000000000000", true},
		{"empty", "", false},
		{"too short", "11111111-2222-3333-4444-55555555555", false},
		{"too long", "11111111-2222-3333-4444-5555555555555", false},
		{"no dashes", "11111111222233334444555555555555", false},
		{"wrong separators", "11111111_2222_3333_4444_555555555555", false},
		{"misplaced dash", "1111111-12222-3333-4444-555555555555", false},
		{"non hex", "1111111g-2222-3333-4444-555555555555", false},
		{"braces", "{11111111-2222-3333-4444-555555555555}", false},
		{"urn prefix", "urn:uuid:11111111-2222-3333-4444-555555555555", false},
		{"free text", "not-a-uuid", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUUID(tt.in))
		})
	}
}

func TestValidateDatasetName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"simple", "my-dataset_1.0", false},
		{"max length", strings.Repeat("a", MaxDatasetNameLength), false},
		{"too long", strings.Repeat("a", MaxDatasetNameLength+1), true},
		{"empty", "", true},
		{"whitespace", "my dataset", true},
		{"slash", "a/b", true},
		{"unicode", "dätaset", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatasetName(tt.in)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.True(t, IsValidDatasetName(tt.in))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDatasetName))
			assert.True(t, IsValidation(err))
			assert.False(t, IsValidDatasetName(tt.in))
		})
	}
}

func TestHTTPErrorTaxonomy(t *testing.T) {
	assert.True(t, IsAuthFailure(&HTTPError{Status: 401, Route: "/dataset/list"}))
	assert.True(t, IsAuthFailure(&HTTPError{Status: 403, Route: "/dataset/list"}))
	assert.False(t, IsTransport(&HTTPError{Status: 401}))
	assert.True(t, IsTransport(&HTTPError{Status: 500, Route: "/dataset/list"}))
	assert.True(t, IsTransport(&HTTPError{Status: 404}))

	err := &HTTPError{Status: 502, Route: "/config/info", Body: "bad gateway"}
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "bad gateway")
}
