package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDatabaseName(t *testing.T) {
	tests := map[string]string{
		"mongodb://localhost:27017/lifeline_prod":                  "lifeline_prod",
		"mongodb://user:pass@db:27017/alerts?authSource=admin":     "alerts",
		"mongodb://localhost:27017":                                defaultDatabaseName,
		"mongodb://localhost:27017/admin":                          defaultDatabaseName,
		"mongodb+srv://cluster0.example.net/ops?retryWrites=true": "ops",
	}

	for uri, want := range tests {
		assert.Equal(t, want, extractDatabaseName(uri), uri)
	}
}
