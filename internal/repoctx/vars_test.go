package repoctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateVars(t *testing.T) {
	t.Parallel()

	files := []File{
		{Path: "main.go", Content: "package main\n", Language: "go"},
	}
	vars := TemplateVars(files)

	assert.Len(t, vars, 1)
	assert.Equal(t, "main.go", vars[0]["path"])
	assert.Equal(t, "go", vars[0]["language"])
}
