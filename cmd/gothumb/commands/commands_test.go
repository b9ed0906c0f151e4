package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datallboy/gothumb/internal/domain"
)

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, []fetchResult{
		{url: "https://img.test/a.png", img: &domain.Image{Width: 4, Height: 3, Data: make([]byte, 2048)}, file: "out/a.png"},
		{url: "https://img.test/b.png"},
	})

	out := buf.String()
	assert.Contains(t, out, "https://img.test/a.png")
	assert.Contains(t, out, "4x3")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "failed")
}

func TestVersionCommand(t *testing.T) {
	Version, Commit = "1.2.3", "abc"

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	assert.NoError(t, Execute())
	assert.Equal(t, "gothumb 1.2.3 (commit abc)\n", buf.String())
}
