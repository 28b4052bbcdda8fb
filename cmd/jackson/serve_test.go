package main

import (
	"context"
	"testing"

	"github.com/goliatone/go-jackson"
	"github.com/stretchr/testify/assert"
)

func TestRedirectURL(t *testing.T) {
	cfg := jackson.BaseConfig{BasePath: "/app"}
	assert.Equal(t, "http://localhost:8080/app/auth/callback", redirectURL(cfg, ":8080"))
	assert.Equal(t, "http://shell.local:9000/app/auth/callback", redirectURL(cfg, "shell.local:9000"))

	cfg.BasePath = "\\legacy"
	assert.Equal(t, "http://localhost:8080/legacy/auth/callback", redirectURL(cfg, ":8080"))

	cfg.RedirectURL = "https://shell.example.com/cb"
	assert.Equal(t, "https://shell.example.com/cb", redirectURL(cfg, ":8080"))
}

func TestOpenActivityDefaultsToMemory(t *testing.T) {
	serveOpts.activityDB = ""
	serveOpts.activityRedis = ""

	store, closer, err := openActivity(context.Background(), newLogger())
	assert.NoError(t, err)
	assert.IsType(t, &jackson.ActivityLog{}, store)
	assert.NoError(t, closer.Close())
}
