package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/clickhook/internal/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPrintsValidToken(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "s3cret")

	var out bytes.Buffer
	require.NoError(t, run([]string{"--subject", "ops", "--ttl", "1h"}, &out))

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)

	subject, err := util.NewTokenSigner([]byte("s3cret"), time.Hour).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
}

func TestRunRequiresSecret(t *testing.T) {
	t.Setenv("ADMIN_SECRET", "")

	var out bytes.Buffer
	err := run(nil, &out)
	assert.ErrorIs(t, err, util.ErrMissingSecret)
	assert.Empty(t, out.String())
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"--nope"}, &out))
}
