package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStorage(t *testing.T) {
	keyring.MockInit()

	s, err := NewKeyringStorage("gqlsession-test")
	require.NoError(t, err)
	exerciseStorage(t, s)
}

func TestKeyringStorage_EmptyService(t *testing.T) {
	_, err := NewKeyringStorage("")
	assert.Error(t, err)
}
