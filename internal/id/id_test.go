package id

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for range count {
		id, err := Generate("sse")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Prefix(t *testing.T) {
	id, err := Generate("client")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "client-"))
	assert.Len(t, id, len("client-")+21)
}

func TestLicenseID_Format(t *testing.T) {
	now := time.UnixMilli(1760000000123)

	licenseID, err := LicenseID("BV", now)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^BV-[A-Z0-9]{4}-1760000000123$`)
	assert.Regexp(t, pattern, licenseID)
}

func TestLicenseID_CustomPrefix(t *testing.T) {
	licenseID, err := LicenseID("BEAT", time.Now())
	require.NoError(t, err)

	parts := strings.Split(licenseID, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "BEAT", parts[0])
	assert.Len(t, parts[1], 4)
	assert.NotEmpty(t, parts[2])
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		id := MustGenerate("req")
		assert.True(t, strings.HasPrefix(id, "req-"))
	})
}
