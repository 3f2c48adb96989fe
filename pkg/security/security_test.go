package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

func TestValidateName_Valid(t *testing.T) {
	validNames := []string{
		"default",
		"image-renders",
		"voice_v2",
		"a",
		"listing.photos",
	}

	for _, name := range validNames {
		assert.NoError(t, ValidateName(name), "Expected %q to be valid", name)
	}
}

func TestValidateName_Invalid(t *testing.T) {
	invalidNames := []string{
		"",
		"123-queue",
		"-queue",
		"queue with spaces",
		"queue@host",
		"queue/sub",
	}

	for _, name := range invalidNames {
		assert.ErrorIs(t, ValidateName(name), core.ErrInvalidName, "Expected %q to be invalid", name)
	}
}

func TestValidateName_TooLong(t *testing.T) {
	assert.ErrorIs(t, ValidateName(strings.Repeat("a", MaxNameLength+1)), core.ErrNameTooLong)
	assert.NoError(t, ValidateName(strings.Repeat("a", MaxNameLength)))
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
	assert.Equal(t, "upstream returned 502", SanitizeErrorMessage("upstream returned 502"))
	assert.Equal(t, "line1\nline2", SanitizeErrorMessage("line1\nline2"))
	assert.Equal(t, "nullbyte", SanitizeErrorMessage("null\x00byte"))
	assert.Equal(t, "bell", SanitizeErrorMessage("be\x07ll"))
}

func TestSanitizeErrorMessage_Truncates(t *testing.T) {
	long := strings.Repeat("é", MaxErrorMessageLength+50)

	got := SanitizeErrorMessage(long)

	assert.Equal(t, MaxErrorMessageLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestClampRetries(t *testing.T) {
	assert.Equal(t, 0, ClampRetries(-5))
	assert.Equal(t, 0, ClampRetries(0))
	assert.Equal(t, 3, ClampRetries(3))
	assert.Equal(t, MaxRetries, ClampRetries(MaxRetries+1))
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 1, ClampConcurrency(0))
	assert.Equal(t, 1, ClampConcurrency(-1))
	assert.Equal(t, 3, ClampConcurrency(3))
	assert.Equal(t, MaxConcurrency, ClampConcurrency(MaxConcurrency*2))
}
