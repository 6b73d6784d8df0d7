package prompt_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"glenn-svanberg-backend/internal/prompt"
)

var filenamePattern = regexp.MustCompile(`^glenn_[a-z0-9_]*_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.jpg$`)

func TestMakeFilename_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 123000000, time.UTC)

	a := prompt.MakeFilename("Glenn som rymdfärare på Mars!", "jpg", now)
	b := prompt.MakeFilename("Glenn som rymdfärare på Mars!", "jpg", now)

	assert.Equal(t, a, b)
	assert.Regexp(t, filenamePattern, a)
}

func TestMakeFilename_SanitizesPrompt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

	got := prompt.MakeFilename("Glenn's BIG   adventure: #1 (remix)!", "jpg", now)

	assert.True(t, strings.HasPrefix(got, "glenn_glenns_big_adventure_1_remix_"))
	assert.Regexp(t, filenamePattern, got)
}

func TestMakeFilename_CapsSlugLength(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	long := strings.Repeat("abcde ", 30)

	got := prompt.MakeFilename(long, "jpg", now)

	slug := strings.TrimPrefix(got, "glenn_")
	slug = slug[:strings.LastIndex(slug, "_2025-")]
	assert.LessOrEqual(t, len(slug), 50)
}

func TestMakeFilename_DistinctTimestampsDistinctNames(t *testing.T) {
	first := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	second := first.Add(time.Millisecond)

	a := prompt.MakeFilename("glenn som pirat", "jpg", first)
	b := prompt.MakeFilename("glenn som pirat", "jpg", second)

	assert.NotEqual(t, a, b)
}

func TestExtensionForMime(t *testing.T) {
	assert.Equal(t, "png", prompt.ExtensionForMime("image/png"))
	assert.Equal(t, "webp", prompt.ExtensionForMime("image/webp"))
	assert.Equal(t, "jpg", prompt.ExtensionForMime("image/jpeg"))
	assert.Equal(t, "jpg", prompt.ExtensionForMime(""))
	assert.Equal(t, "jpg", prompt.ExtensionForMime("application/octet-stream"))
}

func TestContainsSubjectMarker(t *testing.T) {
	assert.True(t, prompt.ContainsSubjectMarker("Glenn som vikingakung"))
	assert.True(t, prompt.ContainsSubjectMarker("a photo of GLENN surfing"))
	assert.False(t, prompt.ContainsSubjectMarker("a cowboy in the wild west"))
}

func TestBuildHiddenInstruction(t *testing.T) {
	got := prompt.BuildHiddenInstruction("  Glenn som kock som lagar köttbullar  ")

	assert.Contains(t, got, "facial structure")
	assert.Contains(t, got, "clothing, pose, and background")
	assert.Contains(t, got, "photorealistic")
	assert.Contains(t, got, "identity preservation wins")
	assert.True(t, strings.HasSuffix(got, "Request: Glenn som kock som lagar köttbullar"))
}
