// Package prompt holds the deterministic text transforms: storage filenames
// derived from user prompts, and the hidden instruction wrapper sent to the
// identity-preserving backend.
package prompt

import (
	"regexp"
	"strings"
	"time"
)

// FilenamePrefix namespaces every generated object in the bucket.
const FilenamePrefix = "glenn"

// SubjectMarker must appear in prompts sent to the identity-preserving
// backend; without it there is no subject to lock the reference to.
const SubjectMarker = "glenn"

const maxSlugLength = 50

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	timestampFixup  = strings.NewReplacer(":", "-", ".", "-")
)

// MakeFilename derives a bucket key from a user prompt: lowercased slug of
// alphanumerics and underscores, capped at 50 characters, with a namespace
// prefix and a colon-free timestamp suffix. The timestamp keeps concurrent
// requests from colliding without any shared registry.
func MakeFilename(userPrompt, extension string, now time.Time) string {
	slug := strings.ToLower(userPrompt)
	slug = disallowedChars.ReplaceAllString(slug, "")
	slug = whitespaceRuns.ReplaceAllString(strings.TrimSpace(slug), "_")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}

	timestamp := timestampFixup.Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return FilenamePrefix + "_" + slug + "_" + timestamp + "." + strings.TrimPrefix(extension, ".")
}

// ExtensionForMime maps a generated image's content type to the filename
// extension. Unknown types fall back to jpg, which is what both providers
// return in practice.
func ExtensionForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// ContainsSubjectMarker reports whether the prompt mentions the reference
// subject. Checked before any network call on the identity-preserving path.
func ContainsSubjectMarker(userPrompt string) bool {
	return strings.Contains(strings.ToLower(userPrompt), SubjectMarker)
}

// BuildHiddenInstruction wraps the user's prompt in the identity-lock
// template. The text is only ever sent to the generation provider; clients
// see the resulting image, never the instruction.
func BuildHiddenInstruction(userPrompt string) string {
	var b strings.Builder
	b.WriteString("Edit the attached reference photo of Glenn. ")
	b.WriteString("Preserve Glenn's identity exactly: keep his facial structure, facial proportions, ")
	b.WriteString("age and ethnicity identical to the reference photo. Never swap, replace or blend ")
	b.WriteString("his face with anyone else's.\n\n")
	b.WriteString("You may change only the following, and only when the request asks for it: ")
	b.WriteString("clothing, pose, and background.\n\n")
	b.WriteString("The output must be a sharp, photorealistic photograph with natural lighting ")
	b.WriteString("and no visible artifacts.\n\n")
	b.WriteString("If any part of the request conflicts with preserving Glenn's identity, ")
	b.WriteString("identity preservation wins and that part of the request is ignored.\n\n")
	b.WriteString("Request: ")
	b.WriteString(strings.TrimSpace(userPrompt))
	return b.String()
}
