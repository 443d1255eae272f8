package scoreboard

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
)

const MaxPostContent = 500

var validate = validator.New()

// PostFields is the client-supplied part of a post.
type PostFields struct {
	Type      model.PostType  `json:"type"`
	Content   string          `json:"content"`
	MediaUrl  string          `json:"mediaUrl,omitempty"`
	MediaType model.MediaType `json:"mediaType,omitempty"`
}

// ValidatePost normalizes and checks a post. Photo and video posts must carry a media URL
// whose media type matches the post type; the media type is inferred when omitted.
func ValidatePost(fields PostFields) (PostFields, error) {
	post := fields
	post.Content = strings.TrimSpace(post.Content)
	post.MediaUrl = strings.TrimSpace(post.MediaUrl)

	var violations []Violation

	switch post.Type {
	case model.PostText, model.PostCheer:
		if post.MediaUrl != "" || post.MediaType != "" {
			violations = append(violations, Violation{
				Field:   "mediaUrl",
				Code:    "post.media.unexpected",
				Message: string(post.Type) + " posts cannot carry media",
			})
		}
	case model.PostPhoto, model.PostVideo:
		expected := model.MediaImage
		if post.Type == model.PostVideo {
			expected = model.MediaVideo
		}
		switch {
		case post.MediaUrl == "":
			violations = append(violations, Violation{
				Field:   "mediaUrl",
				Code:    "post.media.required",
				Message: string(post.Type) + " posts require a media URL",
			})
		case !isHttpUrl(post.MediaUrl):
			violations = append(violations, Violation{
				Field:   "mediaUrl",
				Code:    "post.media.invalid-url",
				Message: "media URL must be an absolute http(s) URL",
			})
		}
		if post.MediaType == "" {
			post.MediaType = expected
		} else if post.MediaType != expected {
			violations = append(violations, Violation{
				Field:   "mediaType",
				Code:    "post.media.type-mismatch",
				Message: string(post.Type) + " posts require media type " + string(expected),
			})
		}
	default:
		violations = append(violations, Violation{
			Field:   "type",
			Code:    "post.type.unknown",
			Message: "type must be one of text, photo, video, cheer",
		})
	}

	length := utf8.RuneCountInString(post.Content)
	if length == 0 {
		violations = append(violations, Violation{
			Field:   "content",
			Code:    "post.content.required",
			Message: "content is required",
		})
	} else if length > MaxPostContent {
		violations = append(violations, Violation{
			Field:   "content",
			Code:    "post.content.too-long",
			Message: "content must be at most 500 characters",
		})
	}

	if len(violations) > 0 {
		return PostFields{}, &ValidationError{Violations: violations}
	}
	return post, nil
}

func isHttpUrl(raw string) bool {
	if validate.Var(raw, "url") != nil {
		return false
	}
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
