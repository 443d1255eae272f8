package scoreboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
)

func TestValidatePost(t *testing.T) {
	cases := []struct {
		name   string
		fields PostFields
		code   string
	}{
		{name: "text ok", fields: PostFields{Type: model.PostText, Content: "Let's go!"}},
		{name: "cheer ok", fields: PostFields{Type: model.PostCheer, Content: "Go team"}},
		{
			name:   "photo ok",
			fields: PostFields{Type: model.PostPhoto, Content: "dugout", MediaUrl: "https://cdn.weplay.app/posts/a.jpg"},
		},
		{name: "empty content", fields: PostFields{Type: model.PostText, Content: "   "}, code: "post.content.required"},
		{
			name:   "content too long",
			fields: PostFields{Type: model.PostText, Content: strings.Repeat("a", MaxPostContent+1)},
			code:   "post.content.too-long",
		},
		{
			name:   "text with media",
			fields: PostFields{Type: model.PostText, Content: "hi", MediaUrl: "https://x.io/a.png"},
			code:   "post.media.unexpected",
		},
		{name: "photo without media", fields: PostFields{Type: model.PostPhoto, Content: "hi"}, code: "post.media.required"},
		{
			name:   "relative media url",
			fields: PostFields{Type: model.PostVideo, Content: "hi", MediaUrl: "/uploads/a.mp4"},
			code:   "post.media.invalid-url",
		},
		{
			name: "video with image media",
			fields: PostFields{
				Type: model.PostVideo, Content: "hi", MediaUrl: "https://x.io/a.mp4", MediaType: model.MediaImage,
			},
			code: "post.media.type-mismatch",
		},
		{name: "unknown type", fields: PostFields{Type: "poll", Content: "hi"}, code: "post.type.unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			post, err := ValidatePost(tc.fields)
			if tc.code == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, post.Content)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.code, verr.Violations[0].Code)
		})
	}
}

func TestValidatePostInfersMediaType(t *testing.T) {
	post, err := ValidatePost(PostFields{Type: model.PostVideo, Content: " walk-off ", MediaUrl: "https://x.io/hr.mp4"})
	require.NoError(t, err)
	assert.Equal(t, model.MediaVideo, post.MediaType)
	assert.Equal(t, "walk-off", post.Content)
}

func TestValidatePostCountsRunes(t *testing.T) {
	_, err := ValidatePost(PostFields{Type: model.PostCheer, Content: strings.Repeat("⚾", MaxPostContent)})
	assert.NoError(t, err)
}
