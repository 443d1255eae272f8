package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicBaseUrl(t *testing.T) {
	assert.Equal(t, "https://cdn.weplay.app", PublicBaseUrl(S3Config{CdnBaseUrl: "https://cdn.weplay.app/", Bucket: "media"}))
	assert.Equal(t, "http://localhost:9000/media", PublicBaseUrl(S3Config{Endpoint: "http://localhost:9000", Bucket: "media"}))
	assert.Equal(t, "https://media.s3.us-east-1.amazonaws.com", PublicBaseUrl(S3Config{Region: "us-east-1", Bucket: "media"}))
}

func TestKeyFromUrl(t *testing.T) {
	base := "https://cdn.weplay.app"

	key, ok := keyFromUrl(base, "https://cdn.weplay.app/posts/u1/1700000000000-hit.jpg")
	assert.True(t, ok)
	assert.Equal(t, "posts/u1/1700000000000-hit.jpg", key)

	_, ok = keyFromUrl(base, "https://elsewhere.example/posts/u1/a.jpg")
	assert.False(t, ok)

	_, ok = keyFromUrl(base, "https://cdn.weplay.app/")
	assert.False(t, ok)

	_, ok = keyFromUrl(base, "https://cdn.weplay.app/posts/../avatars/u2/a.jpg")
	assert.False(t, ok)
}
