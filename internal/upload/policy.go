package upload

import (
	"path/filepath"
	"strings"

	"github.com/weplay-app/weplay-backend/internal/pkg/model"
)

const (
	MaxImageSize int64 = 10 << 20
	MaxVideoSize int64 = 100 << 20
	MaxFiles           = 5

	FolderAvatars = "avatars"
	FolderPosts   = "posts"
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/mpeg":      ".mpeg",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
}

func mediaTypeOf(contentType string) (model.MediaType, bool) {
	if _, ok := allowedTypes[contentType]; !ok {
		return "", false
	}
	if strings.HasPrefix(contentType, "video/") {
		return model.MediaVideo, true
	}
	return model.MediaImage, true
}

func sizeLimit(mediaType model.MediaType) int64 {
	if mediaType == model.MediaVideo {
		return MaxVideoSize
	}
	return MaxImageSize
}

func validFolder(folder string) bool {
	return folder == FolderAvatars || folder == FolderPosts
}

func extensionOf(filename string, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		return allowedTypes[contentType]
	}
	return ext
}
