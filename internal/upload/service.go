package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/model"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/storage"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	unsupportedType string = "error.upload.unsupported-type"
	fileTooLarge    string = "error.upload.too-large"
	invalidFolder   string = "error.upload.invalid-folder"
	tooManyFiles    string = "error.upload.too-many-files"
	noFiles         string = "error.upload.no-files"
	storageFailed   string = "error.upload.storage"
	unknownFile     string = "error.upload.unknown-file"
)

type UploadedFile struct {
	Url          string          `json:"url"`
	Key          string          `json:"key"`
	OriginalName string          `json:"originalName"`
	Size         int64           `json:"size"`
	MimeType     string          `json:"mimeType"`
	MediaType    model.MediaType `json:"mediaType"`
}

type UploadService struct {
	store storage.ObjectStore
	db    *gorm.DB
	now   func() time.Time
}

func NewUploadService(store storage.ObjectStore, db *gorm.DB) *UploadService {
	return &UploadService{store: store, db: db, now: time.Now}
}

func (s *UploadService) Upload(ctx context.Context, userId string, folder string, file *multipart.FileHeader) (*UploadedFile, *reject.ProblemWithTrace) {
	if folder == "" {
		folder = FolderPosts
	}
	if !validFolder(folder) {
		return nil, badUpload("Folder must be avatars or posts", invalidFolder)
	}

	mediaType, problem := checkFile(file)
	if problem != nil {
		return nil, problem
	}
	return s.put(ctx, userId, folder, file, mediaType)
}

// UploadMany stores every file or none are reported; files already stored before a
// failure are removed.
func (s *UploadService) UploadMany(ctx context.Context, userId string, folder string, files []*multipart.FileHeader) ([]UploadedFile, *reject.ProblemWithTrace) {
	if len(files) == 0 {
		return nil, badUpload("No files provided", noFiles)
	}
	if len(files) > MaxFiles {
		return nil, badUpload(fmt.Sprintf("At most %d files per upload", MaxFiles), tooManyFiles)
	}
	if folder == "" {
		folder = FolderPosts
	}
	if !validFolder(folder) {
		return nil, badUpload("Folder must be avatars or posts", invalidFolder)
	}

	mediaTypes := make([]model.MediaType, len(files))
	for i, file := range files {
		mediaType, problem := checkFile(file)
		if problem != nil {
			return nil, problem
		}
		mediaTypes[i] = mediaType
	}

	uploaded := make([]*UploadedFile, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			result, problem := s.put(groupCtx, userId, folder, file, mediaTypes[i])
			if problem != nil {
				return problem
			}
			uploaded[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		for _, file := range uploaded {
			if file == nil {
				continue
			}
			if delErr := s.store.Delete(context.WithoutCancel(ctx), file.Key); delErr != nil {
				log.Warn().Err(delErr).Str("key", file.Key).Msg("Error removing partial upload")
			}
		}
		var problem *reject.ProblemWithTrace
		if errors.As(err, &problem) {
			return nil, problem
		}
		return nil, storageProblem(err)
	}

	result := make([]UploadedFile, len(uploaded))
	for i, file := range uploaded {
		result[i] = *file
	}
	return result, nil
}

func (s *UploadService) UploadAvatar(ctx context.Context, userId string, file *multipart.FileHeader) (*UploadedFile, *reject.ProblemWithTrace) {
	mediaType, problem := checkFile(file)
	if problem != nil {
		return nil, problem
	}
	if mediaType != model.MediaImage {
		return nil, badUpload("Avatar must be an image", unsupportedType)
	}

	uploaded, problem := s.put(ctx, userId, FolderAvatars, file, mediaType)
	if problem != nil {
		return nil, problem
	}

	err := s.db.WithContext(ctx).Model(&model.User{Id: userId}).Update("avatar", uploaded.Url).Error
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), uploaded.Key); delErr != nil {
			log.Warn().Err(delErr).Str("key", uploaded.Key).Msg("Error removing orphaned avatar")
		}
		return nil, reject.StoreProblem(err)
	}

	log.Info().Str("userId", userId).Msg("Avatar updated")
	return uploaded, nil
}

// Delete removes a file previously uploaded by userId.
func (s *UploadService) Delete(ctx context.Context, userId string, fileUrl string) *reject.ProblemWithTrace {
	key, ok := s.store.KeyFromUrl(fileUrl)
	if !ok {
		return badUpload("File does not belong to this service", unknownFile)
	}

	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || !validFolder(parts[0]) || parts[1] != userId {
		return &reject.ProblemWithTrace{
			Problem: reject.ForbiddenProblem(),
			Cause:   fmt.Errorf("user %s does not own %s", userId, key),
		}
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return storageProblem(err)
	}

	log.Info().Str("userId", userId).Str("key", key).Msg("File deleted")
	return nil
}

func (s *UploadService) put(ctx context.Context, userId string, folder string, file *multipart.FileHeader, mediaType model.MediaType) (*UploadedFile, *reject.ProblemWithTrace) {
	contentType := file.Header.Get("Content-Type")
	key := s.objectKey(folder, userId, file.Filename, contentType)

	body, err := file.Open()
	if err != nil {
		return nil, reject.NewProblem().
			WithTitle("Cannot read uploaded file").
			WithStatus(http.StatusBadRequest).
			WithCode(unknownFile).
			WithKind(reject.KindValidation).
			Trace(err)
	}
	defer body.Close()

	url, err := s.store.Put(ctx, key, body, file.Size, contentType)
	if err != nil {
		return nil, storageProblem(err)
	}

	return &UploadedFile{
		Url:          url,
		Key:          key,
		OriginalName: file.Filename,
		Size:         file.Size,
		MimeType:     contentType,
		MediaType:    mediaType,
	}, nil
}

func (s *UploadService) objectKey(folder string, userId string, filename string, contentType string) string {
	name := slug.Make(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		name = "file"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]

	return fmt.Sprintf("%s/%s/%d-%s-%s%s",
		folder, userId, s.now().UnixMilli(), name, suffix, extensionOf(filename, contentType))
}

func checkFile(file *multipart.FileHeader) (model.MediaType, *reject.ProblemWithTrace) {
	contentType := file.Header.Get("Content-Type")
	mediaType, ok := mediaTypeOf(contentType)
	if !ok {
		return "", badUpload(fmt.Sprintf("File type %q is not allowed", contentType), unsupportedType)
	}
	if limit := sizeLimit(mediaType); file.Size > limit {
		return "", badUpload(fmt.Sprintf("File exceeds %d MiB", limit>>20), fileTooLarge)
	}
	return mediaType, nil
}

func badUpload(title string, code string) *reject.ProblemWithTrace {
	return reject.NewProblem().
		WithTitle(title).
		WithStatus(http.StatusBadRequest).
		WithCode(code).
		WithKind(reject.KindValidation).
		Trace(nil)
}

func storageProblem(err error) *reject.ProblemWithTrace {
	log.Warn().Err(err).Msg("Object storage failed")
	return reject.NewProblem().
		WithTitle("Trouble accessing file storage").
		WithStatus(http.StatusServiceUnavailable).
		WithCode(storageFailed).
		WithKind(reject.KindTransport).
		Trace(err)
}
