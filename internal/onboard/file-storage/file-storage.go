// Пакет предоставляет интерфейс и реализации для работы с файловым хранилищем вложений анкет, включая локальное хранилище и Minio. Он обеспечивает операции сохранения, загрузки, удаления файлов и поддержку метаданных.
package filestorage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	UploadTries = 20
)

type Metadata struct {
	OrganizationId   string
	SubmissionId     string
	FormDefinitionId string
	DocumentTypeKey  string
}

type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

func (m Metadata) GetMap() map[string]string {
	meta := make(map[string]string)
	if m.OrganizationId != "" {
		meta["organizationId"] = m.OrganizationId
	}
	if m.SubmissionId != "" {
		meta["submissionId"] = m.SubmissionId
	}
	if m.FormDefinitionId != "" {
		meta["formDefinitionId"] = m.FormDefinitionId
	}
	if m.DocumentTypeKey != "" {
		meta["documentTypeKey"] = m.DocumentTypeKey
	}
	return meta
}

type FileStorage interface {
	Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error
	SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error
	Load(name uuid.UUID) ([]byte, error)
	LoadReader(name uuid.UUID) (io.ReadCloser, error)
	Delete(name uuid.UUID) error
	Exist(name uuid.UUID) (bool, error)
	ListRoot(fn func(FileInfo) error) error
	GetFileInfo(name uuid.UUID) (*FileInfo, error)
}

type LocalStorage struct {
	rootDir string
}

func (s *LocalStorage) Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error {
	return os.WriteFile(filepath.Join(s.rootDir, name.String()), data, 0644)
}

func (s *LocalStorage) SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error {
	f, err := os.Create(filepath.Join(s.rootDir, name.String()))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, reader)
	return err
}

func (s *LocalStorage) Load(name uuid.UUID) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.rootDir, name.String()))
}

func (s *LocalStorage) LoadReader(name uuid.UUID) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.rootDir, name.String()))
}

func (s *LocalStorage) Delete(name uuid.UUID) error {
	return os.Remove(filepath.Join(s.rootDir, name.String()))
}

func (s *LocalStorage) Exist(name uuid.UUID) (bool, error) {
	_, err := os.Stat(filepath.Join(s.rootDir, name.String()))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStorage) ListRoot(fn func(FileInfo) error) error {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := fn(FileInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *LocalStorage) GetFileInfo(name uuid.UUID) (*FileInfo, error) {
	info, err := os.Stat(filepath.Join(s.rootDir, name.String()))
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Name:      name.String(),
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

func NewLocalStorage(rootPath string) (FileStorage, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{rootPath}, nil
}

type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

func (s *MinioStorage) Save(data []byte, name uuid.UUID, contentType string, metadata *Metadata) error {
	putOptions := minio.PutObjectOptions{ContentType: contentType}
	if metadata != nil {
		putOptions.UserTags = metadata.GetMap()
	}

	var err error
	for i := 0; i < UploadTries; i++ {
		_, err = s.client.PutObject(context.Background(),
			s.bucketName,
			name.String(),
			bytes.NewReader(data),
			int64(len(data)),
			putOptions,
		)
		if err != nil {
			resp := minio.ToErrorResponse(err)
			slog.Error("Upload file to minio", "try", i+1, "code", resp.StatusCode, "msg", resp.Message)
			time.Sleep(time.Second * 20)
			continue
		}
		break
	}
	return err
}

func (s *MinioStorage) SaveReader(reader io.Reader, fileSize int64, name uuid.UUID, contentType string, metadata *Metadata) error {
	putOptions := minio.PutObjectOptions{ContentType: contentType}
	if metadata != nil {
		putOptions.UserTags = metadata.GetMap()
	}

	_, err := s.client.PutObject(context.Background(),
		s.bucketName,
		name.String(),
		reader,
		fileSize,
		putOptions,
	)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		slog.Error("Upload file to minio", "name", name, "code", resp.StatusCode, "msg", resp.Message, "err", err)
	}
	return err
}

func (s *MinioStorage) Load(name uuid.UUID) ([]byte, error) {
	obj, err := s.LoadReader(name)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

func (s *MinioStorage) LoadReader(name uuid.UUID) (io.ReadCloser, error) {
	return s.client.GetObject(context.Background(),
		s.bucketName,
		name.String(),
		minio.GetObjectOptions{},
	)
}

func (s *MinioStorage) Delete(name uuid.UUID) error {
	return s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		name.String(),
		minio.RemoveObjectOptions{},
	)
}

func (s *MinioStorage) Exist(name uuid.UUID) (bool, error) {
	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		name.String(),
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinioStorage) ListRoot(fn func(info FileInfo) error) error {
	for obj := range s.client.ListObjects(context.Background(), s.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if err := fn(FileInfo{
			Name:        obj.Key,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			CreatedAt:   obj.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MinioStorage) GetFileInfo(name uuid.UUID) (*FileInfo, error) {
	stat, err := s.client.StatObject(context.Background(), s.bucketName, name.String(), minio.StatObjectOptions{})
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Name:        name.String(),
		Size:        stat.Size,
		ContentType: stat.ContentType,
		CreatedAt:   stat.LastModified,
	}, nil
}

func NewMinioStorage(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool, bucketName string) (FileStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, err
	}

	if !exists {
		// Create bucket if not exist
		if err := client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client, bucketName}, nil
}
