// remote.go — удалённый бэкенд: S3-совместимое объектное хранилище.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bigkaa/goartstore/share-module/internal/domain/model"
	"github.com/bigkaa/goartstore/share-module/internal/storage/spool"
)

// objectClient — операции S3, используемые бэкендом.
type objectClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// objectUploader — загрузка объекта (multipart для больших файлов).
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// urlPresigner — подпись GET-запроса для redirect.
type urlPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options — параметры подключения к S3.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// RemoteOptions — параметры удалённого бэкенда.
type RemoteOptions struct {
	Bucket string
	// Prefix — префикс ключей объектов (без завершающего /)
	Prefix string
	// PresignTTL — время жизни URL для redirect
	PresignTTL time.Duration
	// Timeout — таймаут одного вызова Upload/Delete
	Timeout time.Duration
}

// NewS3Client создаёт клиент S3. Для MinIO и других S3-совместимых
// хранилищ задаётся Endpoint и, как правило, PathStyle.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// RemoteBackend — хранение файлов в бакете S3.
type RemoteBackend struct {
	client    objectClient
	uploader  objectUploader
	presigner urlPresigner
	opts      RemoteOptions
	logger    *slog.Logger
}

// NewRemote создаёт удалённый бэкенд поверх клиента S3.
func NewRemote(client *s3.Client, opts RemoteOptions, logger *slog.Logger) *RemoteBackend {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 16 * 1024 * 1024
		u.Concurrency = 3
	})
	return newRemote(client, uploader, s3.NewPresignClient(client), opts, logger)
}

func newRemote(client objectClient, uploader objectUploader, presigner urlPresigner, opts RemoteOptions, logger *slog.Logger) *RemoteBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &RemoteBackend{
		client:    client,
		uploader:  uploader,
		presigner: presigner,
		opts:      opts,
		logger:    logger.With(slog.String("component", "remote_backend")),
	}
}

// Kind реализует Backend.
func (rb *RemoteBackend) Kind() model.BackendKind {
	return model.BackendRemote
}

// Bucket возвращает имя бакета.
func (rb *RemoteBackend) Bucket() string {
	return rb.opts.Bucket
}

// ObjectKey возвращает ключ объекта для storageKey с учётом префикса.
func (rb *RemoteBackend) ObjectKey(storageKey string) string {
	if rb.opts.Prefix == "" {
		return storageKey
	}
	return path.Join(rb.opts.Prefix, storageKey)
}

// Upload загружает файл из spool в бакет.
// Заполняет remoteObjectId (ключ объекта) и url (Location от S3).
func (rb *RemoteBackend) Upload(ctx context.Context, tmp spool.TempFile, rec model.FileRecord) (model.FileRecord, error) {
	f, err := os.Open(tmp.Path)
	if err != nil {
		return rec, fmt.Errorf("ошибка открытия временного файла %s: %w", tmp.StorageKey, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, rb.opts.Timeout)
	defer cancel()

	key := rb.ObjectKey(rec.StorageKey)
	out, err := rb.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(rb.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(rec.Mimetype),
		ContentLength: aws.Int64(tmp.Size),
	})
	if err != nil {
		return rec, fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	rec.Backend = model.BackendRemote
	rec.RemoteObjectID = key
	rec.URL = out.Location
	return rec, nil
}

// Resolve готовит отдачу объекта.
//
// transformable — presigned GET с response-content-disposition=attachment,
// raw — поток GetObject. Поток не ограничивается таймаутом: его время
// жизни определяет HTTP-запрос клиента.
func (rb *RemoteBackend) Resolve(ctx context.Context, rec model.FileRecord) (*Resolution, error) {
	if rec.Kind() == model.ResourceTransformable {
		presigned, err := rb.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket:                     aws.String(rb.opts.Bucket),
			Key:                        aws.String(rec.RemoteObjectID),
			ResponseContentDisposition: aws.String(encodedAttachment(rec.OriginalName)),
		}, s3.WithPresignExpires(rb.opts.PresignTTL))
		if err != nil {
			return nil, fmt.Errorf("ошибка подписи URL %s: %w", rec.RemoteObjectID, err)
		}
		return &Resolution{RedirectURL: presigned.URL}, nil
	}

	out, err := rb.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(rb.opts.Bucket),
		Key:    aws.String(rec.RemoteObjectID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, rec.RemoteObjectID)
		}
		return nil, fmt.Errorf("ошибка получения объекта %s: %w", rec.RemoteObjectID, err)
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	return &Resolution{
		Body:          out.Body,
		ContentLength: length,
	}, nil
}

// Delete удаляет объект из бакета. S3 не возвращает ошибку для
// отсутствующего ключа.
func (rb *RemoteBackend) Delete(ctx context.Context, rec model.FileRecord) error {
	ctx, cancel := context.WithTimeout(ctx, rb.opts.Timeout)
	defer cancel()

	_, err := rb.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(rb.opts.Bucket),
		Key:    aws.String(rec.RemoteObjectID),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", rec.RemoteObjectID, err)
	}
	rb.logger.Debug("Объект удалён", slog.String("key", rec.RemoteObjectID))
	return nil
}
