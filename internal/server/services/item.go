package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	sc "github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	UploadURLValidity = 15 * time.Minute
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// ItemInput carries the writable fields of an item.
type ItemInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	LargeImage  string `json:"large_image"`
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", common.ErrValidation)
	}
	return nil
}

type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
}

func NewItemService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		logger:      logger.With("module", "items"),
	}
}

// CreateItem lists a new item owned by the caller.
func (s *ItemService) CreateItem(ctx context.Context, rc *Request, in ItemInput) (*models.Item, error) {
	caller, err := loadCaller(ctx, s.repomanager.Users(s.db), rc)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	item, err := s.repomanager.Items(s.db).Create(ctx, &models.Item{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		LargeImage:  in.LargeImage,
		UserID:      caller.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating item: %w", err)
	}
	s.logger.Info(ctx, "item created", "item_id", item.ID, "user_id", caller.ID)
	return item, nil
}

// Items returns one page of items, newest first.
func (s *ItemService) Items(ctx context.Context, limit, offset int) ([]*models.Item, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repomanager.Items(s.db).List(ctx, limit, offset)
}

func (s *ItemService) Item(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.repomanager.Items(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: item %s", common.ErrorNotFound, id)
		}
		return nil, err
	}
	return item, nil
}

// UpdateItem lets the owner, or a holder of ADMIN or ITEMUPDATE, edit an item.
func (s *ItemService) UpdateItem(ctx context.Context, rc *Request, id string, in ItemInput) (*models.Item, error) {
	item, err := s.authorizeItem(ctx, rc, id, models.PermissionAdmin, models.PermissionItemUpdate)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	item.Title = strings.TrimSpace(in.Title)
	item.Description = in.Description
	item.Price = in.Price
	item.Image = in.Image
	item.LargeImage = in.LargeImage

	updated, err := s.repomanager.Items(s.db).Update(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("error updating item: %w", err)
	}
	return updated, nil
}

// DeleteItem lets the owner, or a holder of ADMIN or ITEMDELETE, remove an
// item. The deleted item is returned.
func (s *ItemService) DeleteItem(ctx context.Context, rc *Request, id string) (*models.Item, error) {
	if _, err := s.authorizeItem(ctx, rc, id, models.PermissionAdmin, models.PermissionItemDelete); err != nil {
		return nil, err
	}

	deleted, err := s.repomanager.Items(s.db).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: item %s", common.ErrorNotFound, id)
		}
		return nil, fmt.Errorf("error deleting item: %w", err)
	}
	s.logger.Info(ctx, "item deleted", "item_id", id, "user_id", rc.UserID)
	return deleted, nil
}

// ImageUploadURL returns a storage key and a presigned PUT URL the client
// uploads an item image to.
func (s *ItemService) ImageUploadURL(ctx context.Context, rc *Request) (string, string, error) {
	if !rc.authenticated() {
		return "", "", common.ErrUnauthenticated
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := GetRandomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(UploadURLValidity))
	if err != nil {
		return "", "", fmt.Errorf("presign upload: %w", err)
	}

	return key, req.URL, nil
}

// GetRandomStorageKey returns a fresh object key under items/<date>/.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("items/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ItemService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.config.S3Region)}
	if s.config.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey, s.config.S3SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			// MinIO and other S3-compatible stores expect path-style URLs.
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// authorizeItem loads the item and the caller and applies the
// owner-or-permission rule.
func (s *ItemService) authorizeItem(ctx context.Context, rc *Request, id string, anyOf ...models.Permission) (*models.Item, error) {
	caller, err := loadCaller(ctx, s.repomanager.Users(s.db), rc)
	if err != nil {
		return nil, err
	}

	item, err := s.Item(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := auth.AuthorizeOwnerOr(caller, item.UserID, anyOf...); err != nil {
		return nil, err
	}
	return item, nil
}
