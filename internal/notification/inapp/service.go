package inapp

import (
	"context"
	"strings"

	"crm_pipeline_backend/internal/notification/sse"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const opSend = "notification.inapp.service.send"

// Store is the persistence used by Service.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo Store
	sse  *sse.Service
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// SetSSE injects the SSE service (circular dependency avoidance).
func (s *Service) SetSSE(sseSvc *sse.Service) {
	s.sse = sseSvc
}

type SendParams struct {
	UserID       uuid.UUID
	Kind         string
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "success", "warning", "error"
}

// Send persists the notification and pushes it via SSE if the user is online.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured").WithOp(opSend)
	}
	if p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation("userId is required").WithOp(opSend)
	}
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
		return Notification{}, apperr.Validation("title and content are required").WithOp(opSend)
	}

	if p.Category == "" {
		p.Category = "info"
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	notif, err := s.repo.Create(ctx, CreateParams{
		UserID:       p.UserID,
		Kind:         p.Kind,
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
	})
	if err != nil {
		return Notification{}, err
	}

	if s.sse != nil {
		s.sse.Publish(p.UserID, sse.Event{
			Type:    sse.EventInAppNotification,
			Message: notif.Title,
			Data:    notif,
		})
	}

	return notif, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
