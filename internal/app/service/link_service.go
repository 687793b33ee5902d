package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/repository"
)

// ErrLinkGone is returned by Resolve for disabled or expired links.
var ErrLinkGone = errors.New("link is disabled or expired")

const generatedCodeLength = 8

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, code string) (*model.Link, error)
	ListLinks(ctx context.Context, limit, offset int) ([]model.Link, error)
	UpdateLink(ctx context.Context, code string, input UpdateLinkInput) (*model.Link, error)
	Resolve(ctx context.Context, code string) (*model.Link, error)
}

type linkService struct {
	repo   repository.LinkRepository
	events EventSink
	now    func() time.Time
}

// NewLinkService returns a service implementation backed by the given repository.
// Successful creations are reported to events when it is non-nil.
func NewLinkService(repo repository.LinkRepository, events EventSink) LinkService {
	return &linkService{repo: repo, events: events, now: time.Now}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	Code      string
	URL       string
	Title     string
	Disabled  bool
	ExpiresAt *time.Time
}

// UpdateLinkInput captures fields that can be changed on an existing link.
type UpdateLinkInput struct {
	URL       *string
	Title     *string
	Disabled  *bool
	ExpiresAt *time.Time
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	link := &model.Link{
		Code:      strings.TrimSpace(input.Code),
		URL:       input.URL,
		Title:     input.Title,
		Disabled:  input.Disabled,
		ExpiresAt: input.ExpiresAt,
	}

	if link.Code == "" {
		link.Code = generateCode()
	}

	if err := s.repo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	if s.events != nil {
		s.events.OnLinkCreated(ctx, model.LinkCreatedEvent{
			ID:         uuid.New().String(),
			Keyword:    link.Code,
			URL:        link.URL,
			OccurredAt: s.now(),
		})
	}
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, code string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	if input.URL != nil {
		link.URL = *input.URL
	}
	if input.Title != nil {
		link.Title = *input.Title
	}
	if input.Disabled != nil {
		link.Disabled = *input.Disabled
	}
	if input.ExpiresAt != nil {
		link.ExpiresAt = input.ExpiresAt
	}

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	return link, nil
}

// Resolve loads a link that can be redirected to right now.
func (s *linkService) Resolve(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve link: %w", err)
	}
	if link.Disabled || link.Expired(s.now()) {
		return nil, ErrLinkGone
	}
	return link, nil
}

func generateCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:generatedCodeLength]
}
