package service

import (
	"context"
	"testing"
	"time"

	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLinkRepository struct {
	createFn func(ctx context.Context, link *model.Link) error
	getFn    func(ctx context.Context, code string) (*model.Link, error)
	listFn   func(ctx context.Context, limit, offset int) ([]model.Link, error)
	updateFn func(ctx context.Context, link *model.Link) error
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) List(ctx context.Context, limit, offset int) ([]model.Link, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockLinkRepository) Update(ctx context.Context, link *model.Link) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, link)
	}
	return nil
}

type recordingSink struct {
	created []model.LinkCreatedEvent
	clicked []model.LinkClickedEvent
}

func (r *recordingSink) OnLinkCreated(_ context.Context, ev model.LinkCreatedEvent) {
	r.created = append(r.created, ev)
}

func (r *recordingSink) OnLinkClicked(_ context.Context, ev model.LinkClickedEvent) {
	r.clicked = append(r.clicked, ev)
}

func TestLinkService_CreateLink(t *testing.T) {
	var stored *model.Link
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			stored = link
			return nil
		},
	}
	sink := &recordingSink{}

	svc := NewLinkService(repo, sink)
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		Code:  "abc123",
		URL:   "https://example.com",
		Title: "Example",
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "abc123", stored.Code)

	require.Len(t, sink.created, 1)
	ev := sink.created[0]
	assert.Equal(t, "abc123", ev.Keyword)
	assert.Equal(t, "https://example.com", ev.URL)
	assert.NotEmpty(t, ev.ID)
}

func TestLinkService_CreateLink_GeneratesCode(t *testing.T) {
	svc := NewLinkService(&mockLinkRepository{}, nil)
	link, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Len(t, link.Code, generatedCodeLength)
}

func TestLinkService_CreateLink_FailureFiresNoEvent(t *testing.T) {
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			return repository.ErrLinkExists
		},
	}
	sink := &recordingSink{}

	svc := NewLinkService(repo, sink)
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{Code: "taken", URL: "https://example.com"})
	assert.ErrorIs(t, err, repository.ErrLinkExists)
	assert.Empty(t, sink.created)
}

func TestLinkService_GetLink_NotFound(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return nil, repository.ErrLinkNotFound
		},
	}

	svc := NewLinkService(repo, nil)
	_, err := svc.GetLink(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestLinkService_ListLinks(t *testing.T) {
	repo := &mockLinkRepository{
		listFn: func(ctx context.Context, limit, offset int) ([]model.Link, error) {
			return []model.Link{{Code: "a"}, {Code: "b"}}, nil
		},
	}
	svc := NewLinkService(repo, nil)

	list, err := svc.ListLinks(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLinkService_UpdateLink(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	var updated *model.Link
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, Title: "old"}, nil
		},
		updateFn: func(ctx context.Context, link *model.Link) error {
			updated = link
			return nil
		},
	}

	svc := NewLinkService(repo, nil)
	url := "https://new.example.com"
	_, err := svc.UpdateLink(context.Background(), "abc", UpdateLinkInput{
		URL:       &url,
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "https://new.example.com", updated.URL)
	require.NotNil(t, updated.ExpiresAt)
	assert.True(t, updated.ExpiresAt.Equal(expires))
	assert.Equal(t, "old", updated.Title)
}

func TestLinkService_Resolve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	links := map[string]*model.Link{
		"live":     {Code: "live", URL: "https://example.com"},
		"later":    {Code: "later", URL: "https://example.com", ExpiresAt: &future},
		"disabled": {Code: "disabled", URL: "https://example.com", Disabled: true},
		"expired":  {Code: "expired", URL: "https://example.com", ExpiresAt: &past},
	}
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			if l, ok := links[code]; ok {
				return l, nil
			}
			return nil, repository.ErrLinkNotFound
		},
	}

	svc := NewLinkService(repo, nil).(*linkService)
	svc.now = func() time.Time { return now }

	tests := []struct {
		code    string
		wantErr error
	}{
		{"live", nil},
		{"later", nil},
		{"disabled", ErrLinkGone},
		{"expired", ErrLinkGone},
		{"missing", repository.ErrLinkNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), tt.code)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
