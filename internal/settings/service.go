package settings

import (
	"context"
	"fmt"

	"ragline/internal/rag"
)

const (
	ModePlain = "plain"
	ModeRAG   = "rag"

	MaxTopK = 50
)

type Settings struct {
	ID         int    `json:"-"`
	SearchTopK int    `json:"search_top_k"`
	AskMode    string `json:"ask_mode"`
}

// Defaults applies when the settings row cannot be read.
func Defaults(topK int) *Settings {
	return &Settings{ID: 1, SearchTopK: topK, AskMode: ModeRAG}
}

func (s *Settings) Validate() error {
	if s.SearchTopK < 1 || s.SearchTopK > MaxTopK {
		return rag.Validation("settings", fmt.Sprintf("search_top_k must be between 1 and %d", MaxTopK))
	}
	if s.AskMode != ModePlain && s.AskMode != ModeRAG {
		return rag.Validation("settings", "ask_mode must be plain or rag")
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
