package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"hanapbahay/internal/domain"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

const maxMessageLength = 2000

type ConversationService struct {
	repo   domain.ConversationRepository
	logger *zerolog.Logger
}

func NewConversationService(repo domain.ConversationRepository, logger *zerolog.Logger) *ConversationService {
	return &ConversationService{
		repo:   repo,
		logger: logger,
	}
}

// Start opens the tenant's conversation with the owner of a listing.
func (s *ConversationService) Start(ctx context.Context, actor Actor, listingID int64) (*models.Conversation, error) {
	if actor.Role != models.RoleTenant {
		return nil, ErrForbidden
	}
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == actor.UserID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	return s.repo.GetOrCreateConversation(ctx, listingID, actor.UserID, listing.OwnerID)
}

func (s *ConversationService) participant(ctx context.Context, actor Actor, conversationID int64) (*models.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) Send(ctx context.Context, actor Actor, conversationID int64, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", ErrValidation, maxMessageLength)
	}
	conv, err := s.participant(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.UserID) {
		return nil, ErrForbidden
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       actor.UserID,
		Kind:           models.MessageText,
		Body:           body,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ConversationService) List(ctx context.Context, actor Actor) ([]*models.Conversation, error) {
	return s.repo.ListConversations(ctx, actor.UserID)
}

// Messages pages backwards from beforeID (0 for the latest).
func (s *ConversationService) Messages(ctx context.Context, actor Actor, conversationID, beforeID int64, limit int) ([]*models.Message, error) {
	if _, err := s.participant(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > models.MaxPageSize {
		limit = models.DefaultPageSize * 2
	}
	return s.repo.ListMessages(ctx, conversationID, beforeID, limit)
}

func (s *ConversationService) MarkRead(ctx context.Context, actor Actor, conversationID int64) error {
	return s.repo.MarkConversationRead(ctx, conversationID, actor.UserID)
}

// Notify posts a system message into the tenant/owner conversation of a
// listing, creating the conversation when needed. Both sides see it unread.
func (s *ConversationService) Notify(ctx context.Context, listingID, tenantID, ownerID int64, body string) error {
	conv, err := s.repo.GetOrCreateConversation(ctx, listingID, tenantID, ownerID)
	if err != nil {
		return err
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		Kind:           models.MessageSystem,
		Body:           body,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return err
	}
	s.logger.Debug().Int64("conversation_id", conv.ID).Msg("System message posted")
	return nil
}
