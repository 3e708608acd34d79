package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BartugKaan/developer-match/internal/domain"
	pkgkafka "github.com/BartugKaan/developer-match/pkg/kafka"
)

// Kafka topic constants for identity domain events.
const (
	TopicUserRegistered   = "devmatch.user.registered"
	TopicUserGithubLinked = "devmatch.user.github_linked"
	TopicUserLoggedOut    = "devmatch.user.logged_out"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the identity service.
const SourceIdentityService = "identity-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	// Provider is "local" for password accounts, "github" for accounts
	// created through OAuth.
	Provider string `json:"provider"`
}

// UserGithubLinkedData is the payload for a user.github_linked event.
type UserGithubLinkedData struct {
	UserID         string `json:"user_id"`
	GithubID       string `json:"github_id"`
	GithubUsername string `json:"github_username"`
}

// UserLoggedOutData is the payload for a user.logged_out event.
type UserLoggedOutData struct {
	UserID string `json:"user_id"`
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, provider string) error {
	data := UserRegisteredData{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Provider:    provider,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)

	return nil
}

// PublishUserGithubLinked publishes a user.github_linked event.
func (p *Producer) PublishUserGithubLinked(ctx context.Context, user *domain.User) error {
	data := UserGithubLinkedData{
		UserID:         user.ID,
		GithubID:       user.GithubID,
		GithubUsername: user.GithubUsername,
	}

	event, err := pkgkafka.NewEvent(TopicUserGithubLinked, user.ID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create user.github_linked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserGithubLinked, event); err != nil {
		return fmt.Errorf("publish user.github_linked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.github_linked event",
		slog.String("user_id", user.ID),
		slog.String("github_username", user.GithubUsername),
	)

	return nil
}

// PublishUserLoggedOut publishes a user.logged_out event.
func (p *Producer) PublishUserLoggedOut(ctx context.Context, userID string) error {
	data := UserLoggedOutData{UserID: userID}

	event, err := pkgkafka.NewEvent(TopicUserLoggedOut, userID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create user.logged_out event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserLoggedOut, event); err != nil {
		return fmt.Errorf("publish user.logged_out event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.logged_out event",
		slog.String("user_id", userID),
	)

	return nil
}
