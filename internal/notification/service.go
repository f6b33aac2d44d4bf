package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "famcal-backend/internal/auth/repository"
	caldomain "famcal-backend/internal/calendar/domain"
	"famcal-backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// AssignmentNotification is the message published when an event changes
// owner. Version makes redelivered messages detectable.
type AssignmentNotification struct {
	EventID    string    `json:"eventId"`
	EventTitle string    `json:"eventTitle"`
	AssigneeID string    `json:"assigneeId,omitempty"`
	StartTime  time.Time `json:"startTime"`
	Version    int       `json:"version"`
	MemberIDs  []string  `json:"memberIds"`
}

// Service decouples assignment changes from push delivery through a Pub/Sub
// topic: the usecase publishes, the subscription side fans out to FCM.
type Service struct {
	pubsubClient *pubsub.Client
	userRepo     authrepo.UserRepository
	deviceRepo   authrepo.DeviceTokenRepository
	fcmClient    *fcm.Client
	projectID    string
	topicName    string
	subName      string

	// Deduplication: track last delivered version per event so Pub/Sub
	// redeliveries do not become duplicate pushes.
	mu          sync.Mutex
	lastVersion map[string]int
}

func NewService(projectID, topicName string, userRepo authrepo.UserRepository, deviceRepo authrepo.DeviceTokenRepository, fcmClient *fcm.Client, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		fcmClient:    fcmClient,
		projectID:    projectID,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
		lastVersion:  make(map[string]int),
	}, nil
}

// EventAssigned publishes the assignment change. Failures are logged only;
// notifications are best effort by contract.
func (s *Service) EventAssigned(ctx context.Context, event *caldomain.Event, memberIDs []string) {
	msg := AssignmentNotification{
		EventID:    event.ID,
		EventTitle: event.Title,
		StartTime:  event.StartTime,
		Version:    event.Version,
		MemberIDs:  memberIDs,
	}
	if event.AssigneeID != nil {
		msg.AssigneeID = *event.AssigneeID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[PubSub] failed to marshal assignment notification: %v", err)
		return
	}

	topic := s.pubsubClient.Topic(s.topicName)
	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		log.Printf("[PubSub] failed to publish assignment notification for %s: %v", event.ID, err)
	}
}

// Start consumes the assignment topic and delivers pushes. Blocks until ctx
// is cancelled; run it in its own goroutine.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification AssignmentNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	s.mu.Lock()
	if last, ok := s.lastVersion[notification.EventID]; ok && notification.Version <= last {
		s.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate notification for event %s (version %d <= last %d)",
			notification.EventID, notification.Version, last)
		return
	}
	s.lastVersion[notification.EventID] = notification.Version
	s.mu.Unlock()

	if s.fcmClient == nil || s.deviceRepo == nil {
		return
	}

	tokens, err := s.deviceRepo.GetTokensByUserIDs(notification.MemberIDs)
	if err != nil {
		log.Printf("[FCM] Error getting device tokens: %v", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	title := "Event unassigned"
	body := fmt.Sprintf("%s no longer has anyone attending", notification.EventTitle)
	if notification.AssigneeID != "" {
		assigneeName := notification.AssigneeID
		if user, err := s.userRepo.FindByID(notification.AssigneeID); err == nil && user != nil {
			assigneeName = user.Name
		}
		title = "Event assigned"
		body = fmt.Sprintf("%s is taking %s", assigneeName, notification.EventTitle)
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := s.fcmClient.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "event_assigned",
			"eventId":      notification.EventID,
			"startTime":    notification.StartTime.Format(time.RFC3339),
			"click_action": "/events/" + notification.EventID,
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}

	for _, token := range failedTokens {
		if err := s.deviceRepo.DeleteToken(token); err != nil {
			log.Printf("[FCM] Failed to delete dead token: %v", err)
		}
	}
}
