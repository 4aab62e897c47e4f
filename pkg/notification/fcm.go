package notification

import (
	"context"
	"log"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMNotifier delivers passive caregiver notifications over Firebase Cloud
// Messaging. It implements the bridge.Notifier contract: these are the
// background-household alerts that must not steal the foreground display.
// A nil FCMNotifier is safe to call, so callers do not need to guard the
// push-disabled case.
type FCMNotifier struct {
	client *messaging.Client

	mu     sync.RWMutex
	tokens []string // this device's registered FCM tokens
}

// NewFCMNotifier initializes FCM from a service-account credentials file.
// Missing configuration disables push rather than failing startup.
func NewFCMNotifier(credentialsFile string) (*FCMNotifier, error) {
	if credentialsFile == "" {
		log.Println("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️ Failed to initialize Firebase app: %v (push notifications disabled)", err)
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to get messaging client: %v", err)
		return nil, nil
	}

	log.Println("✅ Firebase FCM initialized")
	return &FCMNotifier{client: client}, nil
}

// RegisterToken adds a device FCM token as a delivery target
func (n *FCMNotifier) RegisterToken(token string) {
	if n == nil || token == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.tokens {
		if t == token {
			return
		}
	}
	n.tokens = append(n.tokens, token)
}

// NotifyEmergency raises a high-priority passive alert for a background
// household's emergency
func (n *FCMNotifier) NotifyEmergency(householdID, seniorName, condition string) {
	n.send("⚠️ Emergency Alert", seniorName+" needs help! Status: "+condition, map[string]string{
		"type":         "emergency",
		"household_id": householdID,
		"condition":    condition,
	}, true)
}

// NotifyMedication raises a normal-priority medication event notice
func (n *FCMNotifier) NotifyMedication(householdID, seniorName, summary string) {
	n.send(seniorName+" medication", summary, map[string]string{
		"type":         "medication",
		"household_id": householdID,
	}, false)
}

func (n *FCMNotifier) send(title, body string, data map[string]string, high bool) {
	if n == nil || n.client == nil {
		return
	}
	n.mu.RLock()
	tokens := append([]string(nil), n.tokens...)
	n.mu.RUnlock()
	if len(tokens) == 0 {
		return
	}

	priority := "normal"
	if high {
		priority = "high"
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := n.client.SendMulticast(context.Background(), message)
	if err != nil {
		log.Printf("⚠️ FCM send failed: %v", err)
		return
	}
	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Printf("⚠️ FCM failure for token %s: %v", tokens[idx], resp.Error)
			}
		}
	}
}
