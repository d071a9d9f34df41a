package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"

	"github.com/rowjay/sitebak/internal/config"
	"github.com/rowjay/sitebak/internal/util"
)

// Event describes the outcome of one backup operation.
type Event struct {
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Bucket      string    `json:"bucket"`
	BackupID    string    `json:"backup_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Duration    string    `json:"duration"`
	Error       string    `json:"error,omitempty"`
}

func (e Event) summary() string {
	text := fmt.Sprintf("[%s] %s (%s, %s)", e.Status, e.Message, e.Environment, e.Duration)
	if e.Error != "" {
		text += ": " + e.Error
	}
	return text
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every target. Each target is retried on its own
// up to Attempts times, so a failing target never causes a duplicate delivery
// to one that already succeeded. The returned error joins the final failures.
type Multi struct {
	Targets  []Notifier
	Attempts int
	Backoff  time.Duration
}

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, target := range m.Targets {
		if target == nil {
			continue
		}
		err := util.Retry(ctx, m.Attempts, m.Backoff, func() error {
			return target.Notify(ctx, event)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Empty() bool { return len(m.Targets) == 0 }

type Webhook struct {
	Name    string
	URL     string
	Headers map[string]string
}

func (w Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return post(ctx, "webhook "+w.Name, w.URL, body, w.Headers)
}

type Mattermost struct {
	Name string
	URL  string
}

func (m Mattermost) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(map[string]string{"text": event.summary()})
	if err != nil {
		return err
	}
	return post(ctx, "mattermost "+m.Name, m.URL, body, nil)
}

type Matrix struct {
	Name        string
	ServerURL   string
	AccessToken string
	RoomID      string
}

func (m Matrix) Notify(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%d", m.ServerURL, m.RoomID, time.Now().UnixNano())
	body, err := json.Marshal(map[string]any{
		"msgtype": "m.text",
		"body":    event.summary(),
	})
	if err != nil {
		return err
	}
	return post(ctx, "matrix "+m.Name, endpoint, body, map[string]string{"Authorization": "Bearer " + m.AccessToken})
}

type publishAPI interface {
	PublishWithContext(ctx aws.Context, input *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error)
}

// SNS publishes the JSON event to a topic, with the summary line as subject.
type SNS struct {
	Name     string
	TopicARN string
	api      publishAPI
}

func NewSNS(sess *session.Session, name, topicARN string) SNS {
	return SNS{Name: name, TopicARN: topicARN, api: sns.New(sess)}
}

func (s SNS) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("sitebak %s %s", event.Type, event.Status)
	_, err = s.api.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns %s: %w", s.Name, err)
	}
	return nil
}

// FromConfig builds the configured targets. sess is only needed when SNS
// topics are configured and may be nil otherwise.
func FromConfig(cfg config.NotificationsConfig, sess *session.Session) Multi {
	var targets []Notifier
	for _, w := range cfg.Webhooks {
		targets = append(targets, Webhook{Name: w.Name, URL: w.URL, Headers: w.Headers})
	}
	for _, mm := range cfg.Mattermost {
		targets = append(targets, Mattermost{Name: mm.Name, URL: mm.URL})
	}
	for _, mx := range cfg.Matrix {
		targets = append(targets, Matrix{Name: mx.Name, ServerURL: mx.ServerURL, AccessToken: mx.AccessToken, RoomID: mx.RoomID})
	}
	if sess != nil {
		for _, t := range cfg.SNS {
			targets = append(targets, NewSNS(sess, t.Name, t.TopicARN))
		}
	}
	return Multi{Targets: targets, Attempts: cfg.RetryCount + 1, Backoff: cfg.RetryBackoff}
}

func post(ctx context.Context, name, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", name, resp.Status)
	}
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
