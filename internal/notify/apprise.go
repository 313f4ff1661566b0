// internal/notify/apprise.go
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification types understood by Apprise.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationError   = "error"
)

type Notification struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Type  string   `json:"type"`
	Tags  []string `json:"tags,omitempty"`
}

// AppriseClient pushes notifications to an Apprise endpoint.
type AppriseClient struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewAppriseClient(appriseURL string, logger *logrus.Logger) (*AppriseClient, error) {
	if logger == nil {
		logger = logrus.New()
	}

	url := appriseURL
	if strings.HasPrefix(url, "apprise://") {
		url = "http://" + strings.TrimPrefix(url, "apprise://")
		logger.Debugf("converted Apprise URL from %s to %s", appriseURL, url)
	}

	return &AppriseClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

func (a *AppriseClient) Close() error { return nil }

func (a *AppriseClient) Send(notificationType, title, message string) error {
	notification := Notification{
		Title: title,
		Body:  message,
		Type:  notificationType,
	}

	jsonData, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := a.httpClient.Post(a.url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// NotifyUpdated reports a completed rollover.
func (a *AppriseClient) NotifyUpdated(container, fromImage, toImage string) error {
	return a.Send(NotificationSuccess, "Worker updated",
		fmt.Sprintf("%s rolled over:\nPrevious: %s\nCurrent: %s", container, fromImage, toImage))
}

// NotifyUpdateFailed reports an aborted rollover that needs operator action.
func (a *AppriseClient) NotifyUpdateFailed(container, stage string, cause error) error {
	return a.Send(NotificationError, "Worker update failed",
		fmt.Sprintf("%s rollover aborted at %s:\n%v", container, stage, cause))
}
