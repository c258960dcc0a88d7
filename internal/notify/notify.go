// Package notify contains the outbound webhook client used to talk to the hosted collaborator
// functions (mail dispatch, contract signing)
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eventworks/backstage/internal/log"
)

const requestTimeout = 10 * time.Second

// Mail is the payload of the mail dispatch function
type Mail struct {
	// Recipient address
	To string `json:"to"`
	// Subject line
	Subject string `json:"subject"`
	// Plain-text body
	Body string `json:"body"`
}

// Webhook posts JSON payloads to external collaborator endpoints
type Webhook struct {
	client *http.Client
	logger *logrus.Entry
}

// NewWebhook creates a new webhook client with the given logger
func NewWebhook(logger *logrus.Entry) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Post sends the given payload to the URL and reports any transport or non-2xx failure.
// An empty URL means the collaborator is not configured - the call is skipped silently
func (w *Webhook) Post(url string, payload interface{}) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "Post: Failed to encode payload")
	}
	resp, err := w.client.Post(url, "application/json; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "Post: Request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Post: Collaborator answered with status %d", resp.StatusCode)
	}
	return nil
}

// PostAsync sends the given payload in the background. Failures are logged and dropped - this is
// the fire-and-forget path used for notification mails
func (w *Webhook) PostAsync(url string, payload interface{}) {
	if url == "" {
		return
	}
	go func() {
		if err := w.Post(url, payload); err != nil {
			w.logger.WithError(err).WithField(log.FldURL, url).Error("Webhook dispatch failed")
		}
	}()
}

// SendMail dispatches a notification mail through the mail collaborator, fire-and-forget
func (w *Webhook) SendMail(mailURL string, mail Mail) {
	w.PostAsync(mailURL, mail)
}
