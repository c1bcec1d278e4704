package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultAPIURL = "https://api.mpp-sms.com/api/send.aspx/"

	// MPP language codes: 1 = English, 2 = Arabic.
	langCodeEnglish = "1"
	langCodeArabic  = "2"
)

// Sender delivers one-time codes over SMS. Delivery failures are reported as
// errors; the caller decides whether they are fatal.
type Sender interface {
	SendOTP(ctx context.Context, phoneNumber, code, language string) error
}

// Client sends SMS through the MPP gateway (Kuwait-based provider). When no
// API key is configured it degrades to a logged no-op so registration flows
// keep working in development.
type Client struct {
	apiKey     string
	senderName string
	apiURL     string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new MPP SMS client
func NewClient(apiKey, senderName string, log *zap.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		senderName: senderName,
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// SendOTP delivers a one-time code, with the message localized to the
// requested language ("en" or "ar").
func (c *Client) SendOTP(ctx context.Context, phoneNumber, code, language string) error {
	var message string
	if language == "ar" {
		message = code + " كود التحقق من رقم الهاتف"
	} else {
		message = "OTP Code is " + code
	}
	return c.send(ctx, phoneNumber, message, language)
}

func (c *Client) send(ctx context.Context, phoneNumber, message, language string) error {
	if c.apiKey == "" {
		c.log.Warn("MPP_API_KEY not configured, SMS not sent",
			zap.String("mobile", maskPhone(phoneNumber)))
		return nil
	}

	mobile := strings.TrimPrefix(phoneNumber, "+")
	langCode := langCodeEnglish
	if language == "ar" {
		langCode = langCodeArabic
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("language", langCode)
	params.Set("message", message)
	params.Set("sender", c.senderName)
	params.Set("mobile", mobile)

	// Transport-level failures are retried with bounded backoff; a gateway
	// rejection is final.
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("sms request: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read sms response: %w", err))
		}

		if strings.Contains(string(body), "OK") || resp.StatusCode == http.StatusOK {
			return nil
		}
		return fmt.Errorf("sms gateway rejected send: %s", strings.TrimSpace(string(body)))
	})
	if err != nil {
		return err
	}

	c.log.Info("sms sent", zap.String("mobile", maskPhone(mobile)))
	return nil
}

// maskPhone masks a phone number for logging (e.g. +96******89)
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
