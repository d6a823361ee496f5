// Package meme turns scream text into captioned meme images via the imgflip API.
package meme

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/screamboard/screamboard/internal/logger"
)

// ErrUpstream is matched by every failure of a Generator.
var ErrUpstream = errors.New("meme: upstream failure")

// UpstreamError describes a failed generation.
type UpstreamError struct {
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meme generation failed: %s: %v", e.Reason, e.Err)
	}
	return "meme generation failed: " + e.Reason
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// Generator returns an image URL for a caption text.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// Noop is used when no imgflip credentials are configured. Every call fails,
// so posts keep an empty meme URL and are retried once credentials exist.
type Noop struct{}

func (Noop) Generate(context.Context, string) (string, error) {
	return "", &UpstreamError{Reason: "meme generation disabled"}
}

// templateIDs are imgflip template ids used for captions.
var templateIDs = []string{
	"181913649", "87743020", "112126428", "217743513", "124822590",
	"222403160", "131087935", "97984", "131940431", "252600902",
	"135256802", "438680", "322841258", "188390779", "102156234",
	"161865971", "247375501", "309868304", "91538330", "93895088",
	"79132341", "110163934", "178591752", "100777631", "61579",
	"180190441", "224015000", "148909805", "55311130", "124055727",
	"61544", "91545132", "101470", "252758727", "27813981", "1035805",
	"558880671", "99683372", "177682295", "370867422", "427308417",
	"155067746", "67452763", "166969924", "135678846", "316466202",
	"89370399", "84341851", "101956210", "284929871", "77045868",
	"221578498", "226297822", "354700819", "171305372", "533936279",
	"61520", "119215120", "21735", "114585149", "206151308", "234202281",
	"5496396", "61556", "259237855", "247113703", "187102311", "101288",
	"14371066", "216523697", "50421420", "123999232", "134797956",
	"137501417", "142009471", "342785297", "247756783", "6235864",
	"61532", "196652226", "175540452", "110133729", "20007896",
	"360597639", "309668311", "92084495", "72525473",
}

// maxCaptionWords is the number of words kept per caption line.
const maxCaptionWords = 6

type captionResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
	Data         struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Imgflip calls the imgflip caption_image endpoint.
type Imgflip struct {
	client   *resty.Client
	breaker  *gobreaker.CircuitBreaker[string]
	endpoint string
	username string
	password string
	pick     func(n int) int
}

// ImgflipConfig configures NewImgflip.
type ImgflipConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// NewImgflip returns an imgflip generator. Calls are bounded by cfg.Timeout and
// fail fast while the circuit breaker is open.
func NewImgflip(cfg ImgflipConfig) *Imgflip {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "screamboard/1.0")

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "imgflip",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Imgflip{
		client:   client,
		breaker:  breaker,
		endpoint: cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		pick:     rand.Intn,
	}
}

// Generate captions a random template with text and returns the image URL.
func (g *Imgflip) Generate(ctx context.Context, text string) (string, error) {
	url, err := g.breaker.Execute(func() (string, error) {
		return g.caption(ctx, text)
	})
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return "", err
		}
		return "", &UpstreamError{Reason: "circuit open", Err: err}
	}
	return url, nil
}

func (g *Imgflip) caption(ctx context.Context, text string) (string, error) {
	top, bottom := SplitCaption(text)

	var result captionResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"template_id":   templateIDs[g.pick(len(templateIDs))],
			"username":      g.username,
			"password":      g.password,
			"text0":         top,
			"text1":         bottom,
			"max_font_size": "18",
		}).
		SetResult(&result).
		Post(g.endpoint)
	if err != nil {
		return "", &UpstreamError{Reason: "request failed", Err: err}
	}
	if resp.IsError() {
		return "", &UpstreamError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode())}
	}
	if !result.Success || result.Data.URL == "" {
		reason := result.ErrorMessage
		if reason == "" {
			reason = "unknown error"
		}
		return "", &UpstreamError{Reason: reason}
	}
	return result.Data.URL, nil
}

// SplitCaption splits text into a top and bottom caption at the middle word,
// keeping at most six words per line and marking truncation with "...".
func SplitCaption(text string) (string, string) {
	words := strings.Fields(text)
	mid := len(words) / 2
	return captionLine(words[:mid]), captionLine(words[mid:])
}

func captionLine(words []string) string {
	if len(words) > maxCaptionWords {
		return strings.Join(words[:maxCaptionWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
