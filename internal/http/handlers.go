package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/goccy/go-json"

	"github.com/screamboard/screamboard/internal/config"
	apierrors "github.com/screamboard/screamboard/internal/errors"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/models"
	"github.com/screamboard/screamboard/internal/scream"
	"github.com/screamboard/screamboard/internal/weeks"
)

// RawID is a caller-supplied user id. The bot sends numeric ids; strings are
// accepted too.
type RawID string

func (r *RawID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RawID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = RawID(n.String())
	return nil
}

type userInput struct {
	UserID RawID `json:"user_id" binding:"required"`
}

type CreateScreamInput struct {
	UserID  RawID  `json:"user_id" binding:"required"`
	Content string `json:"content"`
}

type ReactInput struct {
	UserID   RawID  `json:"user_id" binding:"required"`
	ScreamID uint   `json:"scream_id" binding:"required"`
	Emoji    string `json:"emoji" binding:"required"`
}

type postInput struct {
	ScreamID uint `json:"scream_id" binding:"required"`
}

type createAdminInput struct {
	TargetID RawID `json:"target_id" binding:"required"`
}

type stepInput struct {
	Step int `json:"step" binding:"required,oneof=-1 1"`
}

type resolveInput struct {
	Action string `json:"action" binding:"required"`
}

// ScreamResponse is a post as shown to feed readers and moderators.
type ScreamResponse struct {
	ID        uint      `json:"scream_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	MemeURL   *string   `json:"memeUrl,omitempty"`
}

func toScreamResponse(p *models.Post) ScreamResponse {
	return ScreamResponse{ID: p.ID, Content: p.Content, CreatedAt: p.CreatedAt, MemeURL: p.MemeURL}
}

// Env carries the handler dependencies.
type Env struct {
	Board  *scream.Service
	Hasher *identity.Hasher
	Top    config.TopConfig
}

func (e *Env) hash(c *gin.Context, raw RawID) (string, bool) {
	id, err := e.Hasher.Hash(string(raw))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindBodyWith(dst, binding.JSON); err != nil {
		respondAPIError(c, apierrors.BadRequest("invalid input: "+err.Error()))
		return false
	}
	return true
}

func (e *Env) CreateScream(c *gin.Context) {
	var input CreateScreamInput
	if !bindJSON(c, &input) {
		return
	}
	author, ok := e.hash(c, input.UserID)
	if !ok {
		return
	}

	post, err := e.Board.CreatePost(c.Request.Context(), input.Content, author)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "scream_id": post.ID})
}

func (e *Env) React(c *gin.Context) {
	var input ReactInput
	if !bindJSON(c, &input) {
		return
	}
	reactor, ok := e.hash(c, input.UserID)
	if !ok {
		return
	}

	if err := e.Board.React(c.Request.Context(), input.ScreamID, reactor, input.Emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) NextScream(c *gin.Context) {
	reader, ok := e.hash(c, RawID(c.Param("user_id")))
	if !ok {
		return
	}

	post, err := e.Board.NextPost(c.Request.Context(), reader)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScreamResponse(post))
}

func (e *Env) TopScreams(c *gin.Context) {
	n := e.Top.DefaultN
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondAPIError(c, apierrors.ValidationError("n", "n must be a positive integer"))
			return
		}
		n = min(parsed, e.Top.MaxN)
	}

	// start selects a past UTC day; it defaults to today.
	var (
		top []scream.TopPost
		err error
	)
	if raw := c.Query("start"); raw != "" {
		day, perr := time.Parse(time.DateOnly, raw)
		if perr != nil {
			respondAPIError(c, apierrors.ValidationError("start", "start must be a date like 2006-01-02"))
			return
		}
		start, end := weeks.DayBounds(day)
		top, err = e.Board.TopN(c.Request.Context(), start, end, n)
	} else {
		top, err = e.Board.DailyTop(c.Request.Context(), n)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screams": top})
}

func (e *Env) UserStats(c *gin.Context) {
	id, ok := e.hash(c, RawID(c.Param("user_id")))
	if !ok {
		return
	}

	stats, err := e.Board.UserStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (e *Env) Stress(c *gin.Context) {
	series, err := e.Board.PlatformDailySeries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (e *Env) ListArchivedWeeks(c *gin.Context) {
	archived, err := e.Board.ListArchivedWeeks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weeks": archived})
}

func (e *Env) GetArchivedWeek(c *gin.Context) {
	weekID := c.Param("week_id")
	entries, err := e.Board.GetArchivedWeek(c.Request.Context(), weekID)
	if err != nil {
		respondError(c, err)
		return
	}
	weekID, _ = weeks.CanonicalWeekID(weekID)
	c.JSON(http.StatusOK, gin.H{"week_id": weekID, "screams": entries})
}

// Admin handlers run behind RequireAdmin, which has already resolved the
// caller's identity.

func (e *Env) ArchiveWeek(c *gin.Context) {
	weekID := c.Param("week_id")
	n, err := e.Board.ArchiveWeek(c.Request.Context(), weekID, scream.TriggerAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	weekID, _ = weeks.CanonicalWeekID(weekID)
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "week_id": weekID, "archived": n})
}

func (e *Env) ListUnmoderated(c *gin.Context) {
	posts, err := e.Board.ListUnmoderated(c.Request.Context(), adminIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	screams := make([]ScreamResponse, len(posts))
	for i := range posts {
		screams[i] = toScreamResponse(&posts[i])
	}
	c.JSON(http.StatusOK, gin.H{"screams": screams})
}

func (e *Env) ConfirmScream(c *gin.Context) {
	var input postInput
	if !bindJSON(c, &input) {
		return
	}
	if err := e.Board.ConfirmPost(c.Request.Context(), adminIdentity(c), input.ScreamID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) DeleteScream(c *gin.Context) {
	var input postInput
	if !bindJSON(c, &input) {
		return
	}
	if err := e.Board.DeletePost(c.Request.Context(), adminIdentity(c), input.ScreamID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) CreateAdmin(c *gin.Context) {
	var input createAdminInput
	if !bindJSON(c, &input) {
		return
	}
	target, ok := e.hash(c, input.TargetID)
	if !ok {
		return
	}

	status, err := e.Board.CreateAdmin(c.Request.Context(), adminIdentity(c), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (e *Env) StartReview(c *gin.Context) {
	item, err := e.Board.StartReview(c.Request.Context(), adminIdentity(c))
	e.respondReview(c, item, err)
}

func (e *Env) CurrentReview(c *gin.Context) {
	item, err := e.Board.CurrentReview(c.Request.Context(), adminIdentity(c))
	e.respondReview(c, item, err)
}

func (e *Env) StepReview(c *gin.Context) {
	var input stepInput
	if !bindJSON(c, &input) {
		return
	}
	item, err := e.Board.StepReview(c.Request.Context(), adminIdentity(c), input.Step)
	e.respondReview(c, item, err)
}

func (e *Env) ResolveReview(c *gin.Context) {
	var input resolveInput
	if !bindJSON(c, &input) {
		return
	}
	item, err := e.Board.ResolveReview(c.Request.Context(), adminIdentity(c), input.Action)
	e.respondReview(c, item, err)
}

func (e *Env) respondReview(c *gin.Context, item *scream.ReviewItem, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"status": "done"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"scream":   toScreamResponse(&item.Post),
		"position": item.Position,
		"total":    item.Total,
	})
}

func (e *Env) Health(c *gin.Context) {
	if err := e.Board.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
