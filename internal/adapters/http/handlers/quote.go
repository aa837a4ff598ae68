package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// QuoteHandler exposes the quote store over HTTP. It renders store outputs
// and holds no state of its own; filter state arrives with every request.
type QuoteHandler struct {
	store *app.QuoteStore
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(store *app.QuoteStore) *QuoteHandler {
	return &QuoteHandler{store: store}
}

// CreateQuote handles POST /api/v1/quotes.
//
// @Summary Add a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote body dto.CreateQuoteRequest true "Quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	q, err := h.store.Add(c.Request.Context(), req.Text, req.Author, req.Source)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Location", c.FullPath()+"/"+strconv.FormatInt(q.ID, 10))
	c.JSON(http.StatusCreated, dto.NewQuoteResponse(q))
}

// ListQuotes handles GET /api/v1/quotes?q=&author=.
// Returns the visible quotes in collection order (newest first) together with
// the author list and statistics line.
//
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Param q query string false "Case-insensitive search over text, author and source"
// @Param author query string false "Exact author"
// @Success 200 {object} dto.QuoteListResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var query dto.QuoteFilterQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		respondBindError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteListResponse(h.store.Visible(query.Filter())))
}

// GetQuote handles GET /api/v1/quotes/:id.
//
// @Summary Get a quote by ID
// @Tags quotes
// @Produce json
// @Param id path int true "Quote ID"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{id} [get]
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	q, found := h.store.Find(id)
	if !found {
		dto.HandleError(c, domain.NewNotFoundError(id))
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// ExportQuote handles GET /api/v1/quotes/:id/export.
// Responds with the plain-text line a user would paste elsewhere.
//
// @Summary Export a quote for copying
// @Tags quotes
// @Produce plain
// @Param id path int true "Quote ID"
// @Success 200 {string} string
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{id}/export [get]
func (h *QuoteHandler) ExportQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	text, found := h.store.ExportForCopy(id)
	if !found {
		dto.HandleError(c, domain.NewNotFoundError(id))
		return
	}

	c.String(http.StatusOK, text)
}

// DeleteQuote handles DELETE /api/v1/quotes/:id.
// Confirmation is the client's concern; by the time this is called the user
// has already agreed.
//
// @Summary Delete a quote
// @Tags quotes
// @Param id path int true "Quote ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{id} [delete]
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	deleted, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if !deleted {
		dto.HandleError(c, domain.NewNotFoundError(id))
		return
	}

	c.Status(http.StatusNoContent)
}

// ListAuthors handles GET /api/v1/authors.
//
// @Summary List distinct authors
// @Tags quotes
// @Produce json
// @Success 200 {object} dto.AuthorsResponse
// @Router /api/v1/authors [get]
func (h *QuoteHandler) ListAuthors(c *gin.Context) {
	c.JSON(http.StatusOK, dto.AuthorsResponse{Authors: h.store.ListAuthors()})
}

// GetStats handles GET /api/v1/stats?q=&author=.
//
// @Summary Statistics line for a filter
// @Tags quotes
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Router /api/v1/stats [get]
func (h *QuoteHandler) GetStats(c *gin.Context) {
	var query dto.QuoteFilterQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		respondBindError(c, err)
		return
	}

	v := h.store.Visible(query.Filter())

	c.JSON(http.StatusOK, dto.StatsResponse{
		Stats:   v.Stats,
		Visible: len(v.Quotes),
		Total:   v.Total,
	})
}

// RegisterQuoteRoutes registers quote routes on the given router group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.POST("", h.CreateQuote)
	quotes.GET("", h.ListQuotes)
	quotes.GET("/:id", h.GetQuote)
	quotes.GET("/:id/export", h.ExportQuote)
	quotes.DELETE("/:id", h.DeleteQuote)

	rg.GET("/authors", h.ListAuthors)
	rg.GET("/stats", h.GetStats)
}

// quoteID parses the :id path parameter, writing a 400 when it is not a
// positive integer.
func quoteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		dto.HandleError(c, domain.NewValidationErrorWithValue("id", "must be a positive integer", c.Param("id")))
		return 0, false
	}

	return id, true
}

func respondBindError(c *gin.Context, err error) {
	if dto.IsValidationError(err) {
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
		return
	}

	if errors.Is(err, dto.ErrBinding) {
		dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "malformed request")
		return
	}

	dto.HandleError(c, err)
}
