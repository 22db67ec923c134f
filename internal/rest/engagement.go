package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/Guyuepp/engagement-sync/internal/rest/middleware"
	"github.com/Guyuepp/engagement-sync/internal/rest/request"
	"github.com/Guyuepp/engagement-sync/internal/rest/response"
)

// subjectKinds 四类内容注册同一套路由
var subjectKinds = []domain.SubjectKind{
	domain.KindJobPosting,
	domain.KindResume,
	domain.KindLecture,
	domain.KindTransferListing,
}

// EngagementHandler represent the httphandler for engagement actions
type EngagementHandler struct {
	Service domain.EngagementUsecase
}

func NewEngagementHandler(svc domain.EngagementUsecase) *EngagementHandler {
	return &EngagementHandler{
		Service: svc,
	}
}

// RegisterRoutes wires the same endpoint shape for every subject kind, plus
// the bulk snapshot endpoint used when bootstrapping list pages.
func (h *EngagementHandler) RegisterRoutes(r gin.IRouter, auth, optionalAuth gin.HandlerFunc) {
	api := r.Group("/api")
	for _, kind := range subjectKinds {
		g := api.Group("/" + kind.Slug())
		g.POST("/:id/like", auth, h.like(kind))
		g.DELETE("/:id/like", auth, h.unlike(kind))
		g.POST("/:id/view", optionalAuth, h.recordView(kind))
	}
	api.POST("/engagements/snapshot", optionalAuth, h.Snapshot)
}

// like creates the like relation for the authenticated viewer
func (h *EngagementHandler) like(kind domain.SubjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := domain.SubjectRef{Kind: kind, ID: c.Param("id")}

		viewer := middleware.ViewerFromContext(c)
		if viewer.Anonymous() {
			c.JSON(http.StatusUnauthorized, response.Error("authentication required"))
			return
		}

		if err := h.Service.Like(c.Request.Context(), viewer, ref); err != nil {
			h.writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, response.Success(gin.H{"isLiked": true}))
	}
}

// unlike removes the like relation for the authenticated viewer
func (h *EngagementHandler) unlike(kind domain.SubjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := domain.SubjectRef{Kind: kind, ID: c.Param("id")}

		viewer := middleware.ViewerFromContext(c)
		if viewer.Anonymous() {
			c.JSON(http.StatusUnauthorized, response.Error("authentication required"))
			return
		}

		if err := h.Service.Unlike(c.Request.Context(), viewer, ref); err != nil {
			h.writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, response.Success(gin.H{"isLiked": false}))
	}
}

// recordView increments the subject's view counter. Anonymous views count.
func (h *EngagementHandler) recordView(kind domain.SubjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := domain.SubjectRef{Kind: kind, ID: c.Param("id")}

		count, err := h.Service.RecordView(c.Request.Context(), ref)
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, response.Success(gin.H{"viewCount": count}))
	}
}

// Snapshot returns the engagement fields of up to 100 subjects at once.
func (h *EngagementHandler) Snapshot(c *gin.Context) {
	var req request.Snapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	refs, err := req.ToDomain()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	viewer := middleware.ViewerFromContext(c)
	snaps, err := h.Service.SnapshotMany(c.Request.Context(), viewer, refs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res := make([]response.Snapshot, len(snaps))
	for i := range snaps {
		res[i] = response.NewSnapshotFromDomain(snaps[i])
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"snapshots": res}))
}

// writeError maps usecase errors onto the wire taxonomy. The duplicate cases
// reuse 400 with a recognizable message, which clients match on.
func (h *EngagementHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyLiked), errors.Is(err, domain.ErrNotLiked):
		c.JSON(http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, domain.ErrNotVerified):
		c.JSON(http.StatusForbidden, response.Error(err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(err.Error()))
	case errors.Is(err, domain.ErrBadParamInput):
		c.JSON(http.StatusBadRequest, response.Error(err.Error()))
	default:
		logrus.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(domain.ErrInternalServerError.Error()))
	}
}
