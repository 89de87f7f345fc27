package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s == nil || s.lbStore == nil {
		respondError(c, http.StatusInternalServerError, errors.New("leaderboard store not configured"))
		return
	}

	dataset := strings.TrimSpace(c.Query("dataset"))
	if dataset == "" {
		respondError(c, http.StatusBadRequest, errors.New("dataset is required"))
		return
	}
	mode := strings.TrimSpace(c.Query("mode"))
	if mode == "" {
		respondError(c, http.StatusBadRequest, errors.New("mode is required"))
		return
	}
	domain := strings.TrimSpace(c.Query("domain"))

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := s.lbStore.GetLeaderboard(c.Request.Context(), dataset, domain, mode, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleGetModelHistory(c *gin.Context) {
	if s == nil || s.lbStore == nil {
		respondError(c, http.StatusInternalServerError, errors.New("leaderboard store not configured"))
		return
	}

	model := strings.TrimSpace(c.Query("model"))
	dataset := strings.TrimSpace(c.Query("dataset"))
	if model == "" || dataset == "" {
		respondError(c, http.StatusBadRequest, errors.New("model and dataset are required"))
		return
	}

	entries, err := s.lbStore.GetModelHistory(c.Request.Context(), model, dataset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
