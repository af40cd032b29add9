package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/paperboy/internal/auth"
	"horse.fit/paperboy/internal/cluster"
	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/store"
	"horse.fit/paperboy/internal/story"
	payloadschema "horse.fit/paperboy/schema"
)

const maxPageSize = 200

func (s *Server) handleSearch(c echo.Context) error {
	q := index.Query{
		Text: strings.TrimSpace(c.QueryParam("q")),
	}
	if tags := strings.TrimSpace(c.QueryParam("tags")); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Tags = append(q.Tags, strings.ToLower(t))
			}
		}
	}
	if domain := strings.TrimSpace(c.QueryParam("domain")); domain != "" {
		q.DomainPrefix = story.ReverseDomain(strings.ToLower(domain))
	}

	var err error
	if q.From, err = parseTimeParam(c.QueryParam("from")); err != nil {
		return badRequest(c, "from must be RFC3339")
	}
	if q.To, err = parseTimeParam(c.QueryParam("to")); err != nil {
		return badRequest(c, "to must be RFC3339")
	}
	if q.Offset, err = parseIntParam(c.QueryParam("offset"), 0); err != nil || q.Offset < 0 {
		return badRequest(c, "offset must be a non-negative integer")
	}
	if q.Limit, err = parseIntParam(c.QueryParam("limit"), 0); err != nil || q.Limit < 0 {
		return badRequest(c, "limit must be a non-negative integer")
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	docs := s.engine.Search(q)
	return success(c, map[string]any{
		"items": docs,
		"count": len(docs),
	})
}

func (s *Server) handleStory(c echo.Context) error {
	id := story.ID(c.Param("story_id"))
	st, err := s.engine.StoryByID(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Story not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("story", string(id)).Msg("story lookup failed")
		return internalError(c, "Failed to load story")
	}
	return success(c, st)
}

func (s *Server) handleTags(c echo.Context) error {
	return success(c, map[string]any{
		"tags": s.engine.Tags(),
	})
}

func (s *Server) handleTagSpellings(c echo.Context) error {
	tag := strings.ToLower(strings.TrimSpace(c.Param("tag")))
	spellings := s.engine.TagSpellings(tag)
	if spellings == nil {
		return notFound(c, "Unknown tag")
	}
	return success(c, map[string]any{
		"tag":       tag,
		"spellings": spellings,
	})
}

func (s *Server) handleTagPopularity(c echo.Context) error {
	tag := strings.ToLower(strings.TrimSpace(c.Param("tag")))
	from, err := parseTimeParam(c.QueryParam("from"))
	if err != nil {
		return badRequest(c, "from must be RFC3339")
	}
	to, err := parseTimeParam(c.QueryParam("to"))
	if err != nil {
		return badRequest(c, "to must be RFC3339")
	}
	return success(c, map[string]any{
		"tag":     tag,
		"buckets": s.engine.TagPopularity(tag, from, to),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.engine.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, map[string]any{
		"shards": stats,
	})
}

// handleIngest accepts a validated scrape batch and feeds it through the
// engine, reporting per-record outcomes.
func (s *Server) handleIngest(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 16<<20))
	if err != nil {
		return badRequest(c, "failed to read request body")
	}
	batch, err := payloadschema.ValidateScrapeBatchPayload(payload)
	if err != nil {
		return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
	}

	result, err := s.engine.IngestBatch(c.Request().Context(), batch.Source, batch.InputRecords())
	if err != nil {
		s.logger.Error().Err(err).Str("source", batch.Source).Msg("batch ingest failed")
		return internalError(c, "Ingestion failed")
	}
	return success(c, result)
}

func (s *Server) handleBackup(c echo.Context) error {
	shard, ok := story.ShardFromString(c.Param("shard"))
	if !ok {
		return badRequest(c, "shard must look like 2024-03")
	}
	var buf bytes.Buffer
	if _, err := s.engine.Backup(shard, &buf); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Shard not found")
		}
		s.logger.Error().Err(err).Stringer("shard", shard).Msg("backup failed")
		return internalError(c, "Backup failed")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+shard.String()+`.jsonl"`)
	return c.Blob(http.StatusOK, "application/x-ndjson", buf.Bytes())
}

func (s *Server) handleReplay(c echo.Context) error {
	shard, ok := story.ShardFromString(c.Param("shard"))
	if !ok {
		return badRequest(c, "shard must look like 2024-03")
	}
	force := c.QueryParam("force") == "true"

	n, err := s.engine.Replay(c.Request().Context(), shard, force)
	if errors.Is(err, cluster.ErrShardNotEmpty) {
		return fail(c, http.StatusConflict, "shard has stories; pass force=true to overwrite", nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Shard not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Stringer("shard", shard).Msg("replay failed")
		return internalError(c, "Replay failed")
	}
	return success(c, map[string]any{
		"shard":    shard.String(),
		"replayed": n,
	})
}

// requireAdmin guards the mutating endpoints with the configured bearer
// token. With no hash configured the endpoints are disabled outright.
func (s *Server) requireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.AdminTokenHash == "" {
				return fail(c, http.StatusForbidden, "Admin endpoints are disabled", nil)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !auth.VerifyToken(token, s.opts.AdminTokenHash) {
				return fail(c, http.StatusUnauthorized, "Authentication required", nil)
			}
			return next(c)
		}
	}
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseIntParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
