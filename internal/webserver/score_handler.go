package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/apperror"
	"github.com/mdouchement/playerdata/internal/database"
	"github.com/mdouchement/playerdata/internal/validator"
	"github.com/mdouchement/playerdata/internal/webserver/serializer"
	"github.com/mdouchement/playerdata/internal/webserver/weberror"
)

type score struct {
	logger  logger.Logger
	db      database.Client
	timeout time.Duration
}

func (h *score) Create(c echo.Context) error {
	c.Set("handler_method", "score.Create")

	var payload struct {
		PlayerName string `json:"player_name"`
		Score      *int   `json:"score"`
	}
	if err := c.Bind(&payload); err != nil {
		return weberror.New(http.StatusBadRequest, "malformed payload")
	}

	if err := validator.Check("player_name", payload.PlayerName); err != nil {
		return weberror.FromError(err)
	}
	if payload.Score == nil {
		return weberror.FromError(apperror.InvalidInput("", "score is required"))
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	score, err := h.db.AddScore(ctx, payload.PlayerName, *payload.Score)
	if err != nil {
		return weberror.FromError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Player Score Uploaded",
		"id":      score.ID,
	})
}

func (h *score) Show(c echo.Context) error {
	c.Set("handler_method", "score.Show")

	name := c.Param("name")
	if err := validator.Check("player_name", name); err != nil {
		return weberror.FromError(err)
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	score, err := h.db.FindScore(ctx, name)
	if err != nil {
		return h.error(err)
	}

	return c.JSON(http.StatusOK, serializer.Score(score))
}

func (h *score) List(c echo.Context) error {
	c.Set("handler_method", "score.List")

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	scores, err := h.db.ListScores(ctx)
	if err != nil {
		return weberror.FromError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"all_scores": serializer.Scores(scores),
	})
}

func (h *score) Update(c echo.Context) error {
	c.Set("handler_method", "score.Update")

	name := c.Param("name")
	if err := validator.Check("player_name", name); err != nil {
		return weberror.FromError(err)
	}

	value, err := strconv.Atoi(c.QueryParam("new_score"))
	if err != nil {
		return weberror.FromError(apperror.InvalidInput("", "new_score must be an integer"))
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	score, err := h.db.UpdateScore(ctx, name, value)
	if err != nil {
		return h.error(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Player score updated",
		"player_name": score.PlayerName,
		"score":       score.Score,
	})
}

func (h *score) Delete(c echo.Context) error {
	c.Set("handler_method", "score.Delete")

	name := c.Param("name")
	if err := validator.Check("player_name", name); err != nil {
		return weberror.FromError(err)
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	if err := h.db.DeleteScore(ctx, name); err != nil {
		return h.error(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Player score deleted",
	})
}

func (h *score) error(err error) error {
	if apperror.IsNotFound(err) {
		return &weberror.Error{
			Code:    http.StatusNotFound,
			Message: "Player not found",
			Err:     err,
		}
	}
	return weberror.FromError(err)
}
