package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"teamquiz-service/internal/app"
	"teamquiz-service/internal/domain"
)

type handler struct {
	service *app.ScoringService
}

// answerView exposes the tri-state correctness as a nullable is_correct.
type answerView struct {
	domain.Answer
	IsCorrect *bool `json:"is_correct"`
}

func viewOf(a domain.Answer) answerView {
	return answerView{Answer: a, IsCorrect: a.Correctness.Bool()}
}

func viewsOf(answers []domain.Answer) []answerView {
	out := make([]answerView, 0, len(answers))
	for _, a := range answers {
		out = append(out, viewOf(a))
	}
	return out
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func questionNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		badRequest(c, "invalid question number")
		return 0, false
	}
	return n, true
}

// bindOptional decodes an optional JSON body; an empty body is not an error.
func bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *handler) listTeams(c *gin.Context) {
	teams, err := h.service.Teams(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

type createRoomRequest struct {
	RoomCode          string `json:"room_code"`
	TotalQuestions    int    `json:"total_questions" binding:"gte=0"`
	AllowResubmission bool   `json:"allow_resubmission"`
	ScoreTable        []int  `json:"score_table"`
}

func (h *handler) createRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindOptional(c, &req) {
		return
	}
	room, err := h.service.CreateRoom(c.Request.Context(), tokenFrom(c), app.CreateRoomRequest{
		Code:              req.RoomCode,
		TotalQuestions:    req.TotalQuestions,
		AllowResubmission: req.AllowResubmission,
		ScoreTable:        req.ScoreTable,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

type roomPatchRequest struct {
	IsActive          *bool `json:"is_active"`
	AllowResubmission *bool `json:"allow_resubmission"`
	ScoreTable        []int `json:"score_table"`
}

func (h *handler) updateRoom(c *gin.Context) {
	var req roomPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	room, err := h.service.UpdateRoom(c.Request.Context(), tokenFrom(c), c.Param("room"), app.RoomPatch{
		IsActive:          req.IsActive,
		AllowResubmission: req.AllowResubmission,
		ScoreTable:        req.ScoreTable,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handler) deleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(c.Request.Context(), tokenFrom(c), c.Param("room")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type joinRequest struct {
	Username string `json:"username" binding:"required"`
	TeamID   int64  `json:"team_id" binding:"required"`
}

func (h *handler) joinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and team_id are required")
		return
	}
	user, err := h.service.JoinRoom(c.Request.Context(), c.Param("room"), req.Username, req.TeamID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handler) scoreboard(c *gin.Context) {
	board, err := h.service.Scoreboard(c.Request.Context(), c.Param("room"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

type submitRequest struct {
	QuestionNumber *int   `json:"question_number" binding:"required"`
	AnswerText     string `json:"answer_text"`
	SelectedChoice *int   `json:"selected_choice"`
}

func (h *handler) submitAnswer(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "question_number is required")
		return
	}
	answer, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("room"), tokenFrom(c), app.SubmitRequest{
		QuestionNumber: *req.QuestionNumber,
		AnswerText:     req.AnswerText,
		SelectedChoice: req.SelectedChoice,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(answer))
}

// queryQuestionNumber reads the optional question_number filter.
func queryQuestionNumber(c *gin.Context) (*int, bool) {
	raw := c.Query("question_number")
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid question_number")
		return nil, false
	}
	return &n, true
}

func (h *handler) listAnswers(c *gin.Context) {
	number, ok := queryQuestionNumber(c)
	if !ok {
		return
	}
	answers, err := h.service.ListAnswers(c.Request.Context(), tokenFrom(c), c.Param("room"), number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(answers))
}

func (h *handler) myAnswers(c *gin.Context) {
	number, ok := queryQuestionNumber(c)
	if !ok {
		return
	}
	answers, err := h.service.MyAnswers(c.Request.Context(), c.Param("room"), tokenFrom(c), number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewsOf(answers))
}

type correctnessRequest struct {
	IsCorrect *bool `json:"is_correct" binding:"required"`
}

func (h *handler) setCorrectness(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req correctnessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "is_correct is required")
		return
	}
	answer, err := h.service.SetCorrectness(c.Request.Context(), tokenFrom(c), c.Param("room"), id, *req.IsCorrect)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(answer))
}

type manualEditRequest struct {
	Score     *int   `json:"score"`
	ElapsedMS *int64 `json:"elapsed_time_ms"`
}

func (h *handler) manualEdit(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req manualEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	answer, err := h.service.ManualEdit(c.Request.Context(), tokenFrom(c), c.Param("room"), id, app.ManualEdit{
		Score:     req.Score,
		ElapsedMS: req.ElapsedMS,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(answer))
}

func (h *handler) deleteAnswer(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteAnswer(c.Request.Context(), tokenFrom(c), c.Param("room"), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) getQuestion(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	q, err := h.service.GetQuestion(c.Request.Context(), c.Param("room"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// questionPatchRequest keeps raw fields so that an absent key leaves the
// setting alone while an explicit null clears it.
type questionPatchRequest struct {
	AnswerType        *string         `json:"answer_type"`
	Choices           json.RawMessage `json:"choices"`
	CorrectAnswer     json.RawMessage `json:"correct_answer"`
	AllowResubmission json.RawMessage `json:"allow_resubmission"`
}

var jsonNull = []byte("null")

func (r questionPatchRequest) toPatch() (app.QuestionPatch, error) {
	var patch app.QuestionPatch
	if r.AnswerType != nil {
		t := domain.AnswerType(*r.AnswerType)
		patch.AnswerType = &t
	}
	if len(r.Choices) > 0 {
		patch.SetChoices = true
		if !bytes.Equal(r.Choices, jsonNull) {
			if err := json.Unmarshal(r.Choices, &patch.Choices); err != nil {
				return patch, err
			}
		}
	}
	if len(r.CorrectAnswer) > 0 {
		patch.SetExpectedAnswer = true
		if !bytes.Equal(r.CorrectAnswer, jsonNull) {
			var s string
			if err := json.Unmarshal(r.CorrectAnswer, &s); err != nil {
				var n json.Number
				if err := json.Unmarshal(r.CorrectAnswer, &n); err != nil {
					return patch, err
				}
				s = n.String()
			}
			patch.ExpectedAnswer = &s
		}
	}
	if len(r.AllowResubmission) > 0 {
		patch.SetAllowResubmission = true
		if !bytes.Equal(r.AllowResubmission, jsonNull) {
			var b bool
			if err := json.Unmarshal(r.AllowResubmission, &b); err != nil {
				return patch, err
			}
			patch.AllowResubmission = &b
		}
	}
	return patch, nil
}

func (h *handler) updateQuestion(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	var req questionPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	q, err := h.service.UpdateQuestion(c.Request.Context(), tokenFrom(c), c.Param("room"), n, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type startRequest struct {
	StartTime *time.Time `json:"start_time"`
}

func (h *handler) startQuestion(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	var req startRequest
	if !bindOptional(c, &req) {
		return
	}
	q, err := h.service.StartQuestion(c.Request.Context(), tokenFrom(c), c.Param("room"), n, req.StartTime)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type startTeamRequest struct {
	TeamID int64 `json:"team_id" binding:"required"`
}

func (h *handler) startTeam(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	var req startTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "team_id is required")
		return
	}
	start, err := h.service.StartTeam(c.Request.Context(), tokenFrom(c), c.Param("room"), n, req.TeamID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, start)
}

func (h *handler) applyPoints(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	ranked, err := h.service.ReapplyScores(c.Request.Context(), tokenFrom(c), c.Param("room"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question_number": n, "correct_answers_count": ranked})
}

func (h *handler) finalize(c *gin.Context) {
	n, ok := questionNumber(c)
	if !ok {
		return
	}
	result, err := h.service.FinalizeQuestion(c.Request.Context(), tokenFrom(c), c.Param("room"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
