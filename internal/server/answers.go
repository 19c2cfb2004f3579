package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/submission"
	"github.com/EberSantana/flowedu-sub004/internal/triage"
)

type submitResponse struct {
	Answer    answerDTO     `json:"answer"`
	QueueItem *queueItemDTO `json:"queueItem,omitempty"`
	Awarded   bool          `json:"awarded"`
}

func toSubmitResponse(r *submission.Result) submitResponse {
	return submitResponse{
		Answer:    toAnswerDTO(r.Answer),
		QueueItem: toQueueItemDTO(r.QueueItem),
		Awarded:   r.Awarded,
	}
}

func (s *Server) submitAnswer(c *gin.Context) {
	var in submission.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		s.bindError(c, err)
		return
	}
	res, err := s.deps.Submissions.Submit(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	created(c, toSubmitResponse(res))
}

type batchRequest struct {
	Answers []submission.Input `json:"answers" binding:"required,min=1,max=100,dive"`
}

type batchItem struct {
	Result *submitResponse `json:"result,omitempty"`
	Error  *Response       `json:"error,omitempty"`
}

func (s *Server) submitBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}

	results := s.deps.Submissions.SubmitBatch(c.Request.Context(), req.Answers)
	out := make([]batchItem, len(results))
	for i, r := range results {
		if r.Err != nil {
			code, msg := s.classify(c, r.Err)
			out[i].Error = &Response{Code: code, Message: msg}
			continue
		}
		resp := toSubmitResponse(r.Result)
		out[i].Result = &resp
	}
	success(c, out)
}

type analyzeRequest struct {
	Question      string `json:"question" binding:"required"`
	StudentAnswer string `json:"studentAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Context       string `json:"context"`
}

func (s *Server) analyzeAnswer(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}
	if submission.AnswerTooLong(req.StudentAnswer) {
		s.writeError(c, apperr.Invalid("studentAnswer", "longer than %d characters", submission.MaxAnswerLength))
		return
	}
	j := s.deps.Grader.AnalyzeAnswer(c.Request.Context(), grading.Input{
		Question:      req.Question,
		StudentAnswer: req.StudentAnswer,
		CorrectAnswer: req.CorrectAnswer,
		Context:       req.Context,
	})
	success(c, j)
}

type pendingQuery struct {
	ExerciseIDs []string `form:"exerciseId"`
	Limit       int      `form:"limit" binding:"gte=0,lte=500"`
}

func (s *Server) pendingScope(c *gin.Context) (triage.Scope, bool) {
	var q pendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return triage.Scope{}, false
	}
	return triage.Scope{
		TeacherID:   c.Param("teacherId"),
		ExerciseIDs: q.ExerciseIDs,
		Limit:       q.Limit,
	}, true
}

func (s *Server) listPending(c *gin.Context) {
	scope, ok := s.pendingScope(c)
	if !ok {
		return
	}
	answers, err := s.deps.Triage.ListPending(c.Request.Context(), scope)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toAnswerDTOs(answers))
}

func (s *Server) pendingStats(c *gin.Context) {
	scope, ok := s.pendingScope(c)
	if !ok {
		return
	}
	stats, err := s.deps.Triage.Stats(c.Request.Context(), scope)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, stats)
}

type finalizeRequest struct {
	FinalScore      *int    `json:"finalScore" binding:"required"`
	TeacherFeedback *string `json:"teacherFeedback"`
}

func (s *Server) finalizeReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}
	a, err := s.deps.Triage.Finalize(c.Request.Context(), id, *req.FinalScore, req.TeacherFeedback)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toAnswerDTO(a))
}

func (s *Server) listExercises(c *gin.Context) {
	exercises, err := s.deps.Exercises.List(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toExerciseDTOs(exercises))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}
