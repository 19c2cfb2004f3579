package server

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
	"github.com/EberSantana/flowedu-sub004/internal/session"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
)

type queueQuery struct {
	ExerciseID  string `form:"exerciseId"`
	Bucket      string `form:"bucket"`
	MinPriority int    `form:"minPriority" binding:"gte=0,lte=100"`
	Limit       int    `form:"limit" binding:"gte=0,lte=500"`
}

func (s *Server) reviewQueue(c *gin.Context) {
	var q queueQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return
	}
	bucket := spacedrep.Bucket(q.Bucket)
	if b, ok := spacedrep.ParseBucket(q.Bucket); ok {
		bucket = b
	}
	entries, err := s.deps.Scheduler.Queue(c.Request.Context(), c.Param("studentId"), spacedrep.Filters{
		ExerciseID:  q.ExerciseID,
		MinPriority: q.MinPriority,
		Bucket:      bucket,
	}, q.Limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toQueueEntryDTOs(entries))
}

type openQuery struct {
	StudentID string `form:"studentId"`
}

func (s *Server) openReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q openQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return
	}
	review, err := s.deps.Scheduler.Open(c.Request.Context(), id, q.StudentID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.sessions.Add(review)
	success(c, toReviewSessionDTO(review, s.now()))
}

// reviewRequest records a review. With a sessionId the open session is
// closed and supplies the time spent and notes the request leaves out.
type reviewRequest struct {
	SessionID        string  `json:"sessionId"`
	WasCorrect       *bool   `json:"wasCorrect" binding:"required"`
	TimeSpentSeconds *int    `json:"timeSpentSeconds" binding:"omitempty,gte=0"`
	SelfRating       string  `json:"selfRating" binding:"required"`
	Notes            *string `json:"notes"`
}

func (s *Server) recordReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}
	in := spacedrep.RecordInput{
		QueueItemID: id,
		WasCorrect:  *req.WasCorrect,
		SelfRating:  req.SelfRating,
		Notes:       req.Notes,
	}
	if req.TimeSpentSeconds != nil {
		in.TimeSpentSeconds = *req.TimeSpentSeconds
	}

	if req.SessionID != "" {
		review, err := s.lookupSession(req.SessionID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if review.QueueItemID != id {
			s.writeError(c, apperr.Invalid("sessionId", "belongs to queue item %d", review.QueueItemID))
			return
		}
		outcome, err := review.Close(in.WasCorrect, in.SelfRating, s.now())
		if err != nil {
			s.writeError(c, sessionError(err))
			return
		}
		s.sessions.Remove(review.ID)
		if req.TimeSpentSeconds == nil {
			in.TimeSpentSeconds = outcome.TimeSpentSeconds
		}
		if in.Notes == nil {
			in.Notes = outcome.Notes
		}
	}

	res, err := s.deps.Scheduler.RecordReview(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, res)
}

func (s *Server) lookupSession(id string) (*session.Review, error) {
	review, ok := s.sessions.Get(id)
	if !ok {
		return nil, &apperr.NotFoundError{Kind: "review session", ID: id}
	}
	return review, nil
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrClosed) {
		return apperr.Invalid("sessionId", "review session already closed")
	}
	return err
}

func (s *Server) getSession(c *gin.Context) {
	review, err := s.lookupSession(c.Param("sessionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toReviewSessionDTO(review, s.now()))
}

type draftRequest struct {
	DraftAnswer *string `json:"draftAnswer"`
	Notes       *string `json:"notes"`
}

func (s *Server) saveDraft(c *gin.Context) {
	review, err := s.lookupSession(c.Param("sessionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.bindError(c, err)
		return
	}
	if req.DraftAnswer != nil {
		if err := review.SetDraftAnswer(*req.DraftAnswer); err != nil {
			s.writeError(c, sessionError(err))
			return
		}
	}
	if req.Notes != nil {
		if err := review.SetNotes(*req.Notes); err != nil {
			s.writeError(c, sessionError(err))
			return
		}
	}
	success(c, toReviewSessionDTO(review, s.now()))
}

func (s *Server) pauseSession(c *gin.Context) {
	s.sessionClock(c, (*session.Review).Pause)
}

func (s *Server) resumeSession(c *gin.Context) {
	s.sessionClock(c, (*session.Review).Resume)
}

func (s *Server) sessionClock(c *gin.Context, step func(*session.Review, time.Time) error) {
	review, err := s.lookupSession(c.Param("sessionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	now := s.now()
	if err := step(review, now); err != nil {
		s.writeError(c, sessionError(err))
		return
	}
	success(c, toReviewSessionDTO(review, now))
}

type forecastQuery struct {
	Days int `form:"days"`
}

func (s *Server) forecast(c *gin.Context) {
	q := forecastQuery{Days: 7}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return
	}
	days, err := s.deps.Scheduler.Forecast(c.Request.Context(), c.Param("studentId"), q.Days)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, days)
}

type historyQuery struct {
	Limit int `form:"limit"`
}

func (s *Server) reviewHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.bindError(c, err)
		return
	}
	entries, err := s.deps.History.List(c.Request.Context(), c.Param("studentId"), q.Limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, toHistoryDTOs(entries))
}

func (s *Server) historyStats(c *gin.Context) {
	stats, err := s.deps.History.Analytics(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	success(c, stats)
}

func (s *Server) wallet(c *gin.Context) {
	ctx := c.Request.Context()
	studentID := c.Param("studentId")

	balance, err := s.deps.Wallet.Balance(ctx, studentID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ledger, err := s.deps.Wallet.Ledger(ctx, studentID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := walletDTO{StudentID: studentID, Balance: balance, Ledger: make([]awardDTO, len(ledger))}
	for i, a := range ledger {
		out.Ledger[i] = awardDTO{
			AnswerID:  a.AnswerID,
			Source:    a.Source,
			Amount:    a.Amount,
			Reason:    a.Reason,
			CreatedAt: a.CreatedAt,
			Forwarded: a.ForwardedAt != nil,
		}
	}
	success(c, out)
}
