package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkeye/callbridge/internal/adapters/store"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const startedCallsKey = "calls"

type handlers struct {
	store   CallStore
	broker  CallBroker
	limiter *CallRateLimiter
}

type createProfileRequest struct {
	UserID      domain.UserID `json:"userId"`
	ProfileName string        `json:"profileName"`
}

type startCallRequest struct {
	UserID         domain.UserID         `json:"userId"`
	VoiceProfileID domain.VoiceProfileID `json:"voiceProfileId"`
}

type callResponse struct {
	CallSessionID domain.CallID `json:"callSessionId"`
	State         string        `json:"state"`
}

func (h *handlers) createVoiceProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	vp, err := h.store.CreateVoiceProfile(c.Request.Context(), req.UserID, req.ProfileName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vp)
}

func (h *handlers) startCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 || req.VoiceProfileID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and voiceProfileId are required"})
		return
	}
	if !h.limiter.Allow(req.UserID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many calls"})
		return
	}

	callID, err := h.store.CreateSession(c.Request.Context(), req.UserID, req.VoiceProfileID)
	if err != nil {
		writeError(c, err)
		return
	}
	rememberCall(c, callID)
	log.Info().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).
		Stringer("call_id", callID).Stringer("user_id", req.UserID).Msg("call started")
	c.JSON(http.StatusOK, callResponse{CallSessionID: callID, State: domain.CallPending.String()})
}

func (h *handlers) getCall(c *gin.Context) {
	callID, ok := callIDParam(c)
	if !ok {
		return
	}
	cs, err := h.store.GetSession(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return
	}
	state := h.broker.State(callID)
	if cs.Ended() {
		state = domain.CallEnded
	} else if state == domain.CallEnded {
		// Started but no client socket yet.
		state = domain.CallPending
	}
	c.JSON(http.StatusOK, gin.H{
		"callSessionId":  cs.ID,
		"userId":         cs.UserID,
		"voiceProfileId": cs.VoiceProfileID,
		"startedAt":      cs.StartedAt,
		"endedAt":        cs.EndedAt,
		"state":          state.String(),
	})
}

// hangup ends a call this browser started. Repeating it is harmless.
func (h *handlers) hangup(c *gin.Context) {
	callID, ok := callIDParam(c)
	if !ok {
		return
	}
	if !startedHere(c, callID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "call was not started by this session"})
		return
	}
	if err := h.broker.ForceEnd(c.Request.Context(), callID); err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Stringer("call_id", callID).Msg("call hung up")
	c.JSON(http.StatusOK, callResponse{CallSessionID: callID, State: domain.CallEnded.String()})
}

func (h *handlers) listMessages(c *gin.Context) {
	callID, ok := callIDParam(c)
	if !ok {
		return
	}
	msgs, err := h.store.ListMessages(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) listParticipants(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	names, err := h.store.ListParticipants(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *handlers) listParticipantMessages(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	msgs, err := h.store.ListMessagesByParticipant(c.Request.Context(), userID, c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.broker.Stats())
}

func callIDParam(c *gin.Context) (domain.CallID, bool) {
	id, err := domain.ParseCallID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return 0, false
	}
	return id, true
}

func userIDParam(c *gin.Context) (domain.UserID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return domain.UserID(id), true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, domain.ErrUnknownCall):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrProfileNameEmpty),
		errors.Is(err, domain.ErrProfileNameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Started call ids live in the cookie session as a comma separated list.
func rememberCall(c *gin.Context, callID domain.CallID) {
	s := sessions.Default(c)
	ids, _ := s.Get(startedCallsKey).(string)
	if ids == "" {
		ids = callID.String()
	} else {
		ids += "," + callID.String()
	}
	s.Set(startedCallsKey, ids)
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}
}

func startedHere(c *gin.Context, callID domain.CallID) bool {
	ids, _ := sessions.Default(c).Get(startedCallsKey).(string)
	for _, id := range strings.Split(ids, ",") {
		if id == callID.String() {
			return true
		}
	}
	return false
}
