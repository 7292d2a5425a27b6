package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"stampchat/composition"
	"stampchat/domain"
	"stampchat/errors"
	"stampchat/projection"
	"stampchat/search"
)

// maxUploadBytes bounds attachment size at the edge.
const maxUploadBytes = 32 << 20

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type groupResponse struct {
	ID          uuid.UUID `json:"id"`
	JoinCode    string    `json:"join_code"`
	DisplayName string    `json:"display_name"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type messageResponse struct {
	ID             uuid.UUID `json:"id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	AttachmentRef  string    `json:"attachment_ref,omitempty"`
	AttachmentKind string    `json:"attachment_kind,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            uint64    `json:"seq"`
	Side           string    `json:"side"`
}

type groupSummaryResponse struct {
	ID          uuid.UUID `json:"id"`
	JoinCode    string    `json:"join_code"`
	DisplayName string    `json:"display_name"`
	MemberCount int       `json:"member_count"`
}

func toSummaryResponse(summary domain.GroupSummary) groupSummaryResponse {
	return groupSummaryResponse{
		ID:          summary.ID,
		JoinCode:    summary.JoinCode,
		DisplayName: summary.DisplayName,
		MemberCount: summary.MemberCount,
	}
}

func toGroupResponse(group domain.Group) groupResponse {
	return groupResponse{
		ID:          group.ID,
		JoinCode:    group.JoinCode,
		DisplayName: group.DisplayName,
		MemberCount: len(group.Members),
		CreatedAt:   group.CreatedAt,
	}
}

func toMessageResponse(msg domain.Message, viewer domain.UserContext) messageResponse {
	return messageResponse{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		Body:           msg.Body,
		AttachmentRef:  msg.AttachmentRef,
		AttachmentKind: string(msg.AttachmentKind),
		Lang:           msg.Lang,
		CreatedAt:      msg.CreatedAt,
		Seq:            msg.Seq,
		Side:           string(projection.Classify(msg, viewer)),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	token, err := s.auth.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
		JoinCode    string `json:"join_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	group, err := s.directory.CreateGroup(userFrom(r), req.DisplayName, req.JoinCode)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toGroupResponse(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.directory.ListGroups(userFrom(r))
	if err != nil {
		s.jsonError(w, err)
		return
	}
	groups := lo.Map(summaries, func(s domain.GroupSummary, _ int) groupSummaryResponse {
		return toSummaryResponse(s)
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JoinCode string `json:"join_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	group, err := s.directory.JoinGroup(r.Context(), userFrom(r), req.JoinCode)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGroupResponse(group))
}

// handleResolveGroup previews a group by join code without joining it.
func (s *Server) handleResolveGroup(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code"})
		return
	}

	group, err := s.directory.ResolveGroup(code)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSummaryResponse(group.Summary()))
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return
	}

	if err := s.directory.LeaveGroup(r.Context(), userFrom(r), groupID); err != nil {
		s.jsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return
	}
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	group, err := s.directory.RenameGroup(userFrom(r), groupID, req.DisplayName)
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGroupResponse(group))
}

// handleHistory returns the full log grouped by calendar day, each message
// classified mine/theirs for the viewer.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return
	}

	viewer := userFrom(r)
	messages, err := s.chat.History(viewer, groupID)
	if err != nil {
		s.jsonError(w, err)
		return
	}

	buckets, days := projection.GroupByDay(messages)
	byDay := make(map[string][]messageResponse, len(buckets))
	for day, msgs := range buckets {
		out := make([]messageResponse, 0, len(msgs))
		for _, msg := range msgs {
			out = append(out, toMessageResponse(msg, viewer))
		}
		byDay[day] = out
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"days":     days,
		"messages": byDay,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
		return
	}
	var req struct {
		Body           string `json:"body"`
		Stamp          string `json:"stamp"`
		StampCursor    int    `json:"stamp_cursor"`
		AttachmentRef  string `json:"attachment_ref"`
		AttachmentKind string `json:"attachment_kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	viewer := userFrom(r)
	msg, err := s.chat.SendMessage(r.Context(), viewer, groupID, composition.Draft{
		Body:           req.Body,
		Stamp:          req.Stamp,
		StampCursor:    req.StampCursor,
		AttachmentRef:  req.AttachmentRef,
		AttachmentKind: domain.AttachmentKind(req.AttachmentKind),
	})
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toMessageResponse(msg, viewer))
}

// handleUpload stores attachment bytes ahead of the send that references
// them. The response carries the stable URL and the sniffed kind.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file part"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.jsonError(w, fmt.Errorf("%w: %v", errors.ErrAttachmentUploadFailed, err))
		return
	}

	url, kind, err := s.blobs.Upload(data, header.Header.Get("Content-Type"))
	if err != nil {
		s.jsonError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"url":  url,
		"kind": string(kind),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := search.ParseQuery(r.URL.Query().Get("q"))
	if query.Terms == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty query"})
		return
	}

	hits, err := s.index.Search(r.Context(), query)
	if err != nil {
		s.jsonError(w, err)
		return
	}

	// Hits are visible only inside groups the viewer belongs to.
	summaries, err := s.directory.ListGroups(userFrom(r))
	if err != nil {
		s.jsonError(w, err)
		return
	}
	member := make(map[uuid.UUID]struct{}, len(summaries))
	for _, summary := range summaries {
		member[summary.ID] = struct{}{}
	}
	visible := make([]search.Hit, 0, len(hits))
	for _, hit := range hits {
		if _, ok := member[hit.GroupID]; ok {
			visible = append(visible, hit)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"hits": visible})
}
