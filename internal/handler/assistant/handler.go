package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/middleware"
	assistantService "github.com/zhouzirui/lifesync/backend/internal/service/assistant"
	"github.com/zhouzirui/lifesync/backend/pkg/utils"
)

// Handler AI 助手的HTTP处理器
type Handler struct {
	svc *assistantService.Service
	log logrus.FieldLogger
}

// New 创建助手处理器
func New(svc *assistantService.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, log: log.WithField("component", "assistant_handler")}
}

// RegisterRoutes 注册助手与聊天记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ai/generate", h.handleGenerate)
	r.Post("/ai/new-session", h.handleNewSession)
	r.Post("/ai/summarize-note", h.handleSummarizeNote)

	r.Get("/chats", h.handleListChats)
	r.Get("/chats/{chatID}", h.handleGetChat)
	r.Delete("/chats/{chatID}", h.handleDeleteChat)
}

// handleGenerate 执行一轮对话
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Prompt string `json:"prompt"`
		ChatID string `json:"chatId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.svc.HandleChatTurn(r.Context(), owner, payload.ChatID, payload.Prompt)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

// handleNewSession 丢弃当前缓存的会话
func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.svc.NewSession(owner)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "New session started"})
}

// handleSummarizeNote 总结指定标题的笔记
func (h *Handler) handleSummarizeNote(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		NoteName string `json:"noteName"`
		Prompt   string `json:"prompt"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.svc.SummarizeNote(r.Context(), owner, payload.NoteName, payload.Prompt)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

// handleListChats 列出当前用户的聊天记录
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	chats, err := h.svc.ListChats(r.Context(), owner)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chats)
}

// handleGetChat 返回单条聊天记录
func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	record, err := h.svc.GetChat(r.Context(), chi.URLParam(r, "chatID"), owner)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, record)
}

// handleDeleteChat 删除当前用户的聊天记录
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.svc.DeleteChatRecord(r.Context(), chi.URLParam(r, "chatID"), owner); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

// respondServiceError 将服务层错误映射为 HTTP 状态码
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := StatusFor(err)
	if status == 0 {
		// 客户端已断开，无需响应
		h.log.WithField("path", r.URL.Path).Debug("request cancelled by client")
		return
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("assistant request failed")
	}
	utils.RespondError(w, status, message)
}

// StatusFor 将服务层错误映射为 HTTP 状态码和提示信息
// 返回 0 表示调用方已取消，不应再写响应
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return 0, ""
	case errors.Is(err, assistantService.ErrEmptyInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, assistantService.ErrOwnerRequired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, assistantService.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, assistantService.ErrUpstreamRateLimit):
		return http.StatusTooManyRequests, "The assistant is busy right now, please try again shortly."
	case errors.Is(err, assistantService.ErrUpstream):
		return http.StatusBadGateway, "The assistant could not produce a reply."
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
