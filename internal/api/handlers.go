// 文件: internal/api/handlers.go
package api

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/models"
	"PICs_Gallery/internal/task"
	"PICs_Gallery/pkg/gallery"
	"PICs_Gallery/pkg/logger"
	"PICs_Gallery/pkg/paginator"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DeviceHeader 携带设备ID。缺失时服务端生成一个并在响应中回传。
const DeviceHeader = "X-Device-ID"

const (
	maxPageSize       = 500
	defaultSearchSize = 100
	defaultPrefLimit  = 5
)

type deviceKey struct{}

// APIHandlers 持有所有依赖
type APIHandlers struct {
	gallery     *gallery.Service
	taskManager *task.Manager
	configPath  string
}

// NewAPIHandlers 创建一个新的API处理器实例
func NewAPIHandlers(svc *gallery.Service, tm *task.Manager, configPath string) *APIHandlers {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return &APIHandlers{
		gallery:     svc,
		taskManager: tm,
		configPath:  configPath,
	}
}

// --- 辅助函数 ---

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

// withDeviceID 读取或生成设备ID，并把带设备字段的 logger 放进请求 context。
func withDeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(DeviceHeader, id)
		ctx := context.WithValue(r.Context(), deviceKey{}, id)
		ctx = logger.CtxWithLogger(ctx, slog.String("device", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceFrom(ctx context.Context) string {
	id, _ := ctx.Value(deviceKey{}).(string)
	return id
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func pageResponse(view gallery.PageView) map[string]interface{} {
	return map[string]interface{}{
		"data": view.Photos,
		"pagination": map[string]interface{}{
			"currentPage": view.CurrentPage,
			"totalPages":  view.TotalPages,
			"totalItems":  view.TotalItems,
		},
		"category":  view.Category,
		"algorithm": view.Algorithm,
	}
}

// --- 图片处理器 ---

func (h *APIHandlers) HandleListTables(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":       h.gallery.Tables(),
		"categories": h.gallery.Categories(),
	})
}

func (h *APIHandlers) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intParam(r, "limit", 0)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	sess := h.gallery.Session(deviceFrom(r.Context()))
	view, err := sess.View(r.Context(), q.Get("category"), q.Get("algorithm"), page, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "无法加载图片: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pageResponse(view))
}

func (h *APIHandlers) HandleShuffle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Algorithm string `json:"algorithm"`
	}
	// 请求体可以为空，此时按分类的默认算法重新排序
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	view, err := h.gallery.Session(deviceFrom(r.Context())).Shuffle(r.Context(), payload.Algorithm)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "无法加载图片: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pageResponse(view))
}

// HandleSearch 在标题和描述中搜索，结果按创建时间降序分页返回。
func (h *APIHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page := intParam(r, "page", 1)
	limit := intParam(r, "limit", defaultSearchSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultSearchSize
	}
	photos, err := h.gallery.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "搜索失败: "+err.Error())
		return
	}
	page = paginator.Clamp(page, len(photos), limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data": paginator.Page(photos, page, limit),
		"pagination": map[string]interface{}{
			"currentPage": page,
			"totalPages":  paginator.TotalPages(len(photos), limit),
			"totalItems":  len(photos),
		},
	})
}

func (h *APIHandlers) HandleClick(w http.ResponseWriter, r *http.Request) {
	var ref models.PhotoRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		respondError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	if ref.Table == "" || ref.ID == "" {
		respondError(w, http.StatusBadRequest, "缺少 'table' 或 'id' 字段")
		return
	}
	if err := h.gallery.Click(r.Context(), deviceFrom(r.Context()), ref); err != nil {
		if errors.Is(err, gallery.ErrUnknownTable) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"key": ref.Key()})
}

func (h *APIHandlers) HandleViews(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	n := h.gallery.Views(r.Context(), payload.Keys)
	respondJSON(w, http.StatusAccepted, map[string]int{"queued": n})
}

func (h *APIHandlers) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultPrefLimit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.gallery.Preferences(deviceFrom(r.Context()), limit),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.gallery.Stats(r.Context(), deviceFrom(r.Context()))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "无法统计: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// --- 任务处理器 ---

func (h *APIHandlers) HandleStartReloadTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.taskManager.StartReloadTask()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *APIHandlers) HandleGetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	status, err := h.taskManager.GetTaskStatus(taskID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// --- 配置处理器 ---

// HandleGetConfig 获取当前应用配置
func (h *APIHandlers) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, config.C)
}

// HandleUpdateConfig 更新并保存应用配置，已组装的组件在重启后才会使用新配置。
func (h *APIHandlers) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondError(w, http.StatusBadRequest, "无效的配置格式: "+err.Error())
		return
	}
	// apiKey 不随 JSON 下发，也不从请求中接收
	if config.C != nil {
		newConfig.Rest.APIKey = config.C.Rest.APIKey
	}
	newConfig.ApplyDefaults()

	if err := config.Save(&newConfig, h.configPath); err != nil {
		respondError(w, http.StatusInternalServerError, "写入配置文件失败: "+err.Error())
		return
	}
	config.C = &newConfig

	respondJSON(w, http.StatusOK, config.C)
}
