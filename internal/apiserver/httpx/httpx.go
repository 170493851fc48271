// Package httpx HTTP 响应信封和错误写出
//
// 所有接口统一返回 {success, data?, message?} 信封：
//   - 成功：{"success": true, "data": ...}
//   - 失败：{"success": false, "message": "..."}
//
// 失败信封的 message 面向用户稳定可读，底层错误细节只进日志。
package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"workerbee/internal/shared/apperr"
)

// Envelope 统一响应信封
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON 写出成功信封
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteMessage 写出带提示消息的成功信封（删除等无数据响应）
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: true, Message: message})
}

// WriteError 写出失败信封
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Success: false, Message: message})
}

// WriteAppError 按错误分类写出失败信封，未分类错误记日志后返回 500
func WriteAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
	}
	WriteError(w, status, apperr.MessageOf(err))
}
