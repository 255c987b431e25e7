package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// エラーコードと原因カテゴリを含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, code, message, category string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     code,
		Message:  message,
		Category: category,
	})
}

// WritePipelineError はPipelineErrorをHTTPステータスにマッピングして書き込む。
// 入力検証系は400、それ以外のパイプラインエラーは502、未分類は500を返す。
func WritePipelineError(w http.ResponseWriter, err error) {
	var pe *model.PipelineError
	if !errors.As(err, &pe) {
		WriteInternalServerError(w)
		return
	}

	status := http.StatusBadGateway
	switch pe.Code {
	case model.ErrCodeValidation, model.ErrCodeEmptyInput:
		status = http.StatusBadRequest
	case model.ErrCodeInvalidTransition, model.ErrCodeInvalidStateTransition:
		status = http.StatusConflict
	}

	WriteErrorResponse(w, status, pe.Code, pe.Message, pe.Category)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError,
		"INTERNAL_ERROR", "内部エラーが発生しました。", "system")
}
