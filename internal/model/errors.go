// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// PipelineError はパイプライン全体で使用する統一エラーフォーマットを表す。
// エラーコードと分類カテゴリ、リトライ可否の判断材料を含む。
type PipelineError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, extraction, provider, state, system
	Cause    error  // 上流エラー（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は上流エラーを返す。errors.Is / errors.As での検査に使用する。
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeExtractionFailed       = "EXTRACTION_FAILED"
	ErrCodeEmptyInput             = "EMPTY_INPUT"
	ErrCodeAllProvidersFailed     = "ALL_PROVIDERS_FAILED"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeMaxRetriesExceeded     = "MAX_RETRIES_EXCEEDED"
)

// NewValidationError は入力検証エラーを生成する。リトライしてはならない。
func NewValidationError(reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
	}
}

// NewExtractionFailedError はコンテンツ抽出失敗エラーを生成する。
// 上流のエラーメッセージをそのまま保持する。ジョブレベルでリトライ対象となる。
func NewExtractionFailedError(cause error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeExtractionFailed,
		Message:  fmt.Sprintf("コンテンツの抽出に失敗しました: %v", cause),
		Category: "extraction",
		Cause:    cause,
	}
}

// NewEmptyInputError は空テキスト入力エラーを生成する。
// 呼び出し側のバグであり、リトライもフォールバックもしてはならない。
func NewEmptyInputError() *PipelineError {
	return &PipelineError{
		Code:     ErrCodeEmptyInput,
		Message:  "合成対象のテキストが空です",
		Category: "validation",
	}
}

// NewAllProvidersFailedError は全TTSプロバイダー失敗エラーを生成する。
// プライマリとセカンダリ両方の原因エラーを保持する。
func NewAllProvidersFailedError(primaryErr, secondaryErr error) *PipelineError {
	return &PipelineError{
		Code: ErrCodeAllProvidersFailed,
		Message: fmt.Sprintf("全てのTTSプロバイダーが失敗しました: primary=%v, secondary=%v",
			primaryErr, secondaryErr),
		Category: "provider",
		Cause:    errors.Join(primaryErr, secondaryErr),
	}
}

// NewInvalidTransitionError は投稿ステータスの不正遷移エラーを生成する。
// 遷移テーブル外の遷移を試みたプログラミングエラーを表す。
func NewInvalidTransitionError(from, to SubmissionStatus) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("許可されていないステータス遷移です: %s -> %s", from, to),
		Category: "state",
	}
}

// NewInvalidStateTransitionError はジョブ操作の不正状態エラーを生成する。
// 現在のステータスを明示し、呼び出し側が暗黙に握り潰せないようにする。
func NewInvalidStateTransitionError(op string, current JobStatus) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeInvalidStateTransition,
		Message:  fmt.Sprintf("現在の状態では操作 %s を実行できません: status=%s", op, current),
		Category: "state",
	}
}

// NewMaxRetriesExceededError はリトライ上限到達エラーを生成する。
// 自動リトライしてはならず、オペレーターに通知すべき終端エラー。
func NewMaxRetriesExceededError(retryCount, maxRetries int) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeMaxRetriesExceeded,
		Message:  fmt.Sprintf("リトライ上限に達しました: %d/%d", retryCount, maxRetries),
		Category: "state",
	}
}

// IsCode はエラーが指定コードのPipelineErrorかどうかを判定する。
func IsCode(err error, code string) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
