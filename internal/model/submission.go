// Package model はドメインモデルを定義する。
package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType は投稿されたソースコンテンツの種別を表す。
type ContentType string

const (
	// ContentTypeWebURL はWeb記事のURL。
	ContentTypeWebURL ContentType = "web_url"
	// ContentTypeVideoLink は動画リンク。
	ContentTypeVideoLink ContentType = "video_link"
	// ContentTypePDF はPDFドキュメント。
	ContentTypePDF ContentType = "pdf"
	// ContentTypeDocument はその他の汎用ドキュメント。
	ContentTypeDocument ContentType = "document"
)

// supportedContentTypes は受け付けるコンテンツ種別の閉集合。
var supportedContentTypes = map[ContentType]bool{
	ContentTypeWebURL:    true,
	ContentTypeVideoLink: true,
	ContentTypePDF:       true,
	ContentTypeDocument:  true,
}

// SubmissionStatus は投稿の処理ステータスを表す。
type SubmissionStatus string

const (
	// SubmissionStatusPending は処理待ちの状態。
	SubmissionStatusPending SubmissionStatus = "pending"
	// SubmissionStatusProcessing はパイプライン処理中の状態。
	SubmissionStatusProcessing SubmissionStatus = "processing"
	// SubmissionStatusCompleted は処理完了の終端状態。
	SubmissionStatusCompleted SubmissionStatus = "completed"
	// SubmissionStatusFailed は処理失敗の終端状態。
	SubmissionStatusFailed SubmissionStatus = "failed"
)

// IsTerminal は終端状態（completed / failed）かどうかを返す。
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusCompleted || s == SubmissionStatusFailed
}

// allowedTransitions は投稿ステータスの遷移テーブル。
// ここに含まれない遷移はすべて拒否される。終端状態からの遷移は存在しない。
var allowedTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusPending:    {SubmissionStatusProcessing, SubmissionStatusFailed},
	SubmissionStatusProcessing: {SubmissionStatusCompleted, SubmissionStatusFailed},
	SubmissionStatusCompleted:  {},
	SubmissionStatusFailed:     {},
}

// ContentSubmission はユーザーが投稿した変換リクエストを表す。
// 構築後はイミュータブルとして扱い、状態変更は必ずTransitionを通して
// 新しい値を生成する。部分的に不変条件を満たさない中間状態は観測されない。
type ContentSubmission struct {
	ID               string
	SourceURL        string
	ContentType      ContentType
	UserNote         string
	Status           SubmissionStatus
	ErrorMessage     string
	ExtractedContent string
	Metadata         map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time
}

// SubmissionRequest は投稿作成の入力パラメータ。
type SubmissionRequest struct {
	SourceURL   string
	ContentType ContentType
	UserNote    string
}

// NewContentSubmission は検証済みの新規投稿をpendingステータスで生成する。
// URL欠落、未サポートのコンテンツ種別、URL/動画種別での不正なURL形式は
// 構築時点でValidationErrorとなる。外部呼び出しの前に失敗させる。
func NewContentSubmission(req SubmissionRequest) (ContentSubmission, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return ContentSubmission{}, NewValidationError("source_urlは必須です")
	}
	if !supportedContentTypes[req.ContentType] {
		return ContentSubmission{}, NewValidationError(
			"サポートされていないコンテンツ種別です: " + string(req.ContentType))
	}

	// URL系の種別はスキームとホストを持つ絶対URLであることを要求する
	if req.ContentType == ContentTypeWebURL || req.ContentType == ContentTypeVideoLink {
		u, err := url.Parse(req.SourceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ContentSubmission{}, NewValidationError("URLの形式が不正です: " + req.SourceURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return ContentSubmission{}, NewValidationError("URLスキームはhttp/httpsのみサポートします")
		}
	}

	now := time.Now()
	sub := ContentSubmission{
		ID:          uuid.New().String(),
		SourceURL:   req.SourceURL,
		ContentType: req.ContentType,
		UserNote:    req.UserNote,
		Status:      SubmissionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := sub.validateInvariants(); err != nil {
		return ContentSubmission{}, err
	}
	return sub, nil
}

// Transition はステータス遷移を適用した新しい投稿値を返す。
// 遷移テーブル外の遷移はInvalidTransitionで拒否する。
// failedへの遷移はエラーメッセージを要求し、終端状態への遷移は
// processed_atを刻印する。遷移後に全不変条件を再検証する。
func (s ContentSubmission) Transition(newStatus SubmissionStatus, errorMessage string) (ContentSubmission, error) {
	if !s.canTransitionTo(newStatus) {
		return ContentSubmission{}, NewInvalidTransitionError(s.Status, newStatus)
	}

	if newStatus == SubmissionStatusFailed && strings.TrimSpace(errorMessage) == "" {
		return ContentSubmission{}, NewValidationError("failedへの遷移にはエラーメッセージが必要です")
	}
	if newStatus != SubmissionStatusFailed && errorMessage != "" {
		return ContentSubmission{}, NewValidationError("failed以外の遷移でエラーメッセージは指定できません")
	}

	next := s
	next.Status = newStatus
	next.ErrorMessage = errorMessage
	next.UpdatedAt = time.Now()

	if newStatus.IsTerminal() {
		now := time.Now()
		next.ProcessedAt = &now
	}

	if err := next.validateInvariants(); err != nil {
		return ContentSubmission{}, err
	}
	return next, nil
}

// WithExtractedContent は抽出結果を反映した新しい投稿値を返す。
func (s ContentSubmission) WithExtractedContent(content string, metadata map[string]string) ContentSubmission {
	next := s
	next.ExtractedContent = content
	if len(metadata) > 0 {
		merged := make(map[string]string, len(s.Metadata)+len(metadata))
		for k, v := range s.Metadata {
			merged[k] = v
		}
		for k, v := range metadata {
			merged[k] = v
		}
		next.Metadata = merged
	}
	next.UpdatedAt = time.Now()
	return next
}

// canTransitionTo は遷移テーブル上で許可された遷移かどうかを返す。
func (s ContentSubmission) canTransitionTo(newStatus SubmissionStatus) bool {
	for _, allowed := range allowedTransitions[s.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// validateInvariants は投稿の不変条件を検証する。
//   - error_messageが設定されるのはstatusがfailedの場合のみ（かつ必須）
//   - processed_atが設定されるのはstatusが終端状態の場合のみ（かつ必須）
func (s ContentSubmission) validateInvariants() error {
	if s.Status == SubmissionStatusFailed && s.ErrorMessage == "" {
		return NewValidationError("failedステータスにはエラーメッセージが必要です")
	}
	if s.Status != SubmissionStatusFailed && s.ErrorMessage != "" {
		return NewValidationError("failed以外のステータスにエラーメッセージは設定できません")
	}
	if s.Status.IsTerminal() && s.ProcessedAt == nil {
		return NewValidationError("終端ステータスにはprocessed_atが必要です")
	}
	if !s.Status.IsTerminal() && s.ProcessedAt != nil {
		return NewValidationError("終端以外のステータスにprocessed_atは設定できません")
	}
	return nil
}
