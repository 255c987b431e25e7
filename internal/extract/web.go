package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/security"
)

// WebHandler はWeb記事の抽出ハンドラー。
// 抽出サービスにフェッチとパースを依頼し、HTML混じりの結果を
// プレーンテキストへ正規化する。
type WebHandler struct {
	client    ExtractionClient
	sanitizer security.TextSanitizerService
}

// NewWebHandler はWebHandlerの新しいインスタンスを生成する。
func NewWebHandler(client ExtractionClient, sanitizer security.TextSanitizerService) *WebHandler {
	return &WebHandler{client: client, sanitizer: sanitizer}
}

// Extract はWeb記事を抽出する。
// 抽出サービスの失敗はExtractionFailedとして伝播する。
func (h *WebHandler) Extract(ctx context.Context, sub model.ContentSubmission) (*model.ExtractedContent, error) {
	result, err := h.client.Extract(ctx, sub.SourceURL)
	if err != nil {
		return nil, model.NewExtractionFailedError(err)
	}

	body := result.Content
	title := result.Title

	// 抽出サービスがHTMLのまま返してきた場合は記事本文を選別する
	if looksLikeHTML(body) {
		if refined, refinedTitle, ok := refineArticleHTML(body); ok {
			body = refined
			if title == "" {
				title = refinedTitle
			}
		}
	}
	body = h.sanitizer.PlainText(body)

	if strings.TrimSpace(body) == "" {
		return nil, model.NewExtractionFailedError(
			errEmptyBody{url: sub.SourceURL})
	}

	return &model.ExtractedContent{
		Title:            fallbackTitle(title, sub.SourceURL),
		Body:             body,
		Author:           result.Author,
		PublishedAt:      result.PublishedDate,
		ExtractionMethod: "web_article",
		Metadata:         map[string]string{"source_url": sub.SourceURL},
	}, nil
}

// looksLikeHTML はコンテンツがHTMLマークアップを含むかを簡易判定する。
func looksLikeHTML(content string) bool {
	return strings.Contains(content, "<") && strings.Contains(content, ">")
}

// refineArticleHTML はHTMLから本文らしき部分を選別する。
// article / main 要素を優先し、見つからない場合はbody全体の段落を使う。
// script / style / nav / footer は除外する。
func refineArticleHTML(rawHTML string) (body string, title string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", false
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", "", false
	}

	var paragraphs []string
	root.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		// 段落タグがないページはテキスト全体にフォールバック
		text := strings.TrimSpace(root.Text())
		if text == "" {
			return "", "", false
		}
		return text, title, true
	}

	return strings.Join(paragraphs, "\n\n"), title, true
}

// fallbackTitle はタイトルが空の場合にソースURLで代替する。
func fallbackTitle(title, sourceURL string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return sourceURL
}

// errEmptyBody は抽出結果の本文が空だったことを表す。
type errEmptyBody struct {
	url string
}

func (e errEmptyBody) Error() string {
	return "抽出結果の本文が空です: " + e.url
}
