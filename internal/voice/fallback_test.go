package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mduddyaiprojects-coder/podcast-generator-sub001/internal/model"
)

// fakeLister はテスト用のVoiceLister。
type fakeLister struct {
	voices []model.VoiceProfile
	err    error
	calls  int
}

func (f *fakeLister) ListVoices(ctx context.Context) ([]model.VoiceProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.voices, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func voiceSet(availability map[string]model.VoiceAvailability) []model.VoiceProfile {
	var voices []model.VoiceProfile
	for id, avail := range availability {
		voices = append(voices, model.VoiceProfile{
			ID:           id,
			DisplayName:  id,
			Provider:     "openai",
			Locale:       "en-US",
			Availability: avail,
			QualityTier:  model.VoiceTierStandard,
		})
	}
	return voices
}

func newTestResolver(t *testing.T, lister VoiceLister) *Resolver {
	t.Helper()
	catalog := NewCatalog([]VoiceLister{lister}, testLogger(), time.Hour)
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("カタログの初期化に失敗: %v", err)
	}
	resolver, err := NewResolver(catalog, testLogger())
	if err != nil {
		t.Fatalf("リゾルバの生成に失敗: %v", err)
	}
	return resolver
}

func TestSelectWithFallback_PreferredAvailable(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"onyx":  model.VoiceAvailable,
		"alloy": model.VoiceAvailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "onyx", "en-US")
	if sel.VoiceID != "onyx" {
		t.Errorf("VoiceID = %q, want onyx", sel.VoiceID)
	}
	if sel.WasFallback {
		t.Error("希望音声が使えた場合はWasFallback = false")
	}
	if sel.FallbackLevel != 0 {
		t.Errorf("FallbackLevel = %d, want 0", sel.FallbackLevel)
	}
}

// TestSelectWithFallback_Deterministic はチェーン [alloy(不可), nova(可), onyx(可)]
// に対して常にnovaが選ばれ、決してonyxが選ばれないことを確認する。
func TestSelectWithFallback_Deterministic(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceUnavailable,
		"nova":  model.VoiceAvailable,
		"onyx":  model.VoiceAvailable,
		"echo":  model.VoiceAvailable,
	})})

	for i := 0; i < 10; i++ {
		sel := r.SelectWithFallback(context.Background(), "alloy", "en-US")
		if sel.VoiceID != "nova" {
			t.Fatalf("%d回目: VoiceID = %q, want nova", i+1, sel.VoiceID)
		}
		if !sel.WasFallback {
			t.Fatal("フォールバック発生時はWasFallback = true")
		}
		// en-USチェーンは [alloy, nova, onyx, echo]。希望音声alloyを除き
		// novaが最初の代替なのでフォールバック段数は1
		if sel.FallbackLevel != 1 {
			t.Fatalf("FallbackLevel = %d, want 1", sel.FallbackLevel)
		}
		if sel.Reason == "" {
			t.Fatal("人間可読なReasonが設定されるべき")
		}
	}
}

// TestSelectWithFallback_LevelSkipsDeeperUnavailableVoices は希望音声に加えて
// 代替候補の先頭も利用不可の場合、段数が代替候補の中での位置を示すことを確認する。
func TestSelectWithFallback_LevelSkipsDeeperUnavailableVoices(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceUnavailable,
		"nova":  model.VoiceUnavailable,
		"onyx":  model.VoiceAvailable,
		"echo":  model.VoiceAvailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "alloy", "en-US")
	if sel.VoiceID != "onyx" {
		t.Errorf("VoiceID = %q, want onyx", sel.VoiceID)
	}
	// alloyを除いた代替候補は [nova, onyx, echo]。onyxは2段目
	if sel.FallbackLevel != 2 {
		t.Errorf("FallbackLevel = %d, want 2", sel.FallbackLevel)
	}
}

// 希望音声の指定がない場合、段数はチェーン内の1始まりの位置そのもの。
func TestSelectWithFallback_NoPreferredLevelIsChainPosition(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceUnavailable,
		"nova":  model.VoiceAvailable,
		"onyx":  model.VoiceAvailable,
		"echo":  model.VoiceAvailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "", "en-US")
	if sel.VoiceID != "nova" {
		t.Errorf("VoiceID = %q, want nova", sel.VoiceID)
	}
	if sel.FallbackLevel != 2 {
		t.Errorf("FallbackLevel = %d, want 2", sel.FallbackLevel)
	}
}

func TestSelectWithFallback_DegradedIsNotSelected(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceDegraded,
		"nova":  model.VoiceAvailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "alloy", "en-US")
	if sel.VoiceID != "nova" {
		t.Errorf("degradedな希望音声は避けるべき, got %q", sel.VoiceID)
	}
}

func TestSelectWithFallback_LastResort(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceUnavailable,
		"nova":  model.VoiceUnavailable,
		"onyx":  model.VoiceUnavailable,
		"echo":  model.VoiceUnavailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "alloy", "en-US")
	// チェーン全滅でも最終エントリを返す。失敗はしない。
	if sel.VoiceID != "echo" {
		t.Errorf("最終手段としてチェーン末尾を返すべき, got %q", sel.VoiceID)
	}
	if !sel.WasFallback {
		t.Error("最終手段はWasFallback = trueであるべき")
	}
	if sel.Reason == "" {
		t.Error("最終手段のReasonが設定されるべき")
	}
}

func TestSelectWithFallback_UnknownLocaleUsesDefault(t *testing.T) {
	r := newTestResolver(t, &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceAvailable,
	})})

	sel := r.SelectWithFallback(context.Background(), "", "xx-XX")
	// defaultチェーンは [alloy, nova, shimmer]
	if sel.VoiceID != "alloy" {
		t.Errorf("未知ロケールはdefaultチェーンを使うべき, got %q", sel.VoiceID)
	}
}

func TestCatalogRefresh_FailureKeepsPreviousCache(t *testing.T) {
	lister := &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceAvailable,
	})}
	catalog := NewCatalog([]VoiceLister{lister}, testLogger(), time.Hour)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if catalog.Size() != 1 {
		t.Fatalf("初回リフレッシュ後のサイズ = %d, want 1", catalog.Size())
	}

	// 以降のリフレッシュは失敗させる
	lister.err = errors.New("provider down")
	if err := catalog.Refresh(context.Background()); err == nil {
		t.Error("全ソース失敗時はエラーを返すべき")
	}

	// 前回のキャッシュは保持される
	if catalog.Size() != 1 {
		t.Errorf("リフレッシュ失敗後もキャッシュは保持されるべき, size = %d", catalog.Size())
	}
	if _, ok := catalog.Lookup(context.Background(), "alloy"); !ok {
		t.Error("失敗後も既存エントリは参照できるべき")
	}
}

func TestCatalogRefresh_ReplacesWholeSet(t *testing.T) {
	lister := &fakeLister{voices: voiceSet(map[string]model.VoiceAvailability{
		"alloy": model.VoiceAvailable,
		"nova":  model.VoiceAvailable,
	})}
	catalog := NewCatalog([]VoiceLister{lister}, testLogger(), time.Hour)
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 次回リフレッシュでは別のセットを返す
	lister.voices = voiceSet(map[string]model.VoiceAvailability{
		"shimmer": model.VoiceAvailable,
	})
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// セット全体が置き換えられ、古いエントリは残らない
	if catalog.Size() != 1 {
		t.Errorf("サイズ = %d, want 1", catalog.Size())
	}
	if _, ok := catalog.Lookup(context.Background(), "alloy"); ok {
		t.Error("置き換え後に古いエントリが残ってはならない")
	}
}
