package model

import (
	"testing"
)

func TestNewProcessingJob_InitialState(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)

	if job.Status != JobStatusQueued {
		t.Errorf("初期ステータス = %q, want queued", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("初期進捗 = %d, want 0", job.Progress)
	}
	if job.RetryCount != 0 {
		t.Errorf("初期リトライ回数 = %d, want 0", job.RetryCount)
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("初期状態では開始・完了時刻はnilであるべき")
	}
}

func TestNewProcessingJob_DefaultMaxRetries(t *testing.T) {
	job := NewProcessingJob("sub-1", 0)
	if job.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", job.MaxRetries, DefaultMaxRetries)
	}
}

func TestJobStart(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)

	running, err := job.Start()
	if err != nil {
		t.Fatalf("queued -> running は許可されるべき: %v", err)
	}
	if running.Status != JobStatusRunning {
		t.Errorf("Status = %q, want running", running.Status)
	}
	if running.StartedAt == nil {
		t.Error("runningではStartedAtが刻印されるべき")
	}
	// 元の値は変更されない
	if job.Status != JobStatusQueued {
		t.Errorf("元のジョブが書き換えられている: %q", job.Status)
	}
}

func TestJobStart_NotQueued(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()

	_, err := running.Start()
	if !IsCode(err, ErrCodeInvalidStateTransition) {
		t.Errorf("running状態のstartは拒否されるべき, got %v", err)
	}
}

func TestJobUpdateProgress(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()

	updated, err := running.UpdateProgress(40, "音声合成中")
	if err != nil {
		t.Fatalf("進捗更新に失敗: %v", err)
	}
	if updated.Progress != 40 {
		t.Errorf("Progress = %d, want 40", updated.Progress)
	}
	if updated.CurrentStep != "音声合成中" {
		t.Errorf("CurrentStep = %q, want 音声合成中", updated.CurrentStep)
	}
}

func TestJobUpdateProgress_KeepsStepWhenEmpty(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()
	running, _ = running.UpdateProgress(10, "抽出中")

	updated, err := running.UpdateProgress(20, "")
	if err != nil {
		t.Fatal(err)
	}
	if updated.CurrentStep != "抽出中" {
		t.Errorf("空stepでは現在ステップを維持すべき, got %q", updated.CurrentStep)
	}
}

func TestJobUpdateProgress_OutOfRange(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()

	if _, err := running.UpdateProgress(101, ""); !IsCode(err, ErrCodeValidation) {
		t.Errorf("101%%は拒否されるべき, got %v", err)
	}
	if _, err := running.UpdateProgress(-1, ""); !IsCode(err, ErrCodeValidation) {
		t.Errorf("-1%%は拒否されるべき, got %v", err)
	}
}

func TestJobUpdateProgress_NotRunning(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)

	_, err := job.UpdateProgress(50, "step")
	if !IsCode(err, ErrCodeInvalidStateTransition) {
		t.Errorf("queued状態の進捗更新は拒否されるべき, got %v", err)
	}
}

func TestJobComplete(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()
	running, _ = running.UpdateProgress(70, "保存中")

	done, err := running.Complete()
	if err != nil {
		t.Fatalf("running -> completed は許可されるべき: %v", err)
	}
	if done.Progress != 100 {
		t.Errorf("完了時の進捗は100に強制されるべき, got %d", done.Progress)
	}
	if done.CompletedAt == nil {
		t.Error("completedではCompletedAtが刻印されるべき")
	}
	if done.StartedAt != nil && done.CompletedAt != nil && done.CompletedAt.Before(*done.StartedAt) {
		t.Error("CompletedAtはStartedAt以降であるべき")
	}
}

func TestJobFail_RequiresMessage(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()

	if _, err := running.Fail(""); !IsCode(err, ErrCodeValidation) {
		t.Errorf("メッセージなしのfailは拒否されるべき, got %v", err)
	}

	failed, err := running.Fail("TTSプロバイダー障害")
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != JobStatusFailed {
		t.Errorf("Status = %q, want failed", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Error("failedではErrorMessageが設定されるべき")
	}
	if failed.CompletedAt == nil {
		t.Error("failedでは終了時刻が刻印されるべき")
	}
}

func TestJobRetry(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	running, _ := job.Start()
	failed, _ := running.Fail("一時的な障害")

	retried, err := failed.Retry()
	if err != nil {
		t.Fatalf("リトライ残ありのretryは成功すべき: %v", err)
	}
	if retried.Status != JobStatusQueued {
		t.Errorf("Status = %q, want queued", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", retried.RetryCount)
	}
	if retried.Progress != 0 || retried.CurrentStep != "" || retried.ErrorMessage != "" {
		t.Error("retryで進捗・ステップ・エラーはクリアされるべき")
	}
	if retried.StartedAt != nil || retried.CompletedAt != nil {
		t.Error("retryで開始・完了時刻はクリアされるべき")
	}
}

func TestJobRetry_AtBoundary(t *testing.T) {
	job := NewProcessingJob("sub-1", 2)

	// 上限までリトライを繰り返す
	for i := 0; i < 2; i++ {
		running, err := job.Start()
		if err != nil {
			t.Fatal(err)
		}
		failed, err := running.Fail("失敗")
		if err != nil {
			t.Fatal(err)
		}
		job, err = failed.Retry()
		if err != nil {
			t.Fatalf("%d回目のretryは成功すべき: %v", i+1, err)
		}
	}

	if job.RetryCount != job.MaxRetries {
		t.Fatalf("RetryCount = %d, want %d", job.RetryCount, job.MaxRetries)
	}

	// 上限到達後のretryはMaxRetriesExceeded
	running, _ := job.Start()
	failed, _ := running.Fail("最後の失敗")

	if failed.CanRetry() {
		t.Error("上限到達時はCanRetry() = falseであるべき")
	}
	_, err := failed.Retry()
	if !IsCode(err, ErrCodeMaxRetriesExceeded) {
		t.Errorf("上限到達後のretryはMaxRetriesExceededを返すべき, got %v", err)
	}
}

// TestJobRetryCount_NeverExceedsMax は何度失敗と再試行を繰り返しても
// retry_countがmax_retriesを超えないことを確認する。
func TestJobRetryCount_NeverExceedsMax(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)

	for attempt := 0; attempt < 10; attempt++ {
		running, err := job.Start()
		if err != nil {
			break
		}
		failed, err := running.Fail("失敗")
		if err != nil {
			break
		}
		if failed.RetryCount > failed.MaxRetries {
			t.Fatalf("RetryCount %d がMaxRetries %d を超えた", failed.RetryCount, failed.MaxRetries)
		}
		next, err := failed.Retry()
		if err != nil {
			// 上限到達。これ以上カウントは進まない。
			if failed.RetryCount != failed.MaxRetries {
				t.Errorf("上限エラー時のRetryCount = %d, want %d", failed.RetryCount, failed.MaxRetries)
			}
			return
		}
		job = next
	}
	t.Error("リトライ上限に到達しなかった")
}

func TestJobRetry_NotFailed(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)

	_, err := job.Retry()
	if !IsCode(err, ErrCodeInvalidStateTransition) {
		t.Errorf("queued状態のretryは拒否されるべき, got %v", err)
	}
}

func TestJobCanRetry(t *testing.T) {
	job := NewProcessingJob("sub-1", 3)
	if job.CanRetry() {
		t.Error("queued状態ではCanRetry() = falseであるべき")
	}

	running, _ := job.Start()
	failed, _ := running.Fail("失敗")
	if !failed.CanRetry() {
		t.Error("リトライ残ありのfailedではCanRetry() = trueであるべき")
	}
}
