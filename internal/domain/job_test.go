package domain

import (
	"testing"
	"time"
)

func TestJobCodecRoundTrip(t *testing.T) {
	t.Parallel()

	runAt := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	job := Job{
		ID:          "j-1",
		Type:        JobPublish,
		Attempts:    1,
		MaxAttempts: 5,
		RunAt:       runAt,
		DedupeKey:   "publish:a-1:telegram",
		DBJobID:     "db-1",
		Payload: PublishPayload{
			WorkspaceID: "ws-1",
			ArticleID:   "a-1",
			Platform:    PlatformTelegram,
		},
	}

	data, err := EncodeJob(job)
	if err != nil {
		t.Fatalf("EncodeJob: %v", err)
	}

	decoded, err := DecodeJob(data)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}

	if decoded.ID != job.ID || decoded.Type != job.Type || decoded.Attempts != 1 ||
		decoded.MaxAttempts != 5 || decoded.DedupeKey != job.DedupeKey || decoded.DBJobID != "db-1" {
		t.Fatalf("envelope fields lost: %+v", decoded)
	}
	if !decoded.RunAt.Equal(runAt) {
		t.Fatalf("RunAt = %v, want %v", decoded.RunAt, runAt)
	}

	payload, ok := decoded.Payload.(PublishPayload)
	if !ok {
		t.Fatalf("payload type %T", decoded.Payload)
	}
	if payload.Platform != PlatformTelegram || payload.ArticleID != "a-1" {
		t.Fatalf("payload fields lost: %+v", payload)
	}
}

func TestJobCodecAllTypes(t *testing.T) {
	t.Parallel()

	payloads := []JobPayload{
		ScrapePayload{WorkspaceID: "ws-1", Account: "alice"},
		SynthesizePayload{WorkspaceID: "ws-1", TopicID: "topic-1"},
		PublishPayload{WorkspaceID: "ws-1", ArticleID: "a-1", Platform: PlatformX},
		YouTubeProcessPayload{WorkspaceID: "ws-1", ArticleID: "a-1"},
	}

	for _, payload := range payloads {
		data, err := EncodeJob(Job{ID: "j", Type: payload.JobType(), Payload: payload})
		if err != nil {
			t.Fatalf("encode %s: %v", payload.JobType(), err)
		}
		decoded, err := DecodeJob(data)
		if err != nil {
			t.Fatalf("decode %s: %v", payload.JobType(), err)
		}
		if decoded.Payload.JobType() != payload.JobType() {
			t.Fatalf("type mismatch: %s vs %s", decoded.Payload.JobType(), payload.JobType())
		}
	}
}

func TestDecodeJobUnknownType(t *testing.T) {
	t.Parallel()

	_, err := DecodeJob([]byte(`{"id":"j-1","type":"teleport","payload":{}}`))
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJobMalformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeJob([]byte(`{not json`))
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEncodeJobRequiresPayload(t *testing.T) {
	t.Parallel()

	_, err := EncodeJob(Job{ID: "j-1", Type: JobScrape})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
