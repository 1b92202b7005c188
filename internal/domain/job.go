package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType tags the payload variant carried by a queue job.
type JobType string

const (
	JobScrape         JobType = "scrape"
	JobSynthesize     JobType = "synthesize"
	JobPublish        JobType = "publish"
	JobYouTubeProcess JobType = "youtube-process"
)

// JobStatus tracks a job through the queue state machine.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobActive  JobStatus = "ACTIVE"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// JobPayload is the tagged union of per-type payloads.
type JobPayload interface {
	JobType() JobType
}

// ScrapePayload asks for one account of one workspace to be scraped and
// its posts run through admission.
type ScrapePayload struct {
	WorkspaceID string `json:"workspace_id"`
	Account     string `json:"account"`
}

func (ScrapePayload) JobType() JobType { return JobScrape }

// SynthesizePayload asks for a hot topic to be turned into an article.
type SynthesizePayload struct {
	WorkspaceID string `json:"workspace_id"`
	TopicID     string `json:"topic_id"`
}

func (SynthesizePayload) JobType() JobType { return JobSynthesize }

// PublishPayload asks for one article to be published on one platform.
type PublishPayload struct {
	WorkspaceID string   `json:"workspace_id"`
	ArticleID   string   `json:"article_id"`
	Platform    Platform `json:"platform"`
}

func (PublishPayload) JobType() JobType { return JobPublish }

// YouTubeProcessPayload asks for an article's video media to be re-hosted.
type YouTubeProcessPayload struct {
	WorkspaceID string `json:"workspace_id"`
	ArticleID   string `json:"article_id"`
}

func (YouTubeProcessPayload) JobType() JobType { return JobYouTubeProcess }

// Job is one unit of asynchronous work. The queue owns scheduling and
// visibility; DBJobID correlates it to a durable record when the job must
// survive queue loss.
type Job struct {
	ID         string
	Type       JobType
	Status     JobStatus
	Attempts   int
	MaxAttempts int
	RunAt      time.Time
	DedupeKey  string
	Payload    JobPayload
	DBJobID    string
	LastError  string
	CreatedAt  time.Time
}

type jobEnvelope struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	DedupeKey   string          `json:"dedupe_key,omitempty"`
	DBJobID     string          `json:"db_job_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// EncodeJob serializes a job for queue transport.
func EncodeJob(job Job) ([]byte, error) {
	if job.Payload == nil {
		return nil, &Error{Kind: KindValidation, Op: "encode job", Err: fmt.Errorf("job %s has no payload", job.ID)}
	}
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(jobEnvelope{
		ID:          job.ID,
		Type:        job.Type,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		RunAt:       job.RunAt,
		DedupeKey:   job.DedupeKey,
		DBJobID:     job.DBJobID,
		CreatedAt:   job.CreatedAt,
		Payload:     raw,
	})
}

// DecodeJob deserializes a queue message back into a typed job. An unknown
// job type is a validation error: the message cannot be retried into sense.
func DecodeJob(data []byte) (Job, error) {
	var env jobEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Job{}, &Error{Kind: KindValidation, Op: "decode job", Err: err}
	}

	var payload JobPayload
	switch env.Type {
	case JobScrape:
		var p ScrapePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Job{}, &Error{Kind: KindValidation, Op: "decode scrape payload", Err: err}
		}
		payload = p
	case JobSynthesize:
		var p SynthesizePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Job{}, &Error{Kind: KindValidation, Op: "decode synthesize payload", Err: err}
		}
		payload = p
	case JobPublish:
		var p PublishPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Job{}, &Error{Kind: KindValidation, Op: "decode publish payload", Err: err}
		}
		payload = p
	case JobYouTubeProcess:
		var p YouTubeProcessPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Job{}, &Error{Kind: KindValidation, Op: "decode youtube payload", Err: err}
		}
		payload = p
	default:
		return Job{}, &Error{Kind: KindValidation, Op: "decode job", Err: fmt.Errorf("unknown job type %q", env.Type)}
	}

	return Job{
		ID:          env.ID,
		Type:        env.Type,
		Status:      JobPending,
		Attempts:    env.Attempts,
		MaxAttempts: env.MaxAttempts,
		RunAt:       env.RunAt,
		DedupeKey:   env.DedupeKey,
		Payload:     payload,
		DBJobID:     env.DBJobID,
		CreatedAt:   env.CreatedAt,
	}, nil
}
