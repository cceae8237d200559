package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

// MaxGenerationAttempts bounds how often a job is retried after a transient failure.
const MaxGenerationAttempts = 3

const jobNotFoundMessage = "Generation job not found"

// GenerationJobService runs flashcard generation in the background worker pool.
type GenerationJobService struct {
	jobs       GenerationJobStore
	generation *GenerationService
	events     EventPublisher
	log        logrus.FieldLogger
}

func NewGenerationJobService(jobs GenerationJobStore, generation *GenerationService, events EventPublisher, log logrus.FieldLogger) *GenerationJobService {
	return &GenerationJobService{
		jobs:       jobs,
		generation: generation,
		events:     publisherOrNop(events),
		log:        log,
	}
}

// Submit validates the request, records a queued job and pushes it onto the queue.
func (s *GenerationJobService) Submit(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerationJob, error) {
	if err := ValidateGenerateRequest(&req); err != nil {
		return nil, err
	}
	if _, err := ownedTopic(ctx, s.generation.topics, userID, req.TopicID); err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		ID:         uuid.New(),
		UserID:     userID,
		TopicID:    req.TopicID,
		Status:     models.JobQueued,
		SourceText: req.SourceText,
		Count:      req.Count,
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "save generation job", Err: err}
	}
	if err := s.jobs.Enqueue(ctx, job.ID); err != nil {
		return nil, &PersistenceError{Op: "enqueue generation job", Err: err}
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": userID, "topic_id": req.TopicID}).Info("generation job queued")
	return job, nil
}

// Get returns the job when it belongs to userID.
func (s *GenerationJobService) Get(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &NotFoundError{Message: jobNotFoundMessage}
		}
		return nil, &PersistenceError{Op: "load generation job", Err: err}
	}
	if job.UserID != userID {
		return nil, &NotFoundError{Message: jobNotFoundMessage}
	}
	return job, nil
}

// Process runs one attempt of a job. retry=true means the job was put back
// into the queued state and the caller should re-enqueue it. Job state is
// written with a context that survives cancellation of ctx, so a worker
// stopped mid-attempt leaves the job queued instead of stuck in processing.
func (s *GenerationJobService) Process(ctx context.Context, jobID uuid.UUID) (retry bool, err error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.log.WithField("job_id", jobID).Warn("generation job expired before processing")
			return false, nil
		}
		return false, err
	}
	if job.Status == models.JobCompleted || job.Status == models.JobFailed {
		return false, nil
	}

	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID, "topic_id": job.TopicID})
	storeCtx := context.WithoutCancel(ctx)

	job.Attempts++
	job.Status = models.JobProcessing
	if err := s.jobs.Save(storeCtx, job); err != nil {
		return false, err
	}

	cards, genErr := s.generation.generate(ctx, job.SourceText, job.Count)
	if genErr == nil {
		job.Status = models.JobCompleted
		job.Flashcards = cards
		job.Error = nil
		if err := s.jobs.Save(storeCtx, job); err != nil {
			return false, err
		}
		log.WithField("attempts", job.Attempts).Info("generation job completed")
		s.events.Publish(storeCtx, job.UserID, models.WSMessage{
			Type:    models.EventGenerationJobCompleted,
			Payload: models.GenerationJobEvent{JobID: job.ID, TopicID: job.TopicID, Flashcards: cards},
		})
		return false, nil
	}

	if ctx.Err() != nil {
		// Interrupted by shutdown; the attempt does not count.
		job.Attempts--
		job.Status = models.JobQueued
		if err := s.jobs.Save(storeCtx, job); err != nil {
			return false, err
		}
		log.WithError(genErr).Warn("generation job interrupted, returning it to the queue")
		return true, genErr
	}

	if IsRetryable(genErr) && job.Attempts < MaxGenerationAttempts {
		job.Status = models.JobQueued
		job.Error = JobErrorFrom(genErr)
		if err := s.jobs.Save(storeCtx, job); err != nil {
			return false, err
		}
		log.WithError(genErr).WithField("attempts", job.Attempts).Warn("generation job will be retried")
		return true, genErr
	}

	job.Status = models.JobFailed
	job.Error = JobErrorFrom(genErr)
	if err := s.jobs.Save(storeCtx, job); err != nil {
		return false, err
	}
	log.WithError(genErr).WithField("attempts", job.Attempts).Error("generation job failed")
	s.events.Publish(storeCtx, job.UserID, models.WSMessage{
		Type:    models.EventGenerationJobFailed,
		Payload: models.GenerationJobEvent{JobID: job.ID, TopicID: job.TopicID, Error: job.Error},
	})
	return false, genErr
}
