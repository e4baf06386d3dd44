package api

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/planner"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/util"
)

const (
	scoreThrottle  = 250 * time.Millisecond
	scoreChunkSize = 500
)

// scoreJob tracks the state of a running catalog scoring run.
type scoreJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int64
	requestID uint
}

type vendorResult struct {
	Score store.VendorScore
	Err   error
}

// startScoreJob launches a new asynchronous scoring job. The caller must hold
// s.jobMu prior to invoking this function.
func (s *Server) startScoreJob(pref store.Preference, total int64) (*scoreJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("scoring already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &scoreJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     total,
	}

	request, err := s.db.CreateScoreRequest("score", "running", job.id)
	if err != nil {
		job.cancel()
		return nil, fmt.Errorf("create score request: %w", err)
	}
	job.requestID = request.ID

	s.activeJob = job
	go s.runScoreJob(ctx, job, pref)
	return job, nil
}

// cancelScoreJob aborts the active job if present.
func (s *Server) cancelScoreJob() {
	if s.activeJob == nil {
		return
	}
	s.activeJob.cancel()
}

func (s *Server) runScoreJob(ctx context.Context, job *scoreJob, pref store.Preference) {
	finishStatus := "completed"

	defer func() {
		if job.requestID != 0 {
			if err := s.db.UpdateScoreRequest(job.requestID, finishStatus); err != nil {
				logrus.WithError(err).WithField("job", job.id).Warn("update score request")
			}
		}
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	logrus.WithFields(logrus.Fields{
		"job":   job.id,
		"total": job.total,
	}).Info("scoring job started")

	s.scoreNotifier.Broadcast(ScoreEvent{
		Type:    "started",
		JobID:   job.id,
		Total:   job.total,
		Message: "scoring started",
	})

	workerCount := determineWorkerCount()
	taskCh := make(chan store.Vendor, workerCount*4)
	resultCh := make(chan vendorResult, workerCount*4)
	errCh := make(chan error, 1)

	var workerWG sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for vendor := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res := s.scoreVendor(vendor, pref)
				select {
				case resultCh <- res:
				case <-ctx.Done():
					return
				}
				if res.Err != nil {
					return
				}
			}
		}()
	}

	go func() {
		workerWG.Wait()
		close(resultCh)
	}()

	go func() {
		defer close(taskCh)
		defer close(errCh)
		offset := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			vendors, err := s.db.ListVendors(offset, scoreChunkSize)
			if err != nil {
				errCh <- fmt.Errorf("list vendors: %w", err)
				return
			}
			if len(vendors) == 0 {
				return
			}
			for _, vendor := range vendors {
				select {
				case taskCh <- vendor:
				case <-ctx.Done():
					return
				}
			}
			offset += len(vendors)
			if len(vendors) < scoreChunkSize {
				return
			}
		}
	}()

	var (
		processed    int
		lastEmit     time.Time
		hasPending   bool
		pendingEvent ScoreEvent
	)

	flush := func(force bool) {
		if !hasPending {
			return
		}
		if !force && !lastEmit.IsZero() && time.Since(lastEmit) < scoreThrottle {
			return
		}
		s.scoreNotifier.Broadcast(pendingEvent)
		lastEmit = time.Now()
		hasPending = false
	}

	activeResultCh := resultCh
	activeErrCh := errCh

	for activeResultCh != nil || activeErrCh != nil {
		select {
		case <-ctx.Done():
			flush(true)
			finishStatus = "cancelled"
			s.scoreNotifier.Broadcast(ScoreEvent{
				Type:      "cancelled",
				JobID:     job.id,
				Total:     job.total,
				Processed: processed,
				Message:   "scoring cancelled",
			})
			logrus.WithField("job", job.id).Warn("scoring job cancelled")
			return
		case err, ok := <-activeErrCh:
			if !ok {
				activeErrCh = nil
				continue
			}
			if err != nil {
				flush(true)
				finishStatus = "failed"
				s.scoreNotifier.Broadcast(ScoreEvent{
					Type:    "error",
					JobID:   job.id,
					Message: err.Error(),
				})
				logrus.WithError(err).Error("scoring job failed")
				job.cancel()
				return
			}
		case res, ok := <-activeResultCh:
			if !ok {
				activeResultCh = nil
				continue
			}
			if res.Err != nil {
				flush(true)
				finishStatus = "failed"
				s.scoreNotifier.Broadcast(ScoreEvent{
					Type:    "error",
					JobID:   job.id,
					Message: fmt.Sprintf("score vendor: %v", res.Err),
				})
				logrus.WithError(res.Err).Error("score vendor")
				job.cancel()
				return
			}

			score := res.Score
			if err := s.db.SaveVendorScore(&score); err != nil {
				flush(true)
				finishStatus = "failed"
				s.scoreNotifier.Broadcast(ScoreEvent{
					Type:    "error",
					JobID:   job.id,
					Message: fmt.Sprintf("save score: %v", err),
				})
				logrus.WithError(err).Error("save vendor score")
				job.cancel()
				return
			}

			processed++
			dto := ScoreFromModel(score)
			pendingEvent = ScoreEvent{
				Type:      "progress",
				JobID:     job.id,
				Total:     job.total,
				Processed: processed,
				Score:     &dto,
			}
			hasPending = true
			flush(false)
		}
	}

	flush(true)
	s.scoreNotifier.Broadcast(ScoreEvent{
		Type:      "completed",
		JobID:     job.id,
		Total:     job.total,
		Processed: processed,
		Message:   "scoring completed",
	})
	logrus.WithFields(logrus.Fields{
		"job":       job.id,
		"processed": processed,
	}).Info("scoring job completed")
}

func (s *Server) scoreVendor(vendor store.Vendor, pref store.Preference) vendorResult {
	timer := util.StartTimer()

	flexibility, err := planner.ParseFlexibility(pref.Flexibility)
	if err != nil {
		return vendorResult{Err: err}
	}

	result, err := s.confidence.Compute(planner.ConfidenceInput{
		Rating:           vendor.Rating,
		Flexibility:      flexibility,
		DurationDays:     pref.DurationDays,
		DaysUntilWedding: pref.DaysUntilWedding,
	})
	if err != nil {
		return vendorResult{Err: fmt.Errorf("vendor %s: %w", vendor.Name, err)}
	}

	return vendorResult{Score: store.VendorScore{
		VendorID:         vendor.ID,
		VendorName:       vendor.Name,
		Category:         vendor.Category,
		Rating:           vendor.Rating,
		Percentage:       result.Percentage,
		Tier:             string(result.Tier),
		Flexibility:      pref.Flexibility,
		DurationDays:     pref.DurationDays,
		ProcessingTimeMs: timer.ElapsedMs(),
	}}
}

func determineWorkerCount() int {
	count := runtime.NumCPU()
	if count < 2 {
		return 2
	}
	if count > 8 {
		return 8
	}
	return count
}
