package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coopsched/internal/job"
	"coopsched/internal/sched"
)

// Task kinds accepted by POST /api/v1/tasks.
const (
	kindSleep      = "sleep"
	kindAsyncSleep = "async-sleep"
	kindFetch      = "fetch"
	kindFail       = "fail"
)

// createTaskRequest is the body of POST /api/v1/tasks.
type createTaskRequest struct {
	Kind      string `json:"kind"`
	Priority  string `json:"priority"`
	MS        int64  `json:"ms"`
	URL       string `json:"url"`
	Integrity string `json:"integrity"`
	Label     string `json:"label"`
	Message   string `json:"message"`
}

// TaskView is the API representation of a submitted task.
type TaskView struct {
	ID          sched.TaskID `json:"id"`
	Kind        string       `json:"kind"`
	Label       string       `json:"label,omitempty"`
	Priority    string       `json:"priority"`
	State       string       `json:"state"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Result      any          `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeValidation, "invalid JSON: "+err.Error())
		return
	}

	prio, err := sched.ParsePriority(req.Priority)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	var submit func() *sched.Future
	label := req.Label
	switch req.Kind {
	case kindSleep, kindAsyncSleep:
		if req.MS < 0 {
			respondError(w, reqID, http.StatusBadRequest, codeValidation, "ms must not be negative")
			return
		}
		work := job.SleepWork(req.MS)
		if req.Kind == kindAsyncSleep {
			work = job.AsyncSleepWork(req.MS)
		}
		submit = func() *sched.Future { return s.sched.Enqueue(work, prio, sched.Options{Label: label}) }
	case kindFetch:
		if req.URL == "" {
			respondError(w, reqID, http.StatusBadRequest, codeValidation, "url is required for fetch tasks")
			return
		}
		if label == "" {
			label = req.URL
		}
		submit = func() *sched.Future {
			return job.LoadScript(s.sched, s.client, req.URL, job.LoadOptions{
				Priority:  prio.String(),
				Integrity: req.Integrity,
			})
		}
	case kindFail:
		msg := req.Message
		if msg == "" {
			msg = "requested failure"
		}
		submit = func() *sched.Future {
			return s.sched.Enqueue(job.FailWork(errors.New(msg)), prio, sched.Options{Label: label})
		}
	default:
		respondError(w, reqID, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("unknown kind %q (want sleep, async-sleep, fetch or fail)", req.Kind))
		return
	}

	var stopErr error
	t, err := s.tasks.admit(func() *tracked {
		fut := submit()
		if _, err, settled := fut.Result(); settled && errors.Is(err, sched.ErrStopped) {
			stopErr = err
			return nil
		}
		return &tracked{
			ID:          fut.ID(),
			Kind:        req.Kind,
			Label:       label,
			Priority:    prio,
			SubmittedAt: time.Now().UTC(),
			future:      fut,
		}
	})
	switch {
	case errors.Is(err, errRegistryFull):
		respondError(w, reqID, http.StatusTooManyRequests, codeTooMany, err.Error())
		return
	case stopErr != nil:
		respondError(w, reqID, http.StatusServiceUnavailable, codeStopped, stopErr.Error())
		return
	}

	s.logger.Debug("task submitted",
		zap.Uint64("task_id", uint64(t.ID)),
		zap.String("kind", t.Kind),
		zap.Stringer("priority", prio),
		zap.String("request_id", reqID),
	)
	respondAccepted(w, reqID, viewOf(t))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	all := s.tasks.list()
	views := make([]TaskView, 0, len(all))
	for _, t := range all {
		views = append(views, viewOf(t))
	}
	respondOK(w, reqID, views)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeValidation, "task id must be a positive integer")
		return
	}
	t, ok := s.tasks.get(sched.TaskID(id))
	if !ok {
		respondError(w, reqID, http.StatusNotFound, codeNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	respondOK(w, reqID, viewOf(t))
}

func viewOf(t *tracked) TaskView {
	v := TaskView{
		ID:          t.ID,
		Kind:        t.Kind,
		Label:       t.Label,
		Priority:    t.Priority.String(),
		SubmittedAt: t.SubmittedAt,
		State:       "queued",
	}
	val, err, settled := t.future.Result()
	switch {
	case !settled:
	case err != nil:
		v.State = "failed"
		v.Error = err.Error()
	default:
		v.State = "succeeded"
		v.Result = resultView(val)
	}
	return v
}

// resultView turns a task result into something worth putting on the wire.
func resultView(val any) any {
	switch x := val.(type) {
	case *job.Script:
		return map[string]any{
			"url":          x.URL,
			"content_type": x.ContentType,
			"size":         x.Size,
			"size_human":   humanize.Bytes(uint64(x.Size)),
		}
	case time.Duration:
		return x.String()
	default:
		return x
	}
}
