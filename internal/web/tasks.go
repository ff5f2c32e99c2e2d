package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
)

// optional distinguishes an absent JSON field from an explicit null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
	AssigneeID  *int64 `json:"assignee_id"`
	DependsOnID *int64 `json:"depends_on_id"`
}

type updateTaskRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	DueDate     optional[string] `json:"due_date"`
	AssigneeID  optional[int64]  `json:"assignee_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type dependencyRequest struct {
	DependsOnID int64 `json:"depends_on_id"`
}

type listMeta struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

type listResponse struct {
	Data []task.View `json:"data"`
	Meta listMeta    `json:"meta"`
}

type taskDetail struct {
	task.View
	DependsOn  []task.View `json:"depends_on"`
	Dependents []task.View `json:"dependents"`
}

type cycleCheckResponse struct {
	TaskID           int64 `json:"task_id"`
	DependsOnID      int64 `json:"depends_on_id"`
	WouldCreateCycle bool  `json:"would_create_cycle"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !s.policy.Allow(caller, auth.ActionListAll, nil) {
		f.AssigneeID = &caller.UserID
	}
	s.writeList(w, r, f)
}

func (s *Server) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.AssigneeID = &caller.UserID
	s.writeList(w, r, f)
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, f task.Filter) {
	page, err := s.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data: task.Views(page.Items),
		Meta: listMeta{Total: page.Total, Page: page.Page, PerPage: page.PerPage},
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if !s.policy.Allow(caller, auth.ActionCreate, nil) {
		writeError(w, r, errForbidden)
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := task.NewTask{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DependsOnID: req.DependsOnID,
	}
	if req.Status != "" {
		status, err := task.ParseStatus(req.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.Status = status
	}
	if req.DueDate != "" {
		due, err := parseDueDate(req.DueDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.DueDate = &due
	}
	created, err := s.svc.CreateTask(r.Context(), caller.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.View())
}

func (s *Server) handleShowTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.authorize(r, auth.ActionView)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deps, err := s.svc.Dependencies(r.Context(), t.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskDetail{
		View:       t.View(),
		DependsOn:  task.Views(deps.DependsOn),
		Dependents: task.Views(deps.Dependents),
	})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.authorize(r, auth.ActionUpdate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := task.Update{Title: req.Title, Description: req.Description}
	if req.DueDate.Set {
		if req.DueDate.Value == nil || *req.DueDate.Value == "" {
			u.ClearDueDate = true
		} else {
			due, err := parseDueDate(*req.DueDate.Value)
			if err != nil {
				writeError(w, r, err)
				return
			}
			u.DueDate = &due
		}
	}
	if req.AssigneeID.Set {
		if req.AssigneeID.Value == nil {
			u.ClearAssignee = true
		} else {
			u.AssigneeID = req.AssigneeID.Value
		}
	}
	updated, err := s.svc.UpdateTask(r.Context(), t.ID, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.View())
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.authorize(r, auth.ActionUpdateStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := task.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.UpdateStatus(r.Context(), t.ID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.View())
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	t, err := s.authorize(r, auth.ActionAddDependency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dependencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DependsOnID <= 0 {
		writeError(w, r, unprocessable("depends_on_id must be a positive task id"))
		return
	}
	if err := s.svc.AddDependency(r.Context(), t.ID, req.DependsOnID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, graph.Edge{TaskID: t.ID, DependsOnID: req.DependsOnID})
}

func (s *Server) handleCycleCheck(w http.ResponseWriter, r *http.Request) {
	t, err := s.authorize(r, auth.ActionView)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dependsOnID, err := strconv.ParseInt(r.URL.Query().Get("depends_on_id"), 10, 64)
	if err != nil || dependsOnID <= 0 {
		writeError(w, r, unprocessable("depends_on_id must be a positive task id"))
		return
	}
	cyclic, err := s.svc.WouldCreateCycle(r.Context(), t.ID, dependsOnID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleCheckResponse{TaskID: t.ID, DependsOnID: dependsOnID, WouldCreateCycle: cyclic})
}

// authorize loads the task named by the {id} path segment and checks action against it.
func (s *Server) authorize(r *http.Request, action auth.Action) (task.Task, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return task.Task{}, task.ErrTaskNotFound
	}
	t, err := s.svc.Task(r.Context(), id)
	if err != nil {
		return task.Task{}, err
	}
	if !s.policy.Allow(callerFrom(r.Context()), action, &t) {
		return task.Task{}, errForbidden
	}
	return t, nil
}

func parseDueDate(value string) (time.Time, error) {
	d, err := task.ParseDate(value)
	if err != nil {
		return time.Time{}, unprocessable("due_date must be a YYYY-MM-DD date")
	}
	return d, nil
}

func parseFilter(q url.Values) (task.Filter, error) {
	var f task.Filter
	if v := q.Get("status"); v != "" {
		status, err := task.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &status
	}
	for _, bound := range []struct {
		key string
		dst **time.Time
	}{{"due_from", &f.DueFrom}, {"due_to", &f.DueTo}} {
		v := q.Get(bound.key)
		if v == "" {
			continue
		}
		d, err := task.ParseDate(v)
		if err != nil {
			return f, unprocessable(bound.key + " must be a YYYY-MM-DD date")
		}
		*bound.dst = &d
	}
	if v := q.Get("assignee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, unprocessable("assignee_id must be an integer")
		}
		f.AssigneeID = &id
	}
	var err error
	if f.Page, err = positiveInt(q, "page"); err != nil {
		return f, err
	}
	if f.PerPage, err = positiveInt(q, "per_page"); err != nil {
		return f, err
	}
	return f, nil
}

func positiveInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, unprocessable(key + " must be a positive integer")
	}
	return n, nil
}
