package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

type taskOutput struct {
	Body domain.Task `json:"body"`
}

type tasksOutput struct {
	Body []domain.Task `json:"body"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		Description:   "author_id defaults to the authenticated user; an explicit author must resolve.",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		authorID := principal.UserID
		if input.Body.AuthorID != nil {
			authorID = *input.Body.AuthorID
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Description:  input.Body.Description,
			DepartmentID: input.Body.DepartmentID,
			AuthorID:     authorID,
			OwnerID:      input.Body.OwnerID,
			StateID:      stateIDPtr(input.Body.StateID),
			Processes:    processSpecs(input.Body.Processes, principal.UserID),
			ActorID:      principal.ActorID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, _ *struct{}) (*tasksOutput, error) {
		tasks, err := e.ListTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*taskOutput, error) {
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Description: "Department and owner are replaced: omitting either clears it. Finished tasks reject every update.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:           input.ID,
			DepartmentID: input.Body.DepartmentID,
			OwnerID:      input.Body.OwnerID,
			StateID:      stateIDPtr(input.Body.StateID),
			Description:  input.Body.Description,
			Processes:    processSpecs(input.Body.Processes, principal.UserID),
			ActorID:      principal.ActorID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.ID, principal.ActorID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "filter-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/filter",
		Summary:     "Filter tasks",
		Description: "Every criterion is optional and all present criteria must match. Results are newest first.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body FilterTasksRequest `json:"body"`
	}) (*tasksOutput, error) {
		tasks, err := e.FilterTasks(ctx, input.Body.toFilter())
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-tasks",
		Method:      http.MethodGet,
		Path:        "/users/{id}/tasks/pending",
		Summary:     "Pending tasks owned by a user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body PendingTasksResponse `json:"body"`
	}, error) {
		tasks, err := e.PendingTasksForOwner(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PendingTasksResponse `json:"body"`
		}{Body: PendingTasksResponse{UserID: input.ID, Tasks: domain.PartitionPending(tasks)}}, nil
	})
}

func registerProcesses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-process",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/processes",
		Summary:       "Append a process entry to a task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64          `path:"id"`
		Body ProcessRequest `json:"body"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		specs := processSpecs([]ProcessRequest{input.Body}, principal.UserID)
		p, err := e.AddProcess(ctx, input.ID, specs[0], principal.ActorID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List process entries",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Process `json:"body"`
	}, error) {
		items, err := e.ListProcesses(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Process `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{id}",
		Summary:     "Get process entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		p, err := e.GetProcess(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})
}
