package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

type departmentOutput struct {
	Body domain.Department `json:"body"`
}

func registerDepartments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/departments",
		Summary:       "Create department",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateDepartmentRequest `json:"body"`
	}) (*departmentOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDepartment(ctx, input.Body.Name, input.Body.UserIDs, principal.ActorID())
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Department `json:"body"`
	}, error) {
		items, err := e.ListDepartments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Department `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-department",
		Method:      http.MethodGet,
		Path:        "/departments/{id}",
		Summary:     "Get department",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*departmentOutput, error) {
		d, err := e.GetDepartment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-department",
		Method:      http.MethodPut,
		Path:        "/departments/{id}",
		Summary:     "Update department",
		Description: "Members are synchronized only when user_ids is non-empty.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                   `path:"id"`
		Body UpdateDepartmentRequest `json:"body"`
	}) (*departmentOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.UpdateDepartment(ctx, engine.DepartmentUpdateOptions{
			ID:      input.ID,
			Name:    input.Body.Name,
			UserIDs: input.Body.UserIDs,
			ActorID: principal.ActorID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-department",
		Method:        http.MethodDelete,
		Path:          "/departments/{id}",
		Summary:       "Delete department",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDepartment(ctx, input.ID, principal.ActorID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-department-member",
		Method:      http.MethodPut,
		Path:        "/departments/{id}/members/{user_id}",
		Summary:     "Add a user to a department",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     int64 `path:"id"`
		UserID int64 `path:"user_id"`
	}) (*departmentOutput, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AddDepartment(ctx, input.UserID, input.ID, principal.ActorID()); err != nil {
			return nil, handleError(err)
		}
		d, err := e.GetDepartment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-department-member",
		Method:      http.MethodDelete,
		Path:        "/departments/{id}/members/{user_id}",
		Summary:     "Remove a user from a department",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     int64 `path:"id"`
		UserID int64 `path:"user_id"`
	}) (*departmentOutput, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveDepartment(ctx, input.UserID, input.ID, principal.ActorID()); err != nil {
			return nil, handleError(err)
		}
		d, err := e.GetDepartment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})
}
