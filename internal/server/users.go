package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
	"techfixer/internal/engine/auth"
)

type userOutput struct {
	Body domain.User `json:"body"`
}

func registerAuth(api huma.API, e engine.Engine, iss auth.Issuer) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a bearer token",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		u, err := e.Authenticate(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, expiresAt, err := iss.Issue(u)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token, ExpiresAt: expiresAt, User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*userOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actor := input.Body.Username
		if p, ok := principalFromContext(ctx); ok {
			actor = p.ActorID()
		}
		u, err := e.RegisterUser(ctx, engine.UserRegisterOptions{
			Username:      input.Body.Username,
			Password:      input.Body.Password,
			RoleID:        input.Body.RoleID,
			DepartmentIDs: input.Body.DepartmentIDs,
			ActorID:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &userOutput{Body: u}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		items, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*userOutput, error) {
		u, err := e.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users/{id}",
		Summary:     "Update user",
		Description: "Memberships are replaced: omitting department_ids removes the user from every department.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateUserRequest `json:"body"`
	}) (*userOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.UpdateUser(ctx, engine.UserUpdateOptions{
			ID:            input.ID,
			Username:      input.Body.Username,
			Password:      input.Body.Password,
			RoleID:        input.Body.RoleID,
			DepartmentIDs: input.Body.DepartmentIDs,
			ActorID:       principal.ActorID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &userOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{id}",
		Summary:       "Delete user",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteUser(ctx, input.ID, principal.ActorID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{UserID: principal.UserID, Username: principal.Username, Role: principal.Role}}, nil
	})
}
