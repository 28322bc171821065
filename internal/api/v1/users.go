package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/domain"
	"github.com/opencliniq/triage/internal/mailer"
)

type ListUsersInput struct {
	Limit  int `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Max rows"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Rows to skip"`
}

type ListUsersOutput struct {
	Body struct {
		Data  []*domain.User `json:"data"`
		Count int            `json:"count"`
	}
}

type GetUserInput struct {
	ID uuid.UUID `path:"id" doc:"User ID"`
}

type GetUserOutput struct {
	Body *domain.User
}

type CreateUserInput struct {
	Body struct {
		FirstName string `json:"first_name" minLength:"1" maxLength:"255" doc:"First name"`
		LastName  string `json:"last_name" minLength:"1" maxLength:"255" doc:"Last name"`
		Email     string `json:"email" minLength:"3" maxLength:"255" doc:"Email"`
		Role      string `json:"role" enum:"admin,clinician" doc:"Role"`
	}
}

type CreateUserOutput struct {
	Status int
	Body   *domain.User
}

type UpdateUserInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		FirstName *string `json:"first_name,omitempty" maxLength:"255" doc:"First name"`
		LastName  *string `json:"last_name,omitempty" maxLength:"255" doc:"Last name"`
		Email     *string `json:"email,omitempty" maxLength:"255" doc:"Email"`
		Role      *string `json:"role,omitempty" enum:"admin,clinician" doc:"Role"`
	}
}

type UpdateUserOutput struct {
	Body *domain.User
}

type DeleteUserInput struct {
	ID uuid.UUID `path:"id" doc:"User ID"`
}

// RegisterUserRoutes wires the admin-only user management endpoints. Every
// operation, including reads, lands in the audit log.
func RegisterUserRoutes(api huma.API, store DataStore, auditor Auditor, mail mailer.Mailer) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("not authorized")
		}

		users, err := store.Users().List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}
		for _, u := range users {
			u.PasswordHash = ""
		}

		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionListUsers,
			domain.ResourceUser, nil, queryDetails("", input.Limit, len(users))))

		out := &ListUsersOutput{}
		out.Body.Data = users
		out.Body.Count = len(users)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get a user by ID",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *GetUserInput) (*GetUserOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("not authorized")
		}

		user, err := store.Users().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		id := user.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionGetUser,
			domain.ResourceUser, &id, nil))

		user.PasswordHash = ""
		return &GetUserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create a user",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateUserInput) (*CreateUserOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("not authorized")
		}

		now := time.Now()
		user := &domain.User{
			ID:        uuid.New(),
			FirstName: input.Body.FirstName,
			LastName:  input.Body.LastName,
			Email:     input.Body.Email,
			Role:      input.Body.Role,
			// No password yet; the invite mail starts the create-password flow.
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := store.Users().Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("user with this email already exists")
			}
			return nil, huma.Error500InternalServerError("failed to create user", err)
		}

		if err := mail.SendCreatePassword(ctx, user.Email); err != nil {
			log.Error().Err(err).Str("email", user.Email).Msg("create-password mail failed")
		}

		id := user.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionCreateUser,
			domain.ResourceUser, &id,
			fieldsDetails([]string{"firstName", "lastName", "email", "role"})))

		return &CreateUserOutput{Status: http.StatusCreated, Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users/{id}",
		Summary:     "Update a user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateUserInput) (*UpdateUserOutput, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("not authorized")
		}

		user, err := store.Users().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		var modified []string
		if input.Body.FirstName != nil {
			user.FirstName = *input.Body.FirstName
			modified = append(modified, "firstName")
		}
		if input.Body.LastName != nil {
			user.LastName = *input.Body.LastName
			modified = append(modified, "lastName")
		}
		if input.Body.Email != nil {
			user.Email = *input.Body.Email
			modified = append(modified, "email")
		}
		if input.Body.Role != nil {
			user.Role = *input.Body.Role
			modified = append(modified, "role")
		}

		if len(modified) > 0 {
			user.UpdatedAt = time.Now()
			if err := store.Users().Update(ctx, user); err != nil {
				return nil, huma.Error500InternalServerError("failed to update user", err)
			}

			id := user.ID
			_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionUpdateUser,
				domain.ResourceUser, &id, fieldsDetails(modified)))
		}

		user.PasswordHash = ""
		return &UpdateUserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{id}",
		Summary:       "Delete a user",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteUserInput) (*struct{}, error) {
		if !isAdmin(ctx) {
			return nil, huma.Error403Forbidden("not authorized")
		}

		if err := store.Users().Delete(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete user", err)
		}

		id := input.ID
		_, _ = auditor.Record(ctx, actorEvent(ctx, domain.ActionDeleteUser,
			domain.ResourceUser, &id, nil))

		return nil, nil
	})
}
