package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/auth"
	"github.com/opencliniq/triage/internal/domain"
	"github.com/opencliniq/triage/internal/mailer"
	"github.com/opencliniq/triage/internal/server/middleware"
)

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
	}
}

type LogoutInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token to revoke"` //nolint:gosec // G117: token revocation DTO
	}
}

type LogoutOutput struct {
	Body struct {
		Detail string `json:"detail"`
	}
}

type ForgotPasswordInput struct {
	Body struct {
		Email string `json:"email" minLength:"3" maxLength:"255" doc:"Account email"`
	}
}

type ForgotPasswordOutput struct {
	Body struct {
		Detail string `json:"detail"`
	}
}

// RegisterAuthRoutes wires the unauthenticated auth endpoints. Every login
// outcome is audited: failures with a nil actor (the caller never proved an
// identity), successes attributed to the authenticated user.
func RegisterAuthRoutes(api huma.API, store DataStore, authSvc AuthService, auditor Auditor, mail mailer.Mailer) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		user, accessToken, refreshToken, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				ev := audit.Event{
					Action: domain.ActionLoginFailure,
					Status: domain.AuditStatusFail,
					IP:     middleware.ClientIPFromContext(ctx),
				}
				// Chain the failure onto the targeted account when the email
				// resolved to one; unknown emails stay resource-less.
				if user != nil {
					rt := domain.ResourceUser
					id := user.ID
					ev.ResourceType = &rt
					ev.ResourceID = &id
				}
				_, _ = auditor.Record(ctx, ev)
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}

		rt := domain.ResourceUser
		uid := user.ID
		_, _ = auditor.Record(ctx, audit.Event{
			Action:       domain.ActionLoginSuccess,
			Status:       domain.AuditStatusSuccess,
			ActorID:      &uid,
			ActorType:    &user.Role,
			ResourceType: &rt,
			ResourceID:   &uid,
			IP:           middleware.ClientIPFromContext(ctx),
		})

		out := &LoginOutput{}
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = accessToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "Revoke the refresh session",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LogoutInput) (*LogoutOutput, error) {
		userID, err := authSvc.Logout(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}

		rt := domain.ResourceUser
		uid := userID
		_, _ = auditor.Record(ctx, audit.Event{
			Action:       domain.ActionLogout,
			Status:       domain.AuditStatusSuccess,
			ActorID:      &uid,
			ResourceType: &rt,
			ResourceID:   &uid,
			IP:           middleware.ClientIPFromContext(ctx),
		})

		out := &LogoutOutput{}
		out.Body.Detail = "logged out"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "forgot-password",
		Method:      http.MethodPost,
		Path:        "/auth/forgot-password",
		Summary:     "Send a password reset email",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *ForgotPasswordInput) (*ForgotPasswordOutput, error) {
		// Same response regardless of whether the account exists, so the
		// endpoint cannot be used to probe for emails.
		if user, err := store.Users().GetByEmail(ctx, input.Body.Email); err == nil {
			if mailErr := mail.SendForgotPassword(ctx, user.Email); mailErr != nil {
				log.Error().Err(mailErr).Msg("forgot-password mail failed")
			}
		}

		out := &ForgotPasswordOutput{}
		out.Body.Detail = "if the account exists, a reset email was sent"
		return out, nil
	})
}

type MeOutput struct {
	Body *domain.User
}

// RegisterProfileRoutes wires /auth/me in the authenticated group.
func RegisterProfileRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user profile",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		user, err := authSvc.GetUser(ctx, userID)
		if err != nil {
			return nil, huma.Error404NotFound("user not found")
		}

		user.PasswordHash = ""
		return &MeOutput{Body: user}, nil
	})
}
