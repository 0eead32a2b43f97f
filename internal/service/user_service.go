package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// defaultCommission is the commission given to an employee on approval.
var defaultCommission = decimal.RequireFromString("0.03")

// UserService manages accounts and the self-registration queue.
type UserService interface {
	// Register stores a pending employee account.
	Register(ctx context.Context, req dto.RegisterUserRequest) (int64, error)
	List(ctx context.Context) ([]dto.UserResponse, error)
	// Pending lists registrations waiting for Approve or Deny.
	Pending(ctx context.Context) ([]dto.UserResponse, error)
	Get(ctx context.Context, id int64) (*dto.UserResponse, error)
	// Approve allows entry and creates the employee row.
	Approve(ctx context.Context, actorID, id int64) error
	// Deny deletes the pending account.
	Deny(ctx context.Context, actorID, id int64) error
}

type userService struct {
	users  repository.UserRepository
	events EventService
	cost   int
}

func NewUserService(users repository.UserRepository, events EventService) UserService {
	return &userService{users: users, events: events, cost: bcrypt.DefaultCost}
}

func (s *userService) Register(ctx context.Context, req dto.RegisterUserRequest) (int64, error) {
	mail := strings.ToLower(strings.TrimSpace(req.Mail))
	if _, err := s.users.FindByMail(ctx, mail); err == nil {
		return 0, apierror.Conflictf("El correo %s ya esta en uso", mail)
	} else if !repository.IsNotFound(err) {
		return 0, err
	}

	cpf := blankToNil(req.CPF)
	if cpf != nil {
		taken, err := s.users.CPFTaken(ctx, *cpf)
		if err != nil {
			return 0, err
		}
		if taken {
			return 0, apierror.Conflictf("Ya existe un usuario con el CPF %s", *cpf)
		}
	}
	gender, err := parseGender(req.Gender)
	if err != nil {
		return 0, err
	}
	birth, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return 0, err
	}
	if len(req.Password) < 6 {
		return 0, apierror.Validationf("La contrasena debe tener al menos 6 caracteres")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}

	u := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Mail:         mail,
		PasswordHash: string(hash),
		Type:         model.UserTypeEmployee,
		CPF:          cpf,
		BirthDate:    birth,
		Gender:       gender,
		Phone:        blankToNil(req.Phone),
	}
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		return s.users.CreateTx(tx, u)
	})
	if err != nil {
		return 0, txFailure("Error al registrar el usuario", err)
	}
	return u.ID, nil
}

func (s *userService) List(ctx context.Context) ([]dto.UserResponse, error) {
	return s.list(ctx, false)
}

func (s *userService) Pending(ctx context.Context) ([]dto.UserResponse, error) {
	return s.list(ctx, true)
}

func (s *userService) list(ctx context.Context, pendingOnly bool) ([]dto.UserResponse, error) {
	users, err := s.users.ListUsers(ctx, pendingOnly)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = userToResponse(&users[i])
	}
	return out, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*dto.UserResponse, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := userToResponse(u)
	return &resp, nil
}

func (s *userService) Approve(ctx context.Context, actorID, id int64) error {
	u, err := s.pending(ctx, id)
	if err != nil {
		return err
	}
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		if err := s.users.UpdateEntryAllowedTx(tx, id, true); err != nil {
			return err
		}
		e := &model.Employee{ID: id, Active: true, Commission: defaultCommission}
		if err := s.users.CreateEmployeeTx(tx, e); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventUserApprove, actorID, fmt.Sprintf("Registro de %s aprobado", u.Mail))
	})
	return txFailure("Error al aprobar el usuario", err)
}

func (s *userService) Deny(ctx context.Context, actorID, id int64) error {
	u, err := s.pending(ctx, id)
	if err != nil {
		return err
	}
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		if err := s.events.RecordTx(ctx, tx, EventUserDeny, actorID, fmt.Sprintf("Registro de %s rechazado", u.Mail)); err != nil {
			return err
		}
		return s.users.DeleteTx(tx, id)
	})
	return txFailure("Error al rechazar el usuario", err)
}

func (s *userService) find(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Usuario no encontrado")
		}
		return nil, err
	}
	return u, nil
}

// pending loads a registration still waiting for a decision.
func (s *userService) pending(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Type != model.UserTypeEmployee {
		return nil, apierror.Conflictf("El usuario no es un registro de empleado")
	}
	if u.EntryAllowed {
		return nil, apierror.Conflictf("El usuario ya tiene permiso de ingreso")
	}
	if _, err := s.users.FindEmployee(ctx, id); err == nil {
		return nil, apierror.Conflictf("El usuario ya es empleado")
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	return u, nil
}

func userToResponse(u *model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Mail:         u.Mail,
		Type:         u.Type,
		EntryAllowed: u.EntryAllowed,
		CPF:          u.CPF,
		BirthDate:    formatBirthDate(u.BirthDate),
		Gender:       u.Gender,
		Phone:        u.Phone,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}
