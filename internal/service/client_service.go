package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"gorm.io/gorm"
)

type ClientService interface {
	Create(ctx context.Context, actorID int64, req dto.CreateClientRequest) (int64, error)
	Get(ctx context.Context, id int64) (*dto.ClientResponse, error)
	Update(ctx context.Context, actorID, id int64, req dto.UpdateClientRequest) (*dto.ClientResponse, error)
	List(ctx context.Context, f dto.ClientFilter) (*dto.ClientListResponse, error)
}

type clientService struct {
	repo   repository.ClientRepository
	events EventService
	refs   *ReferenceData
}

func NewClientService(repo repository.ClientRepository, events EventService, refs *ReferenceData) ClientService {
	return &clientService{repo: repo, events: events, refs: refs}
}

func (s *clientService) Create(ctx context.Context, actorID int64, req dto.CreateClientRequest) (int64, error) {
	gender, err := parseGender(&req.Gender)
	if err != nil {
		return 0, err
	}
	birth, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return 0, err
	}
	contacts, err := contactsFrom(req.Contacts)
	if err != nil {
		return 0, err
	}
	children, err := s.childrenFrom(ctx, req.Children)
	if err != nil {
		return 0, err
	}
	c := &model.Client{
		Name:         strings.TrimSpace(req.Name),
		Gender:       gender,
		BirthDate:    birth,
		CPF:          blankToNil(req.CPF),
		Mail:         blankToNil(req.Mail),
		Phone:        blankToNil(req.Phone),
		CEP:          blankToNil(req.CEP),
		Address:      blankToNil(req.Address),
		City:         blankToNil(req.City),
		Neighborhood: blankToNil(req.Neighborhood),
		State:        blankToNil(req.State),
		Number:       blankToNil(req.Number),
		Complement:   blankToNil(req.Complement),
	}
	if err := s.checkUnique(ctx, c, 0); err != nil {
		return 0, err
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, c); err != nil {
			return err
		}
		if err := s.repo.ReplaceContactsTx(tx, c.ID, contacts); err != nil {
			return err
		}
		if err := s.repo.ReplaceChildrenTx(tx, c.ID, children); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventClientCreate, actorID, fmt.Sprintf("Cliente %s creado", c.Name))
	})
	if err != nil {
		return 0, txFailure("Error al crear el cliente", err)
	}
	return c.ID, nil
}

func (s *clientService) Get(ctx context.Context, id int64) (*dto.ClientResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Cliente no encontrado")
		}
		return nil, err
	}
	resp := clientToResponse(c)
	return &resp, nil
}

func (s *clientService) Update(ctx context.Context, actorID, id int64, req dto.UpdateClientRequest) (*dto.ClientResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Cliente no encontrado")
		}
		return nil, err
	}

	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Gender != nil {
		if c.Gender, err = parseGender(req.Gender); err != nil {
			return nil, err
		}
	}
	if req.BirthDate != nil {
		if c.BirthDate, err = parseBirthDate(req.BirthDate); err != nil {
			return nil, err
		}
	}
	var contacts []model.ClientContact
	if req.Contacts != nil {
		if contacts, err = contactsFrom(*req.Contacts); err != nil {
			return nil, err
		}
	}
	var children []model.ClientChild
	if req.Children != nil {
		if children, err = s.childrenFrom(ctx, *req.Children); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		dst **string
		src *string
	}{
		{&c.CPF, req.CPF}, {&c.Mail, req.Mail}, {&c.Phone, req.Phone}, {&c.CEP, req.CEP},
		{&c.Address, req.Address}, {&c.City, req.City}, {&c.Neighborhood, req.Neighborhood},
		{&c.State, req.State}, {&c.Number, req.Number}, {&c.Complement, req.Complement},
	} {
		if f.src != nil {
			*f.dst = blankToNil(f.src)
		}
	}
	if err := s.checkUnique(ctx, c, id); err != nil {
		return nil, err
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateTx(tx, c); err != nil {
			return err
		}
		if req.Contacts != nil {
			if err := s.repo.ReplaceContactsTx(tx, id, contacts); err != nil {
				return err
			}
		}
		if req.Children != nil {
			if err := s.repo.ReplaceChildrenTx(tx, id, children); err != nil {
				return err
			}
		}
		return s.events.RecordTx(ctx, tx, EventClientUpdate, actorID, fmt.Sprintf("Cliente %d actualizado", id))
	})
	if err != nil {
		return nil, txFailure("Error al actualizar el cliente", err)
	}
	return s.Get(ctx, id)
}

// checkUnique rejects a name or CPF already used by another client.
func (s *clientService) checkUnique(ctx context.Context, c *model.Client, excludeID int64) error {
	taken, err := s.repo.NameTaken(ctx, c.Name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflictf("Ya existe un cliente con el nombre %s", c.Name)
	}
	if c.CPF == nil {
		return nil
	}
	taken, err = s.repo.CPFTaken(ctx, *c.CPF, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflictf("Ya existe un cliente con el CPF %s", *c.CPF)
	}
	return nil
}

func contactsFrom(in []dto.ContactInput) ([]model.ClientContact, error) {
	out := make([]model.ClientContact, 0, len(in))
	for _, ci := range in {
		typ, value := strings.TrimSpace(ci.Type), strings.TrimSpace(ci.Value)
		if typ == "" || value == "" {
			return nil, apierror.Validationf("Cada contacto requiere tipo y valor")
		}
		out = append(out, model.ClientContact{Type: typ, Value: value})
	}
	return out, nil
}

// childrenFrom checks every child against the size catalog.
func (s *clientService) childrenFrom(ctx context.Context, in []dto.ChildInput) ([]model.ClientChild, error) {
	if len(in) == 0 {
		return nil, nil
	}
	lookups, err := s.refs.Lookups(ctx)
	if err != nil {
		return nil, err
	}
	sizes := make(map[int64]bool, len(lookups.Sizes))
	for _, sz := range lookups.Sizes {
		sizes[sz.ID] = true
	}

	out := make([]model.ClientChild, 0, len(in))
	for _, ci := range in {
		name := strings.TrimSpace(ci.Name)
		if name == "" {
			return nil, apierror.Validationf("Cada hijo requiere nombre")
		}
		born, err := time.Parse(dto.BirthDateLayout, ci.BirthDate)
		if err != nil {
			return nil, apierror.Validationf("Fecha de nacimiento de %s invalida, formato esperado %s", name, dto.BirthDateLayout)
		}
		if !sizes[ci.ProductSizeID] {
			return nil, apierror.Validationf("Talla %d inexistente", ci.ProductSizeID)
		}
		out = append(out, model.ClientChild{Name: name, BirthDate: born, ProductSizeID: ci.ProductSizeID})
	}
	return out, nil
}

func (s *clientService) List(ctx context.Context, f dto.ClientFilter) (*dto.ClientListResponse, error) {
	from, err := parseBirthDate(&f.ChildBornFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseBirthDate(&f.ChildBornTo)
	if err != nil {
		return nil, err
	}
	clients, total, err := s.repo.List(ctx, repository.ClientCriteria{
		Name:          f.Name,
		CPF:           f.CPF,
		ChildName:     strings.TrimSpace(f.ChildName),
		ChildBornFrom: from,
		ChildBornTo:   to,
		Limit:         f.Limit,
		Offset:        f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	resp := &dto.ClientListResponse{Count: total, Clients: make([]dto.ClientResponse, len(clients))}
	for i := range clients {
		resp.Clients[i] = clientToResponse(&clients[i])
	}
	return resp, nil
}

func clientToResponse(c *model.Client) dto.ClientResponse {
	resp := dto.ClientResponse{
		ClientSnapshot: clientSnapshot(c),
		Complement:     c.Complement,
		Gender:         c.Gender,
		BirthDate:      formatBirthDate(c.BirthDate),
		Contacts:       make([]dto.ContactResponse, len(c.Contacts)),
		Children:       make([]dto.ChildResponse, len(c.Children)),
		CreatedAt:      c.CreatedAt,
	}
	for i, ct := range c.Contacts {
		resp.Contacts[i] = dto.ContactResponse{ID: ct.ID, Type: ct.Type, Value: ct.Value}
	}
	for i, ch := range c.Children {
		resp.Children[i] = dto.ChildResponse{
			ID:            ch.ID,
			Name:          ch.Name,
			BirthDate:     ch.BirthDate.Format(dto.BirthDateLayout),
			ProductSizeID: ch.ProductSizeID,
		}
		if ch.Size != nil {
			resp.Children[i].ProductSizeName = ch.Size.Name
		}
	}
	return resp
}

// parseGender accepts F or M in any case. Blank means not informed.
func parseGender(s *string) (*string, error) {
	g := blankToNil(s)
	if g == nil {
		return nil, nil
	}
	v := strings.ToUpper(*g)
	if v != model.GenderFemale && v != model.GenderMale {
		return nil, apierror.Validationf("Genero invalido, valores aceptados: F, M")
	}
	return &v, nil
}

// parseBirthDate reads an optional date in BirthDateLayout. Blank yields nil.
func parseBirthDate(s *string) (*time.Time, error) {
	v := blankToNil(s)
	if v == nil {
		return nil, nil
	}
	t, err := time.Parse(dto.BirthDateLayout, *v)
	if err != nil {
		return nil, apierror.Validationf("Fecha %q invalida, formato esperado %s", *v, dto.BirthDateLayout)
	}
	return &t, nil
}

func formatBirthDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dto.BirthDateLayout)
	return &s
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
